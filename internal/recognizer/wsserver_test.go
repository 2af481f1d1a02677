// SPDX-License-Identifier: MIT

package recognizer

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, interval, window int) (*httptest.Server, string) {
	t.Helper()
	pipeline := Pipeline{
		SequenceLength:     5,
		FeatureDim:         positionWidth * 3,
		PredictionInterval: interval,
		SmoothingWindow:    window,
		Labels:             []string{"none", "hello"},
		Classifier:         &countingClassifier{probs: []float64{0.1, 0.9}},
	}
	idle := NewIdleTimer(time.Hour, func() {})
	manager := NewManager(pipeline, idle)
	srv := NewServer(manager)

	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")
	return ts, wsURL
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestWSServer_PingPong(t *testing.T) {
	_, url := newTestServer(t, 1, 3)
	conn := dial(t, url)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "ping"}))

	var reply map[string]string
	require.NoError(t, conn.ReadJSON(&reply))
	require.Equal(t, "pong", reply["type"])
}

func TestWSServer_BinaryFrameReturnsErrorThenRecovers(t *testing.T) {
	_, url := newTestServer(t, 100, 3)
	conn := dial(t, url)

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte{0x01, 0x02}))

	var reply map[string]interface{}
	require.NoError(t, conn.ReadJSON(&reply))
	require.Equal(t, "error", reply["type"])

	// A subsequent valid ping is still processed normally; the connection
	// was not closed by the prior protocol error.
	require.NoError(t, conn.WriteJSON(map[string]string{"type": "ping"}))
	var pong map[string]string
	require.NoError(t, conn.ReadJSON(&pong))
	require.Equal(t, "pong", pong["type"])
}

func TestWSServer_MalformedJSONReturnsErrorWithoutClosing(t *testing.T) {
	_, url := newTestServer(t, 100, 3)
	conn := dial(t, url)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))

	var reply map[string]interface{}
	require.NoError(t, conn.ReadJSON(&reply))
	require.Equal(t, "error", reply["type"])

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "ping"}))
	var pong map[string]string
	require.NoError(t, conn.ReadJSON(&pong))
	require.Equal(t, "pong", pong["type"])
}

func TestWSServer_LandmarksSequenceProcessesInOrder(t *testing.T) {
	_, url := newTestServer(t, 1, 3)
	conn := dial(t, url)

	// sequence_length is 5; one extra frame past it is needed before the
	// prediction_interval=1 cadence fires its first event.
	frames := make([]Frame, 6)
	msg := map[string]interface{}{
		"type": "landmarks_sequence",
		"data": map[string]interface{}{
			"sequence":    frames,
			"frame_count": len(frames),
			"timestamp":   0,
		},
	}
	require.NoError(t, conn.WriteJSON(msg))

	var reply map[string]interface{}
	require.NoError(t, conn.ReadJSON(&reply))
	require.Equal(t, "classification_result", reply["type"])
}
