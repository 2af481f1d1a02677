// SPDX-License-Identifier: MIT

package recognizer

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// countingClassifier stands in for *Classifier in session tests: it reports
// how many times Predict ran and whether two calls ever overlapped, without
// needing a real weights file.
type countingClassifier struct {
	calls      int32
	inFlight   int32
	overlapped int32
	delay      time.Duration
	probs      []float64
}

func (c *countingClassifier) Predict(_ *mat.Dense) []float64 {
	atomic.AddInt32(&c.calls, 1)
	if atomic.AddInt32(&c.inFlight, 1) > 1 {
		atomic.StoreInt32(&c.overlapped, 1)
	}
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	atomic.AddInt32(&c.inFlight, -1)
	if c.probs != nil {
		return c.probs
	}
	return []float64{0.1, 0.9}
}

func newTestManager(predictInterval, smoothingWindow int) (*Manager, *countingClassifier) {
	cc := &countingClassifier{}
	pipeline := Pipeline{
		SequenceLength:     30,
		FeatureDim:         675,
		PredictionInterval: predictInterval,
		SmoothingWindow:    smoothingWindow,
		Labels:             []string{"none", "hello"},
		Classifier:         cc,
	}
	idle := NewIdleTimer(time.Hour, func() {})
	m := NewManager(pipeline, idle)
	return m, cc
}

func TestSession_ScenarioFiveCadence(t *testing.T) {
	m, _ := newTestManager(5, 3)
	session := m.OnConnect("client-1")
	blank := Frame{}

	for i := 0; i < 29; i++ {
		_, ok := m.OnFrame(session, blank)
		require.False(t, ok, "frame %d should not classify", i+1)
	}

	// 30th frame: the sequence buffer just reached full; no event yet.
	_, ok := m.OnFrame(session, blank)
	require.False(t, ok)

	// Frames 31-34: still not a multiple of prediction_interval since the
	// buffer became full.
	for i := 0; i < 4; i++ {
		_, ok := m.OnFrame(session, blank)
		require.False(t, ok)
	}

	// The 5th frame after the buffer became full: exactly one event.
	_, ok = m.OnFrame(session, blank)
	require.True(t, ok)
}

func TestSession_CadenceMatchesFloorFormula(t *testing.T) {
	const interval = 5
	const extraFrames = 23 // floor(23/5) == 4 expected events
	m, _ := newTestManager(interval, 3)
	session := m.OnConnect("client-1")
	blank := Frame{}

	for i := 0; i < 30; i++ {
		m.OnFrame(session, blank)
	}

	events := 0
	for i := 0; i < extraFrames; i++ {
		if _, ok := m.OnFrame(session, blank); ok {
			events++
		}
	}
	require.Equal(t, 4, events)
}

func TestSession_OneInFlightPerSession(t *testing.T) {
	m, cc := newTestManager(1, 1)
	cc.delay = 20 * time.Millisecond
	session := m.OnConnect("client-1")
	blank := Frame{}
	for i := 0; i < 30; i++ {
		m.OnFrame(session, blank)
	}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.OnFrame(session, blank)
		}()
	}
	wg.Wait()

	require.Equal(t, int32(0), atomic.LoadInt32(&cc.overlapped))
}

func TestSession_SmoothingCoverageBelowWindow(t *testing.T) {
	m, cc := newTestManager(1, 10)
	cc.probs = []float64{0.2, 0.8}
	session := m.OnConnect("client-1")
	blank := Frame{}

	var last ClassificationEvent
	for i := 0; i < 33; i++ {
		ev, ok := m.OnFrame(session, blank)
		if ok {
			last = ev
		}
	}
	// Fewer raw results than smoothing_window have been pushed, so the
	// smoothed output still equals the mean of exactly those results, which
	// (constant raw output) equals the raw output itself.
	require.InDelta(t, 0.8, last.Probabilities["hello"], 1e-9)
}

func TestManager_OnConnectCancelsIdleCountdown(t *testing.T) {
	var fired int32
	idle := NewIdleTimer(20*time.Millisecond, func() { atomic.StoreInt32(&fired, 1) })
	pipeline := Pipeline{SequenceLength: 30, FeatureDim: 675, PredictionInterval: 5, SmoothingWindow: 3, Labels: []string{"a"}, Classifier: &countingClassifier{}}
	m := NewManager(pipeline, idle)

	m.OnConnect("client-1")
	time.Sleep(60 * time.Millisecond)
	require.Equal(t, int32(0), atomic.LoadInt32(&fired))
}

func TestManager_OnDisconnectStartsIdleWhenEmpty(t *testing.T) {
	var fired int32
	idle := NewIdleTimer(20*time.Millisecond, func() { atomic.StoreInt32(&fired, 1) })
	pipeline := Pipeline{SequenceLength: 30, FeatureDim: 675, PredictionInterval: 5, SmoothingWindow: 3, Labels: []string{"a"}, Classifier: &countingClassifier{}}
	m := NewManager(pipeline, idle)

	m.OnConnect("client-1")
	m.OnDisconnect("client-1")

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&fired) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestManager_SessionCount(t *testing.T) {
	idle := NewIdleTimer(time.Hour, func() {})
	pipeline := Pipeline{SequenceLength: 30, FeatureDim: 675, PredictionInterval: 5, SmoothingWindow: 3, Labels: []string{"a"}, Classifier: &countingClassifier{}}
	m := NewManager(pipeline, idle)

	require.Equal(t, 0, m.SessionCount())
	m.OnConnect("client-1")
	m.OnConnect("client-2")
	require.Equal(t, 2, m.SessionCount())
	m.OnDisconnect("client-1")
	require.Equal(t, 1, m.SessionCount())
}
