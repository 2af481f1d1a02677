// SPDX-License-Identifier: MIT

package recognizer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewClassificationResultMessage_CarriesEventFields(t *testing.T) {
	ev := ClassificationEvent{
		Label:         "hello",
		Confidence:    0.87,
		Probabilities: map[string]float64{"hello": 0.87, "none": 0.13},
		BufferSize:    30,
		FrameIndex:    42,
		Timestamp:     time.Unix(1000, 0),
	}
	msg := NewClassificationResultMessage(ev)

	require.Equal(t, TypeClassificationResult, msg.Type)
	require.Equal(t, "hello", msg.Data.Prediction)
	require.InDelta(t, 0.87, msg.Data.Confidence, 1e-9)
	require.Equal(t, 30, msg.Data.BufferSize)
	require.Equal(t, int64(42), msg.FrameIdx)
}

func TestNewErrorMessage_SetsTypeAndMessage(t *testing.T) {
	msg := NewErrorMessage("binary frames are not accepted")
	require.Equal(t, TypeError, msg.Type)
	require.Equal(t, "binary frames are not accepted", msg.Message)
}

func TestNewPongMessage_SetsType(t *testing.T) {
	require.Equal(t, TypePong, NewPongMessage().Type)
}
