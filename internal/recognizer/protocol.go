// SPDX-License-Identifier: MIT

package recognizer

import "encoding/json"

// Inbound message type discriminators.
const (
	TypePing              = "ping"
	TypeLandmarks         = "landmarks"
	TypeLandmarksSequence = "landmarks_sequence"
)

// Outbound message type discriminators.
const (
	TypePong                 = "pong"
	TypeClassificationResult = "classification_result"
	TypeError                = "error"
)

// InboundEnvelope is the outer shape of every inbound data-plane message;
// Data is re-decoded into the concrete payload once Type is known.
type InboundEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// LandmarksSequencePayload wraps a batch of frames, processed in order.
type LandmarksSequencePayload struct {
	Sequence   []Frame `json:"sequence"`
	FrameCount int     `json:"frame_count"`
	Timestamp  float64 `json:"timestamp"`
}

// PongMessage replies to a ping.
type PongMessage struct {
	Type string `json:"type"`
}

// NewPongMessage builds the fixed pong reply.
func NewPongMessage() PongMessage {
	return PongMessage{Type: TypePong}
}

// ClassificationResultMessage reports a smoothed classification event.
type ClassificationResultMessage struct {
	Type      string                   `json:"type"`
	Data      ClassificationResultData `json:"data"`
	Timestamp float64                  `json:"timestamp"`
	FrameIdx  int64                    `json:"frame_index,omitempty"`
}

// ClassificationResultData is the payload of a classification_result
// message.
type ClassificationResultData struct {
	Prediction    string             `json:"prediction"`
	Confidence    float64            `json:"confidence"`
	Probabilities map[string]float64 `json:"probabilities"`
	BufferSize    int                `json:"buffer_size,omitempty"`
}

// NewClassificationResultMessage builds an outbound message from a
// completed pipeline run.
func NewClassificationResultMessage(ev ClassificationEvent) ClassificationResultMessage {
	return ClassificationResultMessage{
		Type: TypeClassificationResult,
		Data: ClassificationResultData{
			Prediction:    ev.Label,
			Confidence:    ev.Confidence,
			Probabilities: ev.Probabilities,
			BufferSize:    ev.BufferSize,
		},
		Timestamp: float64(ev.Timestamp.UnixNano()) / 1e9,
		FrameIdx:  ev.FrameIndex,
	}
}

// ErrorMessage reports a protocol-level error. The connection stays open;
// only the offending message is dropped.
type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// NewErrorMessage builds a protocol error reply.
func NewErrorMessage(msg string) ErrorMessage {
	return ErrorMessage{Type: TypeError, Message: msg}
}
