// SPDX-License-Identifier: MIT

package recognizer

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"

	"github.com/signfleet/fleetd/internal/log"
	"github.com/signfleet/fleetd/internal/metrics"
)

// ClassificationEvent is the result of one completed classification pipeline
// run for a session, ready to be framed onto the wire.
type ClassificationEvent struct {
	Label         string
	Confidence    float64
	Probabilities map[string]float64
	BufferSize    int
	FrameIndex    int64
	Timestamp     time.Time
}

// Session tracks one connected client's recognition state inside a worker.
// OnFrame may be called concurrently for the same Session: mu guards its
// state, and inFlight allows at most one classification at a time.
type Session struct {
	ClientID string

	mu             sync.Mutex
	sequenceBuffer []Frame
	smoother       *Smoother
	frameCounter   int64
	inFlight       bool
	currentLabel   string
	currentConf    float64
}

// Predictor runs a preprocessed tensor through a loaded model and returns a
// probability vector over a fixed label vocabulary. *Classifier implements
// this.
type Predictor interface {
	Predict(tensor *mat.Dense) []float64
}

// Pipeline is the set of components a Session drives to turn a full
// sequence buffer into a classification event.
type Pipeline struct {
	SequenceLength     int
	FeatureDim         int
	PredictionInterval int
	SmoothingWindow    int
	Labels             []string
	Classifier         Predictor
}

// Manager creates and tracks sessions for one worker process, and owns the
// idle-shutdown countdown that fires when the last session disconnects.
type Manager struct {
	pipeline Pipeline
	logger   zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	idle     *IdleTimer
}

// NewManager creates a session Manager. idle is started immediately since a
// freshly started worker begins with zero connected sessions.
func NewManager(pipeline Pipeline, idle *IdleTimer) *Manager {
	m := &Manager{
		pipeline: pipeline,
		logger:   log.WithComponent("recognizer-session-manager"),
		sessions: make(map[string]*Session),
		idle:     idle,
	}
	m.idle.Start()
	return m
}

// OnConnect allocates a Session for clientID and cancels any running
// idle-shutdown countdown.
func (m *Manager) OnConnect(clientID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := &Session{
		ClientID:       clientID,
		sequenceBuffer: make([]Frame, 0, m.pipeline.SequenceLength),
		smoother:       NewSmoother(m.pipeline.SmoothingWindow),
	}
	m.sessions[clientID] = s
	m.idle.Cancel()
	metrics.SetActiveSessions(len(m.sessions))
	return s
}

// OnDisconnect drops all state for clientID. If no sessions remain, the
// idle-shutdown countdown starts.
func (m *Manager) OnDisconnect(clientID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, clientID)
	metrics.SetActiveSessions(len(m.sessions))
	if len(m.sessions) == 0 {
		m.idle.Start()
	}
}

// SessionCount reports the number of currently connected sessions.
func (m *Manager) SessionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// OnFrame feeds one raw landmark frame into session. It increments the
// frame counter, maintains the bounded sequence buffer, and runs the
// classification pipeline on the configured cadence. Returns (event, true)
// when a new classification was produced.
func (m *Manager) OnFrame(s *Session, frame Frame) (ClassificationEvent, bool) {
	s.mu.Lock()
	s.frameCounter++
	counter := s.frameCounter

	if len(s.sequenceBuffer) == m.pipeline.SequenceLength {
		copy(s.sequenceBuffer, s.sequenceBuffer[1:])
		s.sequenceBuffer[len(s.sequenceBuffer)-1] = frame
	} else {
		s.sequenceBuffer = append(s.sequenceBuffer, frame)
	}

	if s.inFlight {
		s.mu.Unlock()
		metrics.IncFramesProcessed("dropped")
		return ClassificationEvent{}, false
	}
	if len(s.sequenceBuffer) < m.pipeline.SequenceLength {
		s.mu.Unlock()
		metrics.IncFramesProcessed("buffered")
		return ClassificationEvent{}, false
	}
	// Cadence counts from the point the sequence buffer first became full,
	// not from the absolute frame counter: the frame that fills the buffer
	// never itself triggers a classification, only the prediction_interval-th
	// frame after it does.
	interval := m.pipeline.PredictionInterval0()
	framesSinceFull := counter - int64(m.pipeline.SequenceLength)
	if framesSinceFull <= 0 || framesSinceFull%int64(interval) != 0 {
		s.mu.Unlock()
		metrics.IncFramesProcessed("buffered")
		return ClassificationEvent{}, false
	}

	s.inFlight = true
	window := append([]Frame(nil), s.sequenceBuffer...)
	bufferSize := len(s.sequenceBuffer)
	s.mu.Unlock()

	start := time.Now()
	tensor := Preprocess(window, m.pipeline.SequenceLength, m.pipeline.FeatureDim)
	probs := m.pipeline.Classifier.Predict(tensor)
	metrics.ObserveClassificationLatency(time.Since(start).Seconds())

	s.mu.Lock()
	s.smoother.Push(probs)
	smoothed, ok := s.smoother.Mean()
	s.inFlight = false
	metrics.SetSmoothingBufferDepth(s.smoother.Len())
	if !ok {
		s.mu.Unlock()
		return ClassificationEvent{}, false
	}
	idx, conf := Argmax(smoothed)
	label := m.pipeline.Labels[idx]
	s.currentLabel = label
	s.currentConf = conf
	s.mu.Unlock()

	probabilities := make(map[string]float64, len(m.pipeline.Labels))
	for i, l := range m.pipeline.Labels {
		probabilities[l] = smoothed[i]
	}

	metrics.IncFramesProcessed("classified")
	return ClassificationEvent{
		Label:         label,
		Confidence:    conf,
		Probabilities: probabilities,
		BufferSize:    bufferSize,
		FrameIndex:    counter,
		Timestamp:     time.Now(),
	}, true
}

// PredictionInterval0 returns the pipeline's prediction interval, or 1 if
// unset, so a misconfigured worker degrades to "classify every frame"
// rather than dividing by zero.
func (p Pipeline) PredictionInterval0() int {
	if p.PredictionInterval <= 0 {
		return 1
	}
	return p.PredictionInterval
}

// Current returns the session's most recently reported smoothed label and
// confidence.
func (s *Session) Current() (label string, confidence float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentLabel, s.currentConf
}
