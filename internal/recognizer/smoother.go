// SPDX-License-Identifier: MIT

package recognizer

// Smoother maintains a ring buffer of the last window raw probability
// vectors and reports their element-wise mean. The buffer grows as raw
// results arrive rather than starting pre-filled with neutral values: with
// k <= window entries buffered, the smoothed vector is the mean of those k.
type Smoother struct {
	window int
	buffer [][]float64
	next   int
}

// NewSmoother creates a Smoother averaging over the last window raw
// results.
func NewSmoother(window int) *Smoother {
	if window <= 0 {
		window = 1
	}
	return &Smoother{window: window, buffer: make([][]float64, 0, window)}
}

// Push appends a raw probability vector to the buffer, evicting the oldest
// entry once the buffer is full.
func (s *Smoother) Push(probs []float64) {
	if len(s.buffer) < s.window {
		s.buffer = append(s.buffer, append([]float64(nil), probs...))
		return
	}
	s.buffer[s.next] = append([]float64(nil), probs...)
	s.next = (s.next + 1) % s.window
}

// Len reports how many raw results are currently buffered.
func (s *Smoother) Len() int {
	return len(s.buffer)
}

// Mean returns the element-wise arithmetic mean of the buffered vectors.
// The second return value is false until at least one result has been
// pushed.
func (s *Smoother) Mean() ([]float64, bool) {
	if len(s.buffer) == 0 {
		return nil, false
	}
	width := len(s.buffer[0])
	sum := make([]float64, width)
	for _, v := range s.buffer {
		for i, p := range v {
			sum[i] += p
		}
	}
	n := float64(len(s.buffer))
	for i := range sum {
		sum[i] /= n
	}
	return sum, true
}

// Reset clears the buffer, for a new session.
func (s *Smoother) Reset() {
	s.buffer = s.buffer[:0]
	s.next = 0
}
