// SPDX-License-Identifier: MIT

package recognizer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSmoother_NoEntriesProducesNoMean(t *testing.T) {
	s := NewSmoother(3)
	_, ok := s.Mean()
	require.False(t, ok)
}

func TestSmoother_MonotoneCoverageBelowWindow(t *testing.T) {
	s := NewSmoother(6)
	s.Push([]float64{1, 0})
	s.Push([]float64{0, 1})

	mean, ok := s.Mean()
	require.True(t, ok)
	require.InDeltaSlice(t, []float64{0.5, 0.5}, mean, 1e-9)
}

func TestSmoother_EvictsOldestPastWindow(t *testing.T) {
	s := NewSmoother(2)
	s.Push([]float64{1, 0})
	s.Push([]float64{0, 1})
	s.Push([]float64{0, 1})

	mean, ok := s.Mean()
	require.True(t, ok)
	require.InDeltaSlice(t, []float64{0, 1}, mean, 1e-9)
	require.Equal(t, 2, s.Len())
}

func TestSmoother_ReportedLabelIsArgmaxOfMean(t *testing.T) {
	s := NewSmoother(3)
	s.Push([]float64{0.1, 0.9})
	s.Push([]float64{0.2, 0.8})

	mean, ok := s.Mean()
	require.True(t, ok)
	idx, _ := Argmax(mean)
	require.Equal(t, 1, idx)
}
