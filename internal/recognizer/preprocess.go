// SPDX-License-Identifier: MIT

package recognizer

import "gonum.org/v1/gonum/mat"

// positionWidth is the flattened per-frame feature width before the
// velocity/acceleration augmentation: 75 landmarks (pose + both hands) x 3
// coordinates.
const positionWidth = (PosePoints + 2*HandPoints) * 3

// Preprocess converts a window of raw landmark frames into a dense
// (sequenceLength, featureDim) tensor: shoulder-frame normalization,
// flattening, time-axis resampling to sequenceLength, then augmentation
// with first- and second-difference (velocity, acceleration) features
// concatenated along the feature axis.
//
// Preprocess is pure: the same input window always produces a
// bit-identical tensor. An empty window produces an all-zero tensor of the
// requested shape.
func Preprocess(frames []Frame, sequenceLength, featureDim int) *mat.Dense {
	out := mat.NewDense(sequenceLength, featureDim, nil)
	if len(frames) == 0 {
		return out
	}

	position := resample(flattenAll(frames), sequenceLength)
	velocity := firstDifference(position)
	acceleration := firstDifference(velocity)

	for row := 0; row < sequenceLength; row++ {
		col := 0
		col = copyRow(out, row, col, position[row])
		col = copyRow(out, row, col, velocity[row])
		_ = copyRow(out, row, col, acceleration[row])
	}
	return out
}

func copyRow(dst *mat.Dense, row, startCol int, values []float64) int {
	for i, v := range values {
		dst.Set(row, startCol+i, v)
	}
	return startCol + len(values)
}

func flattenAll(frames []Frame) [][]float64 {
	out := make([][]float64, len(frames))
	for i, f := range frames {
		out[i] = flatten(normalizeShoulderFrame(f))
	}
	return out
}

// resample linearly interpolates each feature column of rows onto target
// evenly spaced time points. If len(rows) already equals target, rows is
// returned unchanged.
func resample(rows [][]float64, target int) [][]float64 {
	n := len(rows)
	if n == target {
		return rows
	}
	if n == 1 {
		out := make([][]float64, target)
		for i := range out {
			out[i] = append([]float64(nil), rows[0]...)
		}
		return out
	}

	width := len(rows[0])
	out := make([][]float64, target)
	for i := 0; i < target; i++ {
		// Map output index i in [0, target-1] to a fractional source
		// position in [0, n-1].
		var srcPos float64
		if target == 1 {
			srcPos = 0
		} else {
			srcPos = float64(i) * float64(n-1) / float64(target-1)
		}
		lo := int(srcPos)
		if lo >= n-1 {
			out[i] = append([]float64(nil), rows[n-1]...)
			continue
		}
		frac := srcPos - float64(lo)

		row := make([]float64, width)
		for c := 0; c < width; c++ {
			row[c] = rows[lo][c]*(1-frac) + rows[lo+1][c]*frac
		}
		out[i] = row
	}
	return out
}

// firstDifference computes the row-wise difference of consecutive rows. The
// first row is differenced against itself, so the first output row is all
// zeros and the output length matches the input length.
func firstDifference(rows [][]float64) [][]float64 {
	n := len(rows)
	out := make([][]float64, n)
	if n == 0 {
		return out
	}
	width := len(rows[0])
	out[0] = make([]float64, width)
	for i := 1; i < n; i++ {
		diff := make([]float64, width)
		for c := 0; c < width; c++ {
			diff[c] = rows[i][c] - rows[i-1][c]
		}
		out[i] = diff
	}
	return out
}
