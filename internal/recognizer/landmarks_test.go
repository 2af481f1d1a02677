// SPDX-License-Identifier: MIT

package recognizer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func makePoints(n int) []Point3 {
	pts := make([]Point3, n)
	for i := range pts {
		pts[i] = Point3{X: float64(i), Y: float64(i) * 2, Z: float64(i) * 3}
	}
	return pts
}

func TestFlatten_WidthIs225(t *testing.T) {
	f := Frame{Pose: makePoints(PosePoints), LeftHand: makePoints(HandPoints), RightHand: makePoints(HandPoints)}
	out := flatten(f)
	require.Len(t, out, 225)
}

func TestFlatten_MissingFieldsAreZero(t *testing.T) {
	f := Frame{}
	out := flatten(f)
	require.Len(t, out, 225)
	for _, v := range out {
		require.Zero(t, v)
	}
}

func TestNormalizeShoulderFrame_NoPosePassesThrough(t *testing.T) {
	f := Frame{LeftHand: makePoints(HandPoints)}
	out := normalizeShoulderFrame(f)
	require.Equal(t, f, out)
}

func TestNormalizeShoulderFrame_CentersOnShoulderMidpoint(t *testing.T) {
	pose := make([]Point3, PosePoints)
	pose[leftShoulderIdx] = Point3{X: -1, Y: 0, Z: 0}
	pose[rightShoulderIdx] = Point3{X: 1, Y: 0, Z: 0}
	f := Frame{Pose: pose}

	out := normalizeShoulderFrame(f)
	// Shoulder midpoint is the origin at (0,0,0); scale is |1 - (-1)| = 2.
	require.InDelta(t, -0.5, out.Pose[leftShoulderIdx].X, 1e-9)
	require.InDelta(t, 0.5, out.Pose[rightShoulderIdx].X, 1e-9)
}

func TestNormalizeShoulderFrame_ZeroWidthFallsBackToScaleOne(t *testing.T) {
	pose := make([]Point3, PosePoints)
	pose[leftShoulderIdx] = Point3{X: 3, Y: 1, Z: 0}
	pose[rightShoulderIdx] = Point3{X: 3, Y: -1, Z: 0}
	f := Frame{Pose: pose}

	out := normalizeShoulderFrame(f)
	require.InDelta(t, 0, out.Pose[leftShoulderIdx].X, 1e-9)
	require.InDelta(t, 1, out.Pose[leftShoulderIdx].Y, 1e-9)
}
