// SPDX-License-Identifier: MIT

package recognizer

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func writeWeightsFile(t *testing.T, wf weightsFile) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "weights.json")
	data, err := json.Marshal(wf)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestLoadClassifier_PredictsArgmaxOfHighestLogit(t *testing.T) {
	path := writeWeightsFile(t, weightsFile{
		Weight: [][]float64{
			{1, 0},
			{0, 1},
		},
		Bias: []float64{0, 5},
	})

	c, err := LoadClassifier(path, []string{"none", "hello"}, 2)
	require.NoError(t, err)

	probs := c.Predict(mat.NewDense(1, 2, []float64{1, 1}))
	idx, _ := Argmax(probs)
	require.Equal(t, 1, idx)
	require.Equal(t, []string{"none", "hello"}, c.Labels())
}

func TestLoadClassifier_ProbabilitiesSumToOne(t *testing.T) {
	path := writeWeightsFile(t, weightsFile{
		Weight: [][]float64{{0.3, -0.2}, {-0.1, 0.4}, {0.2, 0.2}},
		Bias:   []float64{0, 0, 0},
	})
	c, err := LoadClassifier(path, []string{"a", "b", "c"}, 2)
	require.NoError(t, err)

	probs := c.Predict(mat.NewDense(1, 2, []float64{0.5, -0.5}))
	var sum float64
	for _, p := range probs {
		sum += p
	}
	require.InDelta(t, 1.0, sum, 1e-9)
}

func TestLoadClassifier_RowCountMismatchReturnsError(t *testing.T) {
	path := writeWeightsFile(t, weightsFile{
		Weight: [][]float64{{1, 0}},
		Bias:   []float64{0},
	})
	_, err := LoadClassifier(path, []string{"a", "b"}, 2)
	require.Error(t, err)
}

func TestLoadClassifier_ColumnCountMismatchReturnsError(t *testing.T) {
	path := writeWeightsFile(t, weightsFile{
		Weight: [][]float64{{1, 0, 0}},
		Bias:   []float64{0},
	})
	_, err := LoadClassifier(path, []string{"a"}, 2)
	require.Error(t, err)
}

func TestLoadClassifier_MissingFileReturnsError(t *testing.T) {
	_, err := LoadClassifier(filepath.Join(t.TempDir(), "missing.json"), []string{"a"}, 2)
	require.Error(t, err)
}

func TestSoftmax_UniformLogitsProduceUniformProbabilities(t *testing.T) {
	probs := softmax([]float64{1, 1, 1})
	for _, p := range probs {
		require.InDelta(t, 1.0/3, p, 1e-9)
	}
}

func TestArgmax_ReturnsHighestIndexAndValue(t *testing.T) {
	idx, val := Argmax([]float64{0.1, 0.7, 0.2})
	require.Equal(t, 1, idx)
	require.InDelta(t, 0.7, val, 1e-9)
}
