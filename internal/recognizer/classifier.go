// SPDX-License-Identifier: MIT

package recognizer

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"gonum.org/v1/gonum/mat"
)

// weightsFile is the on-disk JSON shape of a classifier's trained weights:
// a single dense layer mapping a flattened (sequence_length*feature_dim)
// input onto len(labels) logits. Weight is stored row-major, one row of
// length InputDim per label.
type weightsFile struct {
	Weight [][]float64 `json:"weight"`
	Bias   []float64   `json:"bias"`
}

// Classifier runs a loaded linear model over a preprocessed sequence
// window and returns a probability vector over its label vocabulary. It
// is loaded once at worker startup; model load failure is fatal to the
// worker.
type Classifier struct {
	labels []string
	weight *mat.Dense // (numLabels, inputDim)
	bias   *mat.VecDense
}

// LoadClassifier reads weights from path and builds a Classifier over the
// given label vocabulary. inputDim must equal sequenceLength*featureDim,
// the flattened size of the tensor Preprocess produces.
func LoadClassifier(path string, labels []string, inputDim int) (*Classifier, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path resolved by the artifact resolver's confined cache
	if err != nil {
		return nil, fmt.Errorf("read weights file: %w", err)
	}

	var wf weightsFile
	if err := json.Unmarshal(data, &wf); err != nil {
		return nil, fmt.Errorf("decode weights file: %w", err)
	}
	if len(wf.Weight) != len(labels) {
		return nil, fmt.Errorf("weights file has %d label rows, expected %d", len(wf.Weight), len(labels))
	}
	if len(wf.Bias) != len(labels) {
		return nil, fmt.Errorf("weights file has %d bias entries, expected %d", len(wf.Bias), len(labels))
	}

	weight := mat.NewDense(len(labels), inputDim, nil)
	for row, values := range wf.Weight {
		if len(values) != inputDim {
			return nil, fmt.Errorf("weights file row %d has %d columns, expected %d", row, len(values), inputDim)
		}
		weight.SetRow(row, values)
	}

	c := &Classifier{
		labels: labels,
		weight: weight,
		bias:   mat.NewVecDense(len(labels), wf.Bias),
	}

	// Warm-up inference on a zero tensor pays any first-call cost upfront,
	// before the worker starts accepting client frames. Predict flattens
	// its input regardless of row/column split, so shape (1, inputDim) is
	// as good as the real (sequenceLength, featureDim) shape for this.
	c.Predict(mat.NewDense(1, inputDim, nil))
	return c, nil
}

// Labels returns the classifier's label vocabulary, in descriptor order.
func (c *Classifier) Labels() []string {
	return c.labels
}

// Predict runs the model over a flattened input tensor and returns a
// probability vector over Labels(), in the same order.
func (c *Classifier) Predict(tensor *mat.Dense) []float64 {
	rows, cols := tensor.Dims()
	flat := make([]float64, rows*cols)
	for r := 0; r < rows; r++ {
		copy(flat[r*cols:(r+1)*cols], tensor.RawRowView(r))
	}
	input := mat.NewVecDense(len(flat), flat)

	var logits mat.VecDense
	logits.MulVec(c.weight, input)
	logits.AddVec(&logits, c.bias)

	return softmax(logits.RawVector().Data)
}

func softmax(logits []float64) []float64 {
	max := math.Inf(-1)
	for _, v := range logits {
		if v > max {
			max = v
		}
	}
	exp := make([]float64, len(logits))
	var sum float64
	for i, v := range logits {
		e := math.Exp(v - max)
		exp[i] = e
		sum += e
	}
	if sum == 0 {
		return exp
	}
	for i := range exp {
		exp[i] /= sum
	}
	return exp
}

// Argmax returns the index and value of the largest entry in probs.
func Argmax(probs []float64) (index int, value float64) {
	value = math.Inf(-1)
	for i, v := range probs {
		if v > value {
			value = v
			index = i
		}
	}
	return index, value
}
