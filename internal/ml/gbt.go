package ml

import (
	"refuge/pkg/errors"
)

// Objective identifies the loss a model was trained against.
type Objective string

const (
	// ObjectiveSquaredError trains toward the conditional mean
	ObjectiveSquaredError Objective = "reg:squarederror"

	// ObjectiveQuantile trains toward the Alpha conditional quantile
	ObjectiveQuantile Objective = "reg:quantileerror"
)

// TreeNode is a single node of a regression tree. Interior nodes route on
// x[Feature] < Threshold; leaves carry the additive prediction value.
type TreeNode struct {
	Leaf      bool
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Value     float64
}

// Tree is a regression tree stored as a flat node array (index 0 is the root).
type Tree struct {
	Nodes []TreeNode
}

// Predict walks the tree for a single feature vector.
func (t *Tree) Predict(x []float64) float64 {
	i := 0
	for {
		n := &t.Nodes[i]
		if n.Leaf {
			return n.Value
		}
		if x[n.Feature] < n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// Ensemble is a gradient-boosted regression tree model. It is immutable after
// training and safe for concurrent Predict calls.
type Ensemble struct {
	Trees        []Tree
	Base         float64
	LearningRate float64
	NumFeatures  int
	Objective    Objective
	Alpha        float64
}

// Predict returns the model output for one feature vector.
func (m *Ensemble) Predict(x []float64) (float64, error) {
	if m == nil || m.NumFeatures == 0 {
		return 0, errors.New("model is not initialized")
	}
	if len(x) != m.NumFeatures {
		return 0, errors.Newf("expected %d features, got %d", m.NumFeatures, len(x))
	}

	pred := m.Base
	for i := range m.Trees {
		pred += m.LearningRate * m.Trees[i].Predict(x)
	}
	return pred, nil
}
