package ml

import (
	"math"
	"sort"

	"refuge/pkg/errors"
)

// TrainParams controls gradient boosting.
type TrainParams struct {
	Trees        int
	MaxDepth     int
	MinLeaf      int
	LearningRate float64
	Objective    Objective
	Alpha        float64 // quantile level, used only with ObjectiveQuantile
}

// DefaultParams returns the training defaults used by the offline trainer.
func DefaultParams() TrainParams {
	return TrainParams{
		Trees:        100,
		MaxDepth:     6,
		MinLeaf:      2,
		LearningRate: 0.1,
		Objective:    ObjectiveSquaredError,
	}
}

// Train fits a boosted tree ensemble on the given samples.
func Train(x [][]float64, y []float64, p TrainParams) (*Ensemble, error) {
	if len(x) == 0 || len(x) != len(y) {
		return nil, errors.Newf("invalid training set: %d feature rows, %d targets", len(x), len(y))
	}
	numFeatures := len(x[0])
	for i := range x {
		if len(x[i]) != numFeatures {
			return nil, errors.Newf("inconsistent feature width at row %d", i)
		}
	}
	if p.Objective == ObjectiveQuantile && (p.Alpha <= 0 || p.Alpha >= 1) {
		return nil, errors.Newf("quantile alpha must be in (0, 1), got %g", p.Alpha)
	}
	if p.Trees <= 0 || p.MaxDepth <= 0 || p.LearningRate <= 0 {
		return nil, errors.New("trees, max depth and learning rate must be positive")
	}
	if p.MinLeaf < 1 {
		p.MinLeaf = 1
	}

	var base float64
	switch p.Objective {
	case ObjectiveSquaredError:
		base = mean(y)
	case ObjectiveQuantile:
		base = quantile(y, p.Alpha)
	default:
		return nil, errors.Newf("unsupported objective: %s", p.Objective)
	}

	model := &Ensemble{
		Base:         base,
		LearningRate: p.LearningRate,
		NumFeatures:  numFeatures,
		Objective:    p.Objective,
		Alpha:        p.Alpha,
	}

	pred := make([]float64, len(y))
	for i := range pred {
		pred[i] = base
	}

	grad := make([]float64, len(y))
	residual := make([]float64, len(y))

	for round := 0; round < p.Trees; round++ {
		for i := range y {
			residual[i] = y[i] - pred[i]
			switch p.Objective {
			case ObjectiveSquaredError:
				grad[i] = residual[i]
			case ObjectiveQuantile:
				if y[i] > pred[i] {
					grad[i] = p.Alpha
				} else {
					grad[i] = p.Alpha - 1
				}
			}
		}

		b := &treeBuilder{x: x, target: grad, params: p}
		all := make([]int, len(y))
		for i := range all {
			all[i] = i
		}
		b.build(all, 0)

		// The tree structure is grown on gradients, but leaf values come
		// from the raw residuals so each step moves toward the objective's
		// optimal constant per leaf.
		for leaf, samples := range b.leafSamples {
			vals := make([]float64, len(samples))
			for j, s := range samples {
				vals[j] = residual[s]
			}
			switch p.Objective {
			case ObjectiveSquaredError:
				b.nodes[leaf].Value = mean(vals)
			case ObjectiveQuantile:
				b.nodes[leaf].Value = quantile(vals, p.Alpha)
			}
			for _, s := range samples {
				pred[s] += p.LearningRate * b.nodes[leaf].Value
			}
		}

		model.Trees = append(model.Trees, Tree{Nodes: b.nodes})
	}

	return model, nil
}

type treeBuilder struct {
	x      [][]float64
	target []float64
	params TrainParams

	nodes       []TreeNode
	leafSamples map[int][]int
}

func (b *treeBuilder) build(samples []int, depth int) int {
	idx := len(b.nodes)
	b.nodes = append(b.nodes, TreeNode{Leaf: true})

	if depth < b.params.MaxDepth && len(samples) >= 2*b.params.MinLeaf {
		if feature, threshold, ok := b.bestSplit(samples); ok {
			var left, right []int
			for _, s := range samples {
				if b.x[s][feature] < threshold {
					left = append(left, s)
				} else {
					right = append(right, s)
				}
			}

			b.nodes[idx].Leaf = false
			b.nodes[idx].Feature = feature
			b.nodes[idx].Threshold = threshold
			l := b.build(left, depth+1)
			r := b.build(right, depth+1)
			b.nodes[idx].Left = l
			b.nodes[idx].Right = r
			return idx
		}
	}

	if b.leafSamples == nil {
		b.leafSamples = make(map[int][]int)
	}
	b.leafSamples[idx] = samples
	return idx
}

// bestSplit finds the (feature, threshold) pair maximizing squared-error
// reduction over the sample subset. Returns ok=false when no split satisfies
// the minimum leaf size or all feature values are constant.
func (b *treeBuilder) bestSplit(samples []int) (int, float64, bool) {
	numFeatures := len(b.x[samples[0]])
	minLeaf := b.params.MinLeaf

	var total float64
	for _, s := range samples {
		total += b.target[s]
	}
	baseScore := total * total / float64(len(samples))

	bestGain := 0.0
	bestFeature := -1
	bestThreshold := 0.0

	order := make([]int, len(samples))
	for f := 0; f < numFeatures; f++ {
		copy(order, samples)
		sort.Slice(order, func(i, j int) bool {
			return b.x[order[i]][f] < b.x[order[j]][f]
		})

		leftSum := 0.0
		for i := 0; i < len(order)-1; i++ {
			leftSum += b.target[order[i]]

			v, next := b.x[order[i]][f], b.x[order[i+1]][f]
			if v == next {
				continue
			}

			leftN := i + 1
			rightN := len(order) - leftN
			if leftN < minLeaf || rightN < minLeaf {
				continue
			}

			rightSum := total - leftSum
			score := leftSum*leftSum/float64(leftN) + rightSum*rightSum/float64(rightN)
			gain := score - baseScore
			if gain > bestGain+1e-12 {
				bestGain = gain
				bestFeature = f
				bestThreshold = (v + next) / 2
			}
		}
	}

	if bestFeature < 0 {
		return 0, 0, false
	}
	return bestFeature, bestThreshold, true
}

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

// quantile computes the q-quantile with linear interpolation between order
// statistics, matching the numpy default.
func quantile(vals []float64, q float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)

	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
