package model

import (
	"fmt"

	"github.com/i474232898/caci-forecaster/internal/forecast"
)

// leaf marks a node without children in the array tree encoding.
const leaf = -1

// TreeFile is one regression tree in array form: node i is a leaf when
// ChildrenLeft[i] == -1, otherwise the walk goes left when
// x[Feature[i]] <= Threshold[i].
type TreeFile struct {
	ChildrenLeft  []int     `json:"children_left" yaml:"children_left"`
	ChildrenRight []int     `json:"children_right" yaml:"children_right"`
	Feature       []int     `json:"feature" yaml:"feature"`
	Threshold     []float64 `json:"threshold" yaml:"threshold"`
	Value         []float64 `json:"value" yaml:"value"`
}

type tree struct {
	left, right []int
	feature     []int
	threshold   []float64
	value       []float64
}

func newTree(f TreeFile, width int) (*tree, error) {
	n := len(f.ChildrenLeft)
	if n == 0 {
		return nil, fmt.Errorf("tree has no nodes")
	}
	if len(f.ChildrenRight) != n || len(f.Feature) != n || len(f.Threshold) != n || len(f.Value) != n {
		return nil, fmt.Errorf("tree arrays differ in length")
	}
	for i := 0; i < n; i++ {
		l, r := f.ChildrenLeft[i], f.ChildrenRight[i]
		if l == leaf {
			continue
		}
		// Children always come after their parent, which also rules out cycles.
		if l <= i || l >= n || r <= i || r >= n {
			return nil, fmt.Errorf("node %d has children out of range (%d, %d)", i, l, r)
		}
		if f.Feature[i] < 0 || f.Feature[i] >= width {
			return nil, fmt.Errorf("node %d splits on feature %d outside width %d", i, f.Feature[i], width)
		}
	}
	return &tree{
		left:      f.ChildrenLeft,
		right:     f.ChildrenRight,
		feature:   f.Feature,
		threshold: f.Threshold,
		value:     f.Value,
	}, nil
}

func (t *tree) predict(x []float64) float64 {
	node := 0
	for t.left[node] != leaf {
		if x[t.feature[node]] <= t.threshold[node] {
			node = t.left[node]
		} else {
			node = t.right[node]
		}
	}
	return t.value[node]
}

// Forest is a random forest regressor: the mean of its trees' outputs.
type Forest struct {
	width int
	trees []*tree
}

// NewForest validates trees against the expected input width.
func NewForest(files []TreeFile, width int) (*Forest, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("forest has no trees")
	}
	f := &Forest{width: width, trees: make([]*tree, 0, len(files))}
	for i, tf := range files {
		t, err := newTree(tf, width)
		if err != nil {
			return nil, fmt.Errorf("tree %d: %w", i, err)
		}
		f.trees = append(f.trees, t)
	}
	return f, nil
}

// Predict implements forecast.Predictor.
func (f *Forest) Predict(x forecast.ScaledFeatureVector) (forecast.ScaledPrediction, error) {
	if len(x) != f.width {
		return 0, fmt.Errorf("forest expects %d features, got %d", f.width, len(x))
	}
	var sum float64
	for _, t := range f.trees {
		sum += t.predict(x)
	}
	return forecast.ScaledPrediction(sum / float64(len(f.trees))), nil
}
