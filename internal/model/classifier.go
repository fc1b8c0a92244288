// Package model implements a multi-class gradient-boosted tree classifier
// with softmax objective, histogram split finding, row and column
// subsampling and early stopping on an evaluation set.
package model

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
)

// EvalSet is held-out data monitored for early stopping.
type EvalSet struct {
	X [][]float64
	Y []int
}

// Classifier is a fitted (or empty) boosted ensemble. Rounds[i][k] is the
// tree of class k at boosting round i.
type Classifier struct {
	Params        Params    `json:"params"`
	NumClasses    int       `json:"num_classes"`
	NumFeatures   int       `json:"num_features"`
	Rounds        [][]Tree  `json:"rounds"`
	BestIteration int       `json:"best_iteration"`
	BestScore     float64   `json:"best_score"` // eval mlogloss at BestIteration, 0 without eval set
	EvalHistory   []float64 `json:"eval_history,omitempty"`
}

// NewClassifier creates an untrained classifier.
func NewClassifier(params Params, numClasses int) *Classifier {
	return &Classifier{Params: params, NumClasses: numClasses}
}

// Fit trains on X and y. When eval is non-nil, eval mlogloss is tracked each
// round; with Params.EarlyStoppingRounds > 0 training stops after that many
// rounds without improvement and the ensemble is truncated to the best round.
func (c *Classifier) Fit(X [][]float64, y []int, eval *EvalSet) error {
	if len(X) == 0 {
		return ErrEmptyInput
	}
	if len(X) != len(y) {
		return fmt.Errorf("%w: %d rows, %d labels", ErrShapeMismatch, len(X), len(y))
	}
	if c.NumClasses < 2 {
		return fmt.Errorf("%w: need at least 2 classes, got %d", ErrShapeMismatch, c.NumClasses)
	}
	nFeatures := len(X[0])
	if err := c.checkData(X, y, nFeatures); err != nil {
		return err
	}
	if eval != nil {
		if len(eval.X) != len(eval.Y) {
			return fmt.Errorf("eval set: %w", ErrShapeMismatch)
		}
		if err := c.checkData(eval.X, eval.Y, nFeatures); err != nil {
			return fmt.Errorf("eval set: %w", err)
		}
		if len(eval.X) == 0 {
			eval = nil
		}
	}

	p := c.Params.withDefaults()
	c.Params = p
	c.NumFeatures = nFeatures
	c.Rounds = nil
	c.EvalHistory = nil
	c.BestIteration, c.BestScore = 0, 0

	rng := rand.New(rand.NewSource(p.Seed))
	bn := newBinner(X, nFeatures, p.MaxBins)
	builder := &treeBuilder{
		bins:   bn.transform(X),
		binner: bn,
		grad:   make([]float64, len(X)),
		hess:   make([]float64, len(X)),
		params: p,
	}

	K := c.NumClasses
	scores := newScores(len(X), K)
	var evalScores [][]float64
	if eval != nil {
		evalScores = newScores(len(eval.X), K)
	}
	prob := make([]float64, K)
	allRows := make([]int, len(X))
	for i := range allRows {
		allRows[i] = i
	}
	allFeatures := make([]int, nFeatures)
	for f := range allFeatures {
		allFeatures[f] = f
	}

	best, sinceBest := math.Inf(1), 0
	for round := 0; round < p.NEstimators; round++ {
		rows := sample(rng, allRows, p.Subsample)
		trees := make([]Tree, K)
		for k := 0; k < K; k++ {
			for i := range X {
				softmax(scores[i], prob)
				target := 0.0
				if y[i] == k {
					target = 1
				}
				builder.grad[i] = prob[k] - target
				builder.hess[i] = math.Max(2*prob[k]*(1-prob[k]), 1e-16)
			}
			builder.features = sample(rng, allFeatures, p.ColsampleByTree)
			trees[k] = builder.build(rows)
		}
		// scores are updated after all classes so every tree of a round sees
		// the same gradients
		for k := range trees {
			for i, row := range X {
				scores[i][k] += trees[k].predict(row)
			}
		}
		c.Rounds = append(c.Rounds, trees)

		if eval == nil {
			continue
		}
		for k := range trees {
			for i, row := range eval.X {
				evalScores[i][k] += trees[k].predict(row)
			}
		}
		loss := logLoss(evalScores, eval.Y)
		c.EvalHistory = append(c.EvalHistory, loss)
		if loss < best {
			best, sinceBest = loss, 0
			c.BestIteration, c.BestScore = round, loss
		} else {
			sinceBest++
			if p.EarlyStoppingRounds > 0 && sinceBest >= p.EarlyStoppingRounds {
				break
			}
		}
	}

	if eval != nil && p.EarlyStoppingRounds > 0 {
		c.Rounds = c.Rounds[:c.BestIteration+1]
	} else {
		c.BestIteration = len(c.Rounds) - 1
	}
	return nil
}

func (c *Classifier) checkData(X [][]float64, y []int, nFeatures int) error {
	for i, row := range X {
		if len(row) != nFeatures {
			return fmt.Errorf("%w: row %d has %d features, want %d", ErrShapeMismatch, i, len(row), nFeatures)
		}
	}
	for i, label := range y {
		if label < 0 || label >= c.NumClasses {
			return fmt.Errorf("%w: row %d label %d", ErrInvalidLabel, i, label)
		}
	}
	return nil
}

// PredictProba returns per-class probabilities for each row.
func (c *Classifier) PredictProba(X [][]float64) ([][]float64, error) {
	if len(c.Rounds) == 0 {
		return nil, ErrNotTrained
	}
	out := make([][]float64, len(X))
	raw := make([]float64, c.NumClasses)
	for i, row := range X {
		if len(row) != c.NumFeatures {
			return nil, fmt.Errorf("%w: row %d has %d features, want %d", ErrShapeMismatch, i, len(row), c.NumFeatures)
		}
		for k := range raw {
			raw[k] = 0
		}
		for _, trees := range c.Rounds {
			for k := range trees {
				raw[k] += trees[k].predict(row)
			}
		}
		out[i] = make([]float64, c.NumClasses)
		softmax(raw, out[i])
	}
	return out, nil
}

// Predict returns the most probable class of each row. Ties go to the lower class.
func (c *Classifier) Predict(X [][]float64) ([]int, error) {
	proba, err := c.PredictProba(X)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(proba))
	for i, p := range proba {
		out[i] = Argmax(p)
	}
	return out, nil
}

// Score returns the accuracy on X, y.
func (c *Classifier) Score(X [][]float64, y []int) (float64, error) {
	if len(X) != len(y) {
		return 0, ErrShapeMismatch
	}
	if len(X) == 0 {
		return 0, ErrEmptyInput
	}
	pred, err := c.Predict(X)
	if err != nil {
		return 0, err
	}
	correct := 0
	for i := range pred {
		if pred[i] == y[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(y)), nil
}

// FeatureImportances returns total split gain per feature normalized to sum 1.
func (c *Classifier) FeatureImportances() []float64 {
	imp := make([]float64, c.NumFeatures)
	total := 0.0
	for _, trees := range c.Rounds {
		for _, t := range trees {
			for _, n := range t.Nodes {
				if n.Left >= 0 {
					imp[n.Feature] += n.Gain
					total += n.Gain
				}
			}
		}
	}
	if total > 0 {
		for f := range imp {
			imp[f] /= total
		}
	}
	return imp
}

// Save writes the classifier as JSON.
func (c *Classifier) Save(w io.Writer) error {
	if len(c.Rounds) == 0 {
		return ErrNotTrained
	}
	return json.NewEncoder(w).Encode(c)
}

// Load reads a classifier written by Save.
func Load(r io.Reader) (*Classifier, error) {
	var c Classifier
	if err := json.NewDecoder(r).Decode(&c); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	if len(c.Rounds) == 0 {
		return nil, ErrNotTrained
	}
	for i, trees := range c.Rounds {
		if len(trees) != c.NumClasses {
			return nil, fmt.Errorf("%w: round %d has %d trees, want %d", ErrShapeMismatch, i, len(trees), c.NumClasses)
		}
		for _, t := range trees {
			if err := t.validate(c.NumFeatures); err != nil {
				return nil, fmt.Errorf("round %d: %w", i, err)
			}
		}
	}
	return &c, nil
}

func (t *Tree) validate(nFeatures int) error {
	if len(t.Nodes) == 0 {
		return fmt.Errorf("%w: empty tree", ErrShapeMismatch)
	}
	for i, n := range t.Nodes {
		if n.Left < 0 {
			continue
		}
		if n.Feature < 0 || n.Feature >= nFeatures ||
			n.Left <= i || n.Left >= len(t.Nodes) || n.Right <= i || n.Right >= len(t.Nodes) {
			return fmt.Errorf("%w: malformed node %d", ErrShapeMismatch, i)
		}
	}
	return nil
}

// Argmax returns the index of the largest value, the first on ties.
func Argmax(v []float64) int {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}

func newScores(n, k int) [][]float64 {
	out := make([][]float64, n)
	for i := range out {
		out[i] = make([]float64, k)
	}
	return out
}

func softmax(raw, out []float64) {
	maxV := raw[0]
	for _, v := range raw[1:] {
		if v > maxV {
			maxV = v
		}
	}
	sum := 0.0
	for k, v := range raw {
		out[k] = math.Exp(v - maxV)
		sum += out[k]
	}
	for k := range out {
		out[k] /= sum
	}
}

func logLoss(scores [][]float64, y []int) float64 {
	prob := make([]float64, len(scores[0]))
	total := 0.0
	for i, s := range scores {
		softmax(s, prob)
		total -= math.Log(math.Max(prob[y[i]], 1e-15))
	}
	return total / float64(len(scores))
}

// sample returns a sorted random subset holding frac of items, at least one.
func sample(rng *rand.Rand, items []int, frac float64) []int {
	if frac >= 1 {
		return items
	}
	n := int(math.Round(frac * float64(len(items))))
	if n < 1 {
		n = 1
	}
	picked := rng.Perm(len(items))[:n]
	mark := make([]bool, len(items))
	for _, i := range picked {
		mark[i] = true
	}
	out := make([]int, 0, n)
	for i, ok := range mark {
		if ok {
			out = append(out, items[i])
		}
	}
	return out
}
