package training

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"station-forecast-lab/internal/domain"
	"station-forecast-lab/internal/model"
)

// SearchFolds is the number of expanding folds used to score a candidate.
const SearchFolds = 3

// DefaultGrid returns the candidate parameter sets of the grid search.
func DefaultGrid() []model.Params {
	shapes := []struct {
		depth int
		lr    float64
		n     int
	}{
		{4, 0.1, 200},
		{5, 0.1, 250},
		{6, 0.1, 200},
		{6, 0.15, 250},
		{7, 0.1, 300},
	}
	grid := make([]model.Params, 0, len(shapes))
	for _, s := range shapes {
		p := model.DefaultParams()
		p.MaxDepth = s.depth
		p.LearningRate = s.lr
		p.NEstimators = s.n
		p.Subsample = 0.8
		p.ColsampleByTree = 0.8
		grid = append(grid, p)
	}
	return grid
}

// candidateScore is the mean validation accuracy of one candidate.
type candidateScore struct {
	params model.Params
	mean   float64
	folds  int
}

// searchGrid scores every candidate with temporal CV in parallel. The best
// mean accuracy wins; ties go to the earlier candidate. Candidates without
// any usable fold score zero.
func searchGrid(ctx context.Context, grid []model.Params, X [][]float64, y []int, parallelism int) (model.Params, []candidateScore, error) {
	if len(grid) == 0 {
		return model.DefaultParams(), nil, nil
	}
	if parallelism <= 0 {
		parallelism = runtime.GOMAXPROCS(0)
	}

	scores := make([]candidateScore, len(grid))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for i, params := range grid {
		i, params := i, params
		g.Go(func() error {
			mean, n, err := crossValidate(ctx, params, X, y, SearchFolds, false)
			if err != nil {
				return fmt.Errorf("candidate %d (%s): %w", i, params, err)
			}
			scores[i] = candidateScore{params: params, mean: mean, folds: n}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return model.Params{}, nil, err
	}

	best := 0
	for i := 1; i < len(scores); i++ {
		if scores[i].mean > scores[best].mean {
			best = i
		}
	}
	return scores[best].params, scores, nil
}

// crossValidate fits one model per expanding fold and returns the mean
// validation accuracy and the number of folds scored. With earlyStop, each
// fold monitors its own validation window.
func crossValidate(ctx context.Context, params model.Params, X [][]float64, y []int, nSplits int, earlyStop bool) (float64, int, error) {
	folds := temporalFolds(len(X), nSplits)
	if len(folds) == 0 {
		return 0, 0, nil
	}

	sum := 0.0
	for _, f := range folds {
		if err := ctx.Err(); err != nil {
			return 0, 0, err
		}
		trainX, trainY := X[:f.trainEnd], y[:f.trainEnd]
		valX, valY := X[f.trainEnd:f.valEnd], y[f.trainEnd:f.valEnd]

		clf := model.NewClassifier(params, domain.NumClasses)
		var eval *model.EvalSet
		if earlyStop {
			eval = &model.EvalSet{X: valX, Y: valY}
		}
		if err := clf.Fit(trainX, trainY, eval); err != nil {
			return 0, 0, err
		}
		acc, err := clf.Score(valX, valY)
		if err != nil {
			return 0, 0, err
		}
		sum += acc
	}
	return sum / float64(len(folds)), len(folds), nil
}
