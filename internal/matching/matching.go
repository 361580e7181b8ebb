// Package matching ranks the workers able to take a classified job.
package matching

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/garnizeh/fixit/pkg/models"
)

// DefaultLimit is the shortlist size used when the caller passes n <= 0.
const DefaultLimit = 3

// WorkerLister is the slice of the worker directory the engine reads.
type WorkerLister interface {
	ListWorkers(ctx context.Context) ([]models.Worker, error)
}

type Engine struct {
	workers WorkerLister
	limit   int
}

func NewEngine(workers WorkerLister, limit int) *Engine {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Engine{workers: workers, limit: limit}
}

// Match returns up to the configured number of eligible workers for the analysis.
// No eligible worker is an empty result, not an error.
func (e *Engine) Match(ctx context.Context, analysis models.ServiceAnalysis) ([]models.Worker, error) {
	return e.MatchN(ctx, analysis, e.limit)
}

func (e *Engine) MatchN(ctx context.Context, analysis models.ServiceAnalysis, n int) ([]models.Worker, error) {
	all, err := e.workers.ListWorkers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list workers: %w", err)
	}
	return Rank(all, analysis.JobType, n), nil
}

// Rank filters workers to those eligible for jobType and orders them:
// "Available Now" first, then ascending distance (unknown distance last),
// then descending rating. The input order breaks remaining ties.
func Rank(workers []models.Worker, jobType models.JobCategory, n int) []models.Worker {
	if n <= 0 {
		n = DefaultLimit
	}

	out := make([]models.Worker, 0, len(workers))
	for _, w := range workers {
		if w.Eligible() && w.HasSkill(jobType) {
			out = append(out, w)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		aNow, bNow := a.Availability == models.AvailableNow, b.Availability == models.AvailableNow
		if aNow != bNow {
			return aNow
		}
		if da, db := distance(a), distance(b); da != db {
			return da < db
		}
		return a.Rating > b.Rating
	})

	if len(out) > n {
		out = out[:n]
	}
	return out
}

func distance(w models.Worker) float64 {
	if w.Distance == nil {
		return math.Inf(1)
	}
	return *w.Distance
}
