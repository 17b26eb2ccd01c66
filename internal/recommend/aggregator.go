package recommend

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tidal-mcp/internal/metrics"
	"github.com/desertthunder/tidal-mcp/internal/models"
	"github.com/desertthunder/tidal-mcp/internal/shared"
)

const (
	DefaultMaxWorkers   = 50
	DefaultTaskTimeout  = 10 * time.Second
	DefaultLimitPerSeed = 20
)

// Lookup returns tracks similar to id, at most limit of them.
//
// Implementations clamp limit to [shared.MinLimit, shared.MaxLimit].
type Lookup interface {
	SimilarTracks(ctx context.Context, id models.TrackID, limit int) ([]models.TidalTrack, error)
}

// Request describes one batch recommendation.
type Request struct {
	SeedIDs      []models.TrackID
	LimitPerSeed int
	Dedup        bool
}

// Result is the outcome of one seed's task: candidates tagged with Seed, or Err.
type Result struct {
	Seed       models.TrackID
	Candidates []models.Track
	Err        error
}

// Report is the merged outcome of a batch.
type Report struct {
	Candidates   []models.Track
	LimitPerSeed int
	FailedSeeds  []models.TrackID
	Duplicates   int
	Elapsed      time.Duration
}

// Options configures an [Aggregator]. Zero values take the package defaults.
type Options struct {
	MaxWorkers  int
	TaskTimeout time.Duration
	Logger      *log.Logger
}

// Aggregator runs batch recommendations against a [Lookup].
type Aggregator struct {
	lookup     Lookup
	maxWorkers int
	timeout    time.Duration
	logger     *log.Logger
}

// NewAggregator creates an [Aggregator] over lookup.
func NewAggregator(lookup Lookup, opts Options) *Aggregator {
	if opts.MaxWorkers <= 0 {
		opts.MaxWorkers = DefaultMaxWorkers
	}
	if opts.TaskTimeout <= 0 {
		opts.TaskTimeout = DefaultTaskTimeout
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	return &Aggregator{
		lookup:     lookup,
		maxWorkers: opts.MaxWorkers,
		timeout:    opts.TaskTimeout,
		logger:     shared.WithLogger(opts.Logger, "component", "recommend"),
	}
}

// Aggregate returns only the merged candidates for req.
//
// It is the plain entry point for callers that do not report failures. The backend
// and CLI use [Aggregator.Run], which also returns failed seeds and timings.
func (a *Aggregator) Aggregate(ctx context.Context, req Request) ([]models.Track, error) {
	report, err := a.Run(ctx, req)
	if err != nil {
		return nil, err
	}
	return report.Candidates, nil
}

// Run fetches similar tracks for every seed concurrently and folds the results in completion order.
//
// It always waits for every task. Per-seed failures degrade to an empty contribution.
func (a *Aggregator) Run(ctx context.Context, req Request) (*Report, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	start := time.Now()
	limit := shared.BoundLimit(a.logger, req.LimitPerSeed, shared.MaxLimit)
	workers := min(len(req.SeedIDs), a.maxWorkers)

	a.logger.Debug("aggregation started", "seeds", len(req.SeedIDs), "limit", limit, "dedup", req.Dedup, "workers", workers)

	jobs := make(chan models.TrackID, len(req.SeedIDs))
	results := make(chan Result, len(req.SeedIDs))

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go a.worker(ctx, &wg, limit, jobs, results)
	}

	for _, seed := range req.SeedIDs {
		jobs <- seed
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	report := &Report{
		Candidates:   []models.Track{},
		LimitPerSeed: limit,
		FailedSeeds:  []models.TrackID{},
	}
	seen := make(map[models.TrackID]struct{})

	for res := range results {
		if res.Err != nil {
			a.logger.Warn("seed lookup failed", "seed", res.Seed, "err", res.Err)
			metrics.RecordSeedFetch(outcome(res.Err))
			report.FailedSeeds = append(report.FailedSeeds, res.Seed)
			continue
		}
		metrics.RecordSeedFetch(metrics.OutcomeOK)

		for _, c := range res.Candidates {
			if req.Dedup {
				if _, dup := seen[c.ID]; dup {
					report.Duplicates++
					continue
				}
				seen[c.ID] = struct{}{}
			}
			report.Candidates = append(report.Candidates, c)
		}
	}

	report.Elapsed = time.Since(start)
	metrics.RecordAggregation(report.Elapsed, len(report.Candidates), report.Duplicates)

	a.logger.Info("aggregation finished",
		"seeds", len(req.SeedIDs),
		"candidates", len(report.Candidates),
		"failed", len(report.FailedSeeds),
		"duplicates", report.Duplicates,
		"elapsed", report.Elapsed,
	)

	return report, nil
}

func (a *Aggregator) worker(ctx context.Context, wg *sync.WaitGroup, limit int, jobs <-chan models.TrackID, results chan<- Result) {
	defer wg.Done()

	for seed := range jobs {
		results <- a.fetch(ctx, seed, limit)
	}
}

// fetch runs one seed's lookup under the task timeout. It never returns a nil Result.
func (a *Aggregator) fetch(ctx context.Context, seed models.TrackID, limit int) (res Result) {
	res.Seed = seed

	defer func() {
		if r := recover(); r != nil {
			res = Result{Seed: seed, Err: fmt.Errorf("%w: seed %s: panic: %v", shared.ErrUpstreamUnavailable, seed, r)}
		}
	}()

	tctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	raw, err := a.lookup.SimilarTracks(tctx, seed, limit)
	if err != nil {
		res.Err = fmt.Errorf("%w: seed %s: %w", shared.ErrUpstreamUnavailable, seed, err)
		return res
	}

	if len(raw) > limit {
		raw = raw[:limit]
	}
	res.Candidates = models.FormatTracks(raw, &seed)
	return res
}

func validate(req Request) error {
	if len(req.SeedIDs) == 0 {
		return fmt.Errorf("%w: at least one seed track id is required", shared.ErrInvalidRequest)
	}
	for i, id := range req.SeedIDs {
		if id == "" {
			return fmt.Errorf("%w: seed track id at position %d is empty", shared.ErrInvalidRequest, i)
		}
	}
	return nil
}

func outcome(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return metrics.OutcomeTimeout
	}
	return metrics.OutcomeFailed
}
