package models

import (
	"errors"
	"time"
)

// RecommendationRun records the shape and outcome of one batch recommendation.
type RecommendationRun struct {
	id             string
	SeedCount      int
	LimitPerSeed   int
	Dedup          bool
	CandidateCount int
	FailedSeeds    int
	Elapsed        time.Duration
	createdAt      time.Time
}

// NewRecommendationRun creates an unsaved run.
func NewRecommendationRun(seeds, limit int, dedup bool, candidates, failed int, elapsed time.Duration) *RecommendationRun {
	return &RecommendationRun{
		SeedCount:      seeds,
		LimitPerSeed:   limit,
		Dedup:          dedup,
		CandidateCount: candidates,
		FailedSeeds:    failed,
		Elapsed:        elapsed,
		createdAt:      time.Now().UTC(),
	}
}

func (r *RecommendationRun) ID() string           { return r.id }
func (r *RecommendationRun) CreatedAt() time.Time { return r.createdAt }
func (r *RecommendationRun) UpdatedAt() time.Time { return r.createdAt }

func (r *RecommendationRun) SetID(id string)          { r.id = id }
func (r *RecommendationRun) SetCreatedAt(t time.Time) { r.createdAt = t }

func (r *RecommendationRun) Validate() error {
	if r.SeedCount <= 0 {
		return errors.New("run must have at least one seed")
	}
	if r.FailedSeeds < 0 || r.FailedSeeds > r.SeedCount {
		return errors.New("failed seed count out of range")
	}
	return nil
}
