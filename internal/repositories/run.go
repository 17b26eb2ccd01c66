package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/tidal-mcp/internal/models"
	"github.com/desertthunder/tidal-mcp/internal/shared"
)

const runColumns = `id, seed_count, limit_per_seed, dedup, candidate_count, failed_seeds, duration_ms, created_at`

// ErrRunNotFound is returned when no recommendation run has the requested ID.
var ErrRunNotFound = errors.New("recommendation run not found")

// RecommendationRunRepository implements [models.Repository] for [models.RecommendationRun].
//
// Runs are append-only; Update always fails.
type RecommendationRunRepository struct {
	db *sql.DB
}

// NewRecommendationRunRepository creates a new [RecommendationRunRepository].
func NewRecommendationRunRepository(db *sql.DB) *RecommendationRunRepository {
	return &RecommendationRunRepository{db: db}
}

// Create inserts a run with a generated ID
func (r *RecommendationRunRepository) Create(run *models.RecommendationRun) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	run.SetID(shared.GenerateID())

	query := `INSERT INTO recommendation_runs (` + runColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.Exec(query,
		run.ID(), run.SeedCount, run.LimitPerSeed, run.Dedup, run.CandidateCount, run.FailedSeeds,
		run.Elapsed.Milliseconds(), run.CreatedAt().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert recommendation run: %w", err)
	}

	return nil
}

// Get retrieves a run by ID
func (r *RecommendationRunRepository) Get(id string) (*models.RecommendationRun, error) {
	run, err := scanRun(r.db.QueryRow(`SELECT `+runColumns+` FROM recommendation_runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return run, err
}

// Update is not supported for runs
func (r *RecommendationRunRepository) Update(run *models.RecommendationRun) error {
	return fmt.Errorf("%w: recommendation runs are immutable", shared.ErrNotImplemented)
}

// Delete removes a run by ID
func (r *RecommendationRunRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM recommendation_runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete recommendation run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}

	return nil
}

// List retrieves runs newest first. Supports the "limit" (int) criterion.
func (r *RecommendationRunRepository) List(criteria map[string]any) ([]*models.RecommendationRun, error) {
	query := `SELECT ` + runColumns + ` FROM recommendation_runs ORDER BY created_at DESC`
	args := []any{}

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query recommendation runs: %w", err)
	}
	defer rows.Close()

	runs := []*models.RecommendationRun{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return runs, nil
}

func scanRun(row scanner) (*models.RecommendationRun, error) {
	var (
		id         string
		seeds      int
		limit      int
		dedup      bool
		candidates int
		failed     int
		durationMS int64
		createdAt  time.Time
	)

	err := row.Scan(&id, &seeds, &limit, &dedup, &candidates, &failed, &durationMS, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan recommendation run: %w", err)
	}

	run := models.NewRecommendationRun(seeds, limit, dedup, candidates, failed, time.Duration(durationMS)*time.Millisecond)
	run.SetID(id)
	run.SetCreatedAt(createdAt)
	return run, nil
}
