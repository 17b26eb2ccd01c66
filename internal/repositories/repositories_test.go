package repositories

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/tidal-mcp/internal/models"
	"github.com/desertthunder/tidal-mcp/internal/shared"
	"golang.org/x/oauth2"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

func newTestSession(userID, access string) *models.Session {
	return models.NewSession(
		models.User{ID: userID, Username: "listener", Email: "l@example.com", CountryCode: "NO"},
		&oauth2.Token{AccessToken: access, RefreshToken: "refresh", TokenType: "Bearer", Expiry: time.Now().Add(time.Hour)},
	)
}

func TestSessionRepository(t *testing.T) {
	t.Run("Create", func(t *testing.T) {
		repo := NewSessionRepository(setupTestDB(t))
		session := newTestSession("42", "access")

		if err := repo.Create(session); err != nil {
			t.Fatalf("failed to create session: %v", err)
		}
		if session.ID() == "" {
			t.Error("session ID should be set after creation")
		}
	})

	t.Run("Create Validation Error", func(t *testing.T) {
		repo := NewSessionRepository(setupTestDB(t))
		session := models.NewSession(models.User{ID: "42"}, nil)

		if err := repo.Create(session); err == nil {
			t.Error("expected validation error")
		}
	})

	t.Run("Get Round Trips Token", func(t *testing.T) {
		repo := NewSessionRepository(setupTestDB(t))
		session := newTestSession("42", "access")
		if err := repo.Create(session); err != nil {
			t.Fatalf("failed to create session: %v", err)
		}

		got, err := repo.Get(session.ID())
		if err != nil {
			t.Fatalf("failed to get session: %v", err)
		}

		if got.User() != session.User() {
			t.Errorf("expected user %+v, got %+v", session.User(), got.User())
		}
		if got.Token().AccessToken != "access" || got.Token().RefreshToken != "refresh" {
			t.Errorf("unexpected token %+v", got.Token())
		}
		if !got.Token().Expiry.Equal(session.Token().Expiry) {
			t.Errorf("expected expiry %v, got %v", session.Token().Expiry, got.Token().Expiry)
		}
	})

	t.Run("Get Not Found", func(t *testing.T) {
		repo := NewSessionRepository(setupTestDB(t))

		_, err := repo.Get("missing")
		if !errors.Is(err, shared.ErrSessionNotFound) {
			t.Errorf("expected ErrSessionNotFound, got %v", err)
		}
	})

	t.Run("Latest", func(t *testing.T) {
		repo := NewSessionRepository(setupTestDB(t))

		if _, err := repo.Latest(); !errors.Is(err, shared.ErrSessionNotFound) {
			t.Errorf("expected ErrSessionNotFound on empty table, got %v", err)
		}

		older := newTestSession("1", "a")
		older.SetUpdatedAt(time.Now().Add(-time.Hour))
		newer := newTestSession("2", "b")
		repo.Create(older)
		repo.Create(newer)

		got, err := repo.Latest()
		if err != nil {
			t.Fatalf("failed to get latest session: %v", err)
		}
		if got.ID() != newer.ID() {
			t.Errorf("expected latest session %s, got %s", newer.ID(), got.ID())
		}
	})

	t.Run("Update", func(t *testing.T) {
		repo := NewSessionRepository(setupTestDB(t))
		session := newTestSession("42", "access")
		repo.Create(session)

		session.SetToken(&oauth2.Token{AccessToken: "refreshed", RefreshToken: "refresh"})
		if err := repo.Update(session); err != nil {
			t.Fatalf("failed to update session: %v", err)
		}

		got, _ := repo.Get(session.ID())
		if got.Token().AccessToken != "refreshed" {
			t.Errorf("expected refreshed token, got %s", got.Token().AccessToken)
		}
	})

	t.Run("Update Not Found", func(t *testing.T) {
		repo := NewSessionRepository(setupTestDB(t))
		session := newTestSession("42", "access")
		session.SetID("missing")

		if err := repo.Update(session); !errors.Is(err, shared.ErrSessionNotFound) {
			t.Errorf("expected ErrSessionNotFound, got %v", err)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		repo := NewSessionRepository(setupTestDB(t))
		session := newTestSession("42", "access")
		repo.Create(session)

		if err := repo.Delete(session.ID()); err != nil {
			t.Fatalf("failed to delete session: %v", err)
		}
		if err := repo.Delete(session.ID()); !errors.Is(err, shared.ErrSessionNotFound) {
			t.Errorf("expected ErrSessionNotFound on second delete, got %v", err)
		}
	})

	t.Run("DeleteAll", func(t *testing.T) {
		repo := NewSessionRepository(setupTestDB(t))
		repo.Create(newTestSession("1", "a"))
		repo.Create(newTestSession("2", "b"))

		if err := repo.DeleteAll(); err != nil {
			t.Fatalf("failed to delete sessions: %v", err)
		}

		sessions, err := repo.List(nil)
		if err != nil {
			t.Fatalf("failed to list sessions: %v", err)
		}
		if len(sessions) != 0 {
			t.Errorf("expected no sessions, got %d", len(sessions))
		}
	})

	t.Run("List", func(t *testing.T) {
		repo := NewSessionRepository(setupTestDB(t))
		repo.Create(newTestSession("1", "a"))
		repo.Create(newTestSession("2", "b"))

		tests := []struct {
			name     string
			criteria map[string]any
			want     int
		}{
			{"all", nil, 2},
			{"by user", map[string]any{"user_id": "1"}, 1},
			{"unknown user", map[string]any{"user_id": "9"}, 0},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				sessions, err := repo.List(tt.criteria)
				if err != nil {
					t.Fatalf("failed to list sessions: %v", err)
				}
				if len(sessions) != tt.want {
					t.Errorf("expected %d sessions, got %d", tt.want, len(sessions))
				}
			})
		}
	})
}

func TestRecommendationRunRepository(t *testing.T) {
	t.Run("Create And Get", func(t *testing.T) {
		repo := NewRecommendationRunRepository(setupTestDB(t))
		run := models.NewRecommendationRun(3, 20, true, 42, 1, 1500*time.Millisecond)

		if err := repo.Create(run); err != nil {
			t.Fatalf("failed to create run: %v", err)
		}

		got, err := repo.Get(run.ID())
		if err != nil {
			t.Fatalf("failed to get run: %v", err)
		}
		if got.SeedCount != 3 || got.LimitPerSeed != 20 || !got.Dedup || got.CandidateCount != 42 || got.FailedSeeds != 1 {
			t.Errorf("unexpected run %+v", got)
		}
		if got.Elapsed != 1500*time.Millisecond {
			t.Errorf("expected elapsed 1.5s, got %v", got.Elapsed)
		}
	})

	t.Run("Create Validation Error", func(t *testing.T) {
		repo := NewRecommendationRunRepository(setupTestDB(t))

		if err := repo.Create(models.NewRecommendationRun(0, 20, true, 0, 0, 0)); err == nil {
			t.Error("expected validation error")
		}
	})

	t.Run("Get Not Found", func(t *testing.T) {
		repo := NewRecommendationRunRepository(setupTestDB(t))

		if _, err := repo.Get("missing"); !errors.Is(err, ErrRunNotFound) {
			t.Errorf("expected ErrRunNotFound, got %v", err)
		}
	})

	t.Run("Update Is Rejected", func(t *testing.T) {
		repo := NewRecommendationRunRepository(setupTestDB(t))

		err := repo.Update(models.NewRecommendationRun(1, 1, true, 0, 0, 0))
		if !errors.Is(err, shared.ErrNotImplemented) {
			t.Errorf("expected ErrNotImplemented, got %v", err)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		repo := NewRecommendationRunRepository(setupTestDB(t))
		run := models.NewRecommendationRun(1, 10, false, 5, 0, time.Second)
		repo.Create(run)

		if err := repo.Delete(run.ID()); err != nil {
			t.Fatalf("failed to delete run: %v", err)
		}
		if err := repo.Delete(run.ID()); !errors.Is(err, ErrRunNotFound) {
			t.Errorf("expected ErrRunNotFound, got %v", err)
		}
	})

	t.Run("List Newest First With Limit", func(t *testing.T) {
		repo := NewRecommendationRunRepository(setupTestDB(t))
		for i := 1; i <= 3; i++ {
			run := models.NewRecommendationRun(i, 10, true, i*10, 0, time.Second)
			run.SetCreatedAt(time.Now().UTC().Add(time.Duration(i) * time.Minute))
			if err := repo.Create(run); err != nil {
				t.Fatalf("failed to create run: %v", err)
			}
		}

		all, err := repo.List(nil)
		if err != nil {
			t.Fatalf("failed to list runs: %v", err)
		}
		if len(all) != 3 || all[0].SeedCount != 3 || all[2].SeedCount != 1 {
			t.Errorf("expected runs newest first, got %d runs", len(all))
		}

		limited, _ := repo.List(map[string]any{"limit": 2})
		if len(limited) != 2 {
			t.Errorf("expected 2 runs, got %d", len(limited))
		}
	})
}
