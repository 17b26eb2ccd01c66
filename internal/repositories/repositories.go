// package repositories provides persistence layer implementations for all model types.
//
// Each repository implements models.Repository[T] for a specific entity type.
package repositories

import "github.com/desertthunder/tidal-mcp/internal/models"

var (
	_ models.Repository[*models.Session]           = (*SessionRepository)(nil)
	_ models.Repository[*models.RecommendationRun] = (*RecommendationRunRepository)(nil)
)

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}
