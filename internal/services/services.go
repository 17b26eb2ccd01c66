// package services defines the interfaces the backend uses to reach TIDAL and the session store
package services

import (
	"context"

	"github.com/desertthunder/tidal-mcp/internal/models"
	"golang.org/x/oauth2"
)

// Catalog is the subset of the TIDAL API used by the backend.
type Catalog interface {
	// CurrentUser resolves the account behind the access token.
	CurrentUser(ctx context.Context) (*models.User, error)

	// FavoriteTracks returns the user's favorites, newest first.
	FavoriteTracks(ctx context.Context, limit int) ([]models.TidalTrack, error)

	// Track looks up a single track; unknown ids yield [shared.ErrTrackNotFound].
	Track(ctx context.Context, id models.TrackID) (*models.TidalTrack, error)

	// SimilarTracks returns the track radio for id with limit clamped to [1, 50].
	SimilarTracks(ctx context.Context, id models.TrackID, limit int) ([]models.TidalTrack, error)

	Playlists(ctx context.Context, limit int) ([]models.TidalPlaylist, error)
	PlaylistTracks(ctx context.Context, id string, limit int) ([]models.TidalTrack, error)
	CreatePlaylist(ctx context.Context, title, description string) (*models.TidalPlaylist, error)
	AddTracks(ctx context.Context, playlistID string, ids []models.TrackID) error
	DeletePlaylist(ctx context.Context, id string) error
}

// Authenticator owns the TIDAL login session.
type Authenticator interface {
	// IsAuthenticated reports whether a usable session is stored.
	IsAuthenticated(ctx context.Context) bool

	// Login runs the device authorization flow and persists the resulting session.
	Login(ctx context.Context) (*models.User, error)

	// Session returns the stored session or [shared.ErrSessionNotFound].
	Session(ctx context.Context) (*models.Session, error)

	// Catalog returns a [Catalog] authenticated with the stored session.
	Catalog(ctx context.Context) (Catalog, *models.Session, error)

	// Logout removes every stored session.
	Logout(ctx context.Context) error
}

// SessionStore persists login sessions.
type SessionStore interface {
	Latest() (*models.Session, error)
	Create(session *models.Session) error
	Update(session *models.Session) error
	DeleteAll() error
}

var (
	_ Catalog            = (*TidalService)(nil)
	_ Authenticator      = (*TidalAuth)(nil)
	_ oauth2.TokenSource = (*persistingTokenSource)(nil)
)
