package models

import (
	"time"
)

// Model is a row persisted in the local SQLite store.
//
// Sessions and recommendation runs are the only persistent models; tracks,
// playlists and users are transient views of TIDAL data.
type Model interface {
	ID() string
	CreatedAt() time.Time
	UpdatedAt() time.Time
	Validate() error // called before every insert and update
}

var (
	_ Model = (*Session)(nil)
	_ Model = (*RecommendationRun)(nil)
)

// Repository is the storage contract shared by the sqlite repositories.
//
// Get wraps a not-found sentinel when no row matches. List criteria keys are
// implementation specific and unknown keys are ignored.
type Repository[T Model] interface {
	Create(model T) error
	Get(id string) (T, error)
	Update(model T) error
	Delete(id string) error
	List(criteria map[string]any) ([]T, error)
}
