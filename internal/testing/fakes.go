package testing

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/desertthunder/tidal-mcp/internal/models"
	"github.com/desertthunder/tidal-mcp/internal/shared"
	"github.com/google/uuid"
)

// FakeCatalog is an in-memory TIDAL catalog. Set Err to fail every call.
type FakeCatalog struct {
	mu sync.Mutex

	User      models.User
	Favorites []models.TidalTrack
	Tracks    map[models.TrackID]models.TidalTrack
	Radio     map[models.TrackID][]models.TidalTrack
	RadioErr  map[models.TrackID]error
	Lists     []models.TidalPlaylist
	Items     map[string][]models.TidalTrack
	Err       error

	Added   map[string][]models.TrackID
	Deleted []string
	calls   []string
}

// NewFakeCatalog creates an empty catalog for user.
func NewFakeCatalog(user models.User) *FakeCatalog {
	return &FakeCatalog{
		User:     user,
		Tracks:   map[models.TrackID]models.TidalTrack{},
		Radio:    map[models.TrackID][]models.TidalTrack{},
		RadioErr: map[models.TrackID]error{},
		Items:    map[string][]models.TidalTrack{},
		Added:    map[string][]models.TrackID{},
	}
}

// Calls returns the methods invoked so far, in order.
func (f *FakeCatalog) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *FakeCatalog) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return f.Err
}

func truncate[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}

func (f *FakeCatalog) CurrentUser(_ context.Context) (*models.User, error) {
	if err := f.record("CurrentUser"); err != nil {
		return nil, err
	}
	user := f.User
	return &user, nil
}

func (f *FakeCatalog) FavoriteTracks(_ context.Context, limit int) ([]models.TidalTrack, error) {
	if err := f.record("FavoriteTracks"); err != nil {
		return nil, err
	}
	return truncate(f.Favorites, limit), nil
}

func (f *FakeCatalog) Track(_ context.Context, id models.TrackID) (*models.TidalTrack, error) {
	if err := f.record("Track"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	track, ok := f.Tracks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrTrackNotFound, id)
	}
	return &track, nil
}

func (f *FakeCatalog) SimilarTracks(_ context.Context, id models.TrackID, limit int) ([]models.TidalTrack, error) {
	if err := f.record("SimilarTracks"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.RadioErr[id]; err != nil {
		return nil, err
	}
	radio, ok := f.Radio[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrTrackNotFound, id)
	}
	return truncate(radio, limit), nil
}

func (f *FakeCatalog) Playlists(_ context.Context, limit int) ([]models.TidalPlaylist, error) {
	if err := f.record("Playlists"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return truncate(append([]models.TidalPlaylist(nil), f.Lists...), limit), nil
}

func (f *FakeCatalog) PlaylistTracks(_ context.Context, id string, limit int) ([]models.TidalTrack, error) {
	if err := f.record("PlaylistTracks"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	items, ok := f.Items[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, id)
	}
	return truncate(items, limit), nil
}

func (f *FakeCatalog) CreatePlaylist(_ context.Context, title, description string) (*models.TidalPlaylist, error) {
	if err := f.record("CreatePlaylist"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	playlist := models.TidalPlaylist{
		UUID:        uuid.NewString(),
		Title:       title,
		Description: description,
		Created:     models.Timestamp{Time: time.Now().UTC()},
	}
	f.Lists = append(f.Lists, playlist)
	f.Items[playlist.UUID] = []models.TidalTrack{}
	return &playlist, nil
}

func (f *FakeCatalog) AddTracks(_ context.Context, playlistID string, ids []models.TrackID) error {
	if err := f.record("AddTracks"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.Items[playlistID]; !ok {
		return fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, playlistID)
	}
	f.Added[playlistID] = append(f.Added[playlistID], ids...)
	for _, id := range ids {
		f.Items[playlistID] = append(f.Items[playlistID], models.TidalTrack{ID: id})
	}
	return nil
}

func (f *FakeCatalog) DeletePlaylist(_ context.Context, id string) error {
	if err := f.record("DeletePlaylist"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.Items[id]; !ok {
		return fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, id)
	}
	delete(f.Items, id)
	for i, p := range f.Lists {
		if p.UUID == id {
			f.Lists = append(f.Lists[:i], f.Lists[i+1:]...)
			break
		}
	}
	f.Deleted = append(f.Deleted, id)
	return nil
}

// MemorySessionStore keeps sessions in a map.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]*models.Session
	Err      error
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: map[string]*models.Session{}}
}

func (m *MemorySessionStore) Latest() (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}

	all := make([]*models.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	if len(all) == 0 {
		return nil, shared.ErrSessionNotFound
	}
	sort.Slice(all, func(i, j int) bool { return all[i].UpdatedAt().After(all[j].UpdatedAt()) })
	return all[0], nil
}

func (m *MemorySessionStore) Create(session *models.Session) error {
	if err := session.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if session.ID() == "" {
		session.SetID(uuid.NewString())
	}
	m.sessions[session.ID()] = session
	return nil
}

func (m *MemorySessionStore) Update(session *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if _, ok := m.sessions[session.ID()]; !ok {
		return shared.ErrSessionNotFound
	}
	m.sessions[session.ID()] = session
	return nil
}

func (m *MemorySessionStore) DeleteAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.sessions = map[string]*models.Session{}
	return nil
}

// Len returns the number of stored sessions.
func (m *MemorySessionStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
