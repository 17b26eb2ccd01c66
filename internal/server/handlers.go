package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tidal-mcp/internal/models"
	"github.com/desertthunder/tidal-mcp/internal/recommend"
	"github.com/desertthunder/tidal-mcp/internal/services"
	"github.com/desertthunder/tidal-mcp/internal/shared"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	defaultTrackLimit    = 10
	defaultPlaylistLimit = 20
	defaultHistoryLimit  = 20
)

// API serves the JSON endpoints of the backend.
type API struct {
	auth   services.Authenticator
	runs   RunStore
	cfg    shared.RecommendConfig
	logger *log.Logger
}

// NewAPI creates the handler set. runs may be nil, which disables history.
func NewAPI(auth services.Authenticator, runs RunStore, cfg shared.RecommendConfig, logger *log.Logger) *API {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &API{auth: auth, runs: runs, cfg: cfg, logger: logger}
}

// Register adds every route to r. Catalog routes are wrapped in [RequireSession].
func (a *API) Register(r Router) {
	r.Handle(http.MethodGet, "/health", http.HandlerFunc(a.Health))
	r.Handle(http.MethodGet, "/api/auth/login", http.HandlerFunc(a.Login))
	r.Handle(http.MethodGet, "/api/auth/status", http.HandlerFunc(a.AuthStatus))
	r.Handle(http.MethodPost, "/api/auth/logout", http.HandlerFunc(a.Logout))
	r.Handle(http.MethodGet, "/api/recommendations/history", http.HandlerFunc(a.History))

	gated := RequireSession(a.auth, a.logger)
	r.Handle(http.MethodGet, "/api/tracks", gated(http.HandlerFunc(a.Tracks)))
	r.Handle(http.MethodGet, "/api/tracks/{id}", gated(http.HandlerFunc(a.Track)))
	r.Handle(http.MethodGet, "/api/recommendations/track/{id}", gated(http.HandlerFunc(a.TrackRecommendations)))
	r.Handle(http.MethodPost, "/api/recommendations/batch", gated(http.HandlerFunc(a.BatchRecommendations)))
	r.Handle(http.MethodGet, "/api/playlists", gated(http.HandlerFunc(a.Playlists)))
	r.Handle(http.MethodPost, "/api/playlists", gated(http.HandlerFunc(a.CreatePlaylist)))
	r.Handle(http.MethodGet, "/api/playlists/{id}/tracks", gated(http.HandlerFunc(a.PlaylistTracks)))
	r.Handle(http.MethodDelete, "/api/playlists/{id}", gated(http.HandlerFunc(a.DeletePlaylist)))
}

// Health reports liveness and whether a session is stored.
func (a *API) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"authenticated": a.auth.IsAuthenticated(r.Context()),
	})
}

// Login runs the device flow and blocks until the user approves it or it times out.
func (a *API) Login(w http.ResponseWriter, r *http.Request) {
	user, err := a.auth.Login(r.Context())
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, statusBody{
			Status:  "success",
			Message: "Successfully authenticated with TIDAL",
			UserID:  user.ID,
		})
	case errors.Is(err, shared.ErrTimeout):
		writeJSON(w, http.StatusRequestTimeout, statusBody{Status: "error", Message: "Authentication timed out"})
	case errors.Is(err, shared.ErrAuthFailed):
		a.logger.Warn("login failed", "err", err)
		writeJSON(w, http.StatusUnauthorized, statusBody{Status: "error", Message: "Authentication failed"})
	default:
		a.logger.Error("login failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, statusBody{Status: "error", Message: err.Error()})
	}
}

type authUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type authStatus struct {
	Authenticated bool      `json:"authenticated"`
	Message       string    `json:"message"`
	User          *authUser `json:"user,omitempty"`
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

// AuthStatus reports whether a valid session is stored.
func (a *API) AuthStatus(w http.ResponseWriter, r *http.Request) {
	session, err := a.auth.Session(r.Context())
	switch {
	case errors.Is(err, shared.ErrSessionNotFound):
		writeJSON(w, http.StatusOK, authStatus{Message: "No session found"})
		return
	case err != nil:
		a.logger.Error("failed to load session", "err", err)
		writeJSON(w, http.StatusOK, authStatus{Message: "Invalid or expired session"})
		return
	case session.Expired():
		writeJSON(w, http.StatusOK, authStatus{Message: "Invalid or expired session"})
		return
	}

	user := session.User()
	writeJSON(w, http.StatusOK, authStatus{
		Authenticated: true,
		Message:       "Valid TIDAL session",
		User:          &authUser{ID: user.ID, Username: orNA(user.Username), Email: orNA(user.Email)},
	})
}

// Logout forgets the stored session.
func (a *API) Logout(w http.ResponseWriter, r *http.Request) {
	if err := a.auth.Logout(r.Context()); err != nil {
		writeJSON(w, http.StatusInternalServerError, statusBody{Status: "error", Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, statusBody{Status: "success", Message: "Logged out of TIDAL"})
}

// Tracks lists the user's favorite tracks, newest first.
func (a *API) Tracks(w http.ResponseWriter, r *http.Request) {
	catalog, _ := CatalogFrom(r.Context())
	limit := shared.BoundLimit(a.logger, queryLimit(r, defaultTrackLimit), shared.MaxLimit)

	raw, err := catalog.FavoriteTracks(r.Context(), limit)
	if err != nil {
		writeError(w, statusFor(err), "Error fetching tracks: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"tracks": models.FormatTracks(raw, nil)})
}

// Track looks up one track.
func (a *API) Track(w http.ResponseWriter, r *http.Request) {
	catalog, _ := CatalogFrom(r.Context())
	id := models.TrackID(r.PathValue("id"))

	raw, err := catalog.Track(r.Context(), id)
	if err != nil {
		if errors.Is(err, shared.ErrTrackNotFound) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("Track with ID %s not found", id))
			return
		}
		writeError(w, statusFor(err), "Error fetching track: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"track": models.FormatTrack(*raw, nil)})
}

// TrackRecommendations returns the track radio for a single track.
func (a *API) TrackRecommendations(w http.ResponseWriter, r *http.Request) {
	catalog, _ := CatalogFrom(r.Context())
	id := models.TrackID(r.PathValue("id"))
	limit := shared.BoundLimit(a.logger, queryLimit(r, defaultTrackLimit), shared.MaxLimit)

	if _, err := catalog.Track(r.Context(), id); err != nil {
		if errors.Is(err, shared.ErrTrackNotFound) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("Track with ID %s not found", id))
			return
		}
		writeError(w, statusFor(err), "Error fetching recommendations: "+err.Error())
		return
	}

	raw, err := catalog.SimilarTracks(r.Context(), id, limit)
	if err != nil {
		writeError(w, statusFor(err), "Error fetching recommendations: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"recommendations": models.FormatTracks(raw, nil)})
}

// batchRequest is the decoded body of POST /api/recommendations/batch.
type batchRequest struct {
	TrackIDs         []models.TrackID
	LimitPerTrack    int
	RemoveDuplicates bool
}

func decodeBatchRequest(r *http.Request) (*batchRequest, error) {
	var body map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body == nil {
		return nil, errors.New("Missing track_ids in request body")
	}

	raw, ok := body["track_ids"]
	if !ok {
		return nil, errors.New("Missing track_ids in request body")
	}
	if trimmed := bytes.TrimSpace(raw); len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, errors.New("track_ids must be a list")
	}

	req := &batchRequest{LimitPerTrack: recommend.DefaultLimitPerSeed, RemoveDuplicates: true}
	if err := json.Unmarshal(raw, &req.TrackIDs); err != nil {
		return nil, errors.New("track_ids must contain string or integer ids")
	}
	if v, ok := body["limit_per_track"]; ok {
		if err := json.Unmarshal(v, &req.LimitPerTrack); err != nil {
			return nil, errors.New("limit_per_track must be an integer")
		}
	}
	if v, ok := body["remove_duplicates"]; ok {
		if err := json.Unmarshal(v, &req.RemoveDuplicates); err != nil {
			return nil, errors.New("remove_duplicates must be a boolean")
		}
	}
	return req, nil
}

type batchResponse struct {
	Recommendations []models.Track   `json:"recommendations"`
	FailedSeeds     []models.TrackID `json:"failed_seeds,omitempty"`
}

// BatchRecommendations fans out one track radio lookup per seed and merges the results.
func (a *API) BatchRecommendations(w http.ResponseWriter, r *http.Request) {
	catalog, _ := CatalogFrom(r.Context())

	req, err := decodeBatchRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	aggregator := recommend.NewAggregator(catalog, recommend.Options{
		MaxWorkers:  a.cfg.MaxWorkers,
		TaskTimeout: a.cfg.TaskTimeout,
		Logger:      a.requestLogger(r),
	})

	report, err := aggregator.Run(r.Context(), recommend.Request{
		SeedIDs:      req.TrackIDs,
		LimitPerSeed: req.LimitPerTrack,
		Dedup:        req.RemoveDuplicates,
	})
	if err != nil {
		writeError(w, statusFor(err), "Error fetching batch recommendations: "+err.Error())
		return
	}

	a.recordRun(req, report)
	writeJSON(w, http.StatusOK, batchResponse{Recommendations: report.Candidates, FailedSeeds: report.FailedSeeds})
}

func (a *API) recordRun(req *batchRequest, report *recommend.Report) {
	if a.runs == nil {
		return
	}
	run := models.NewRecommendationRun(
		len(req.TrackIDs), report.LimitPerSeed, req.RemoveDuplicates,
		len(report.Candidates), len(report.FailedSeeds), report.Elapsed,
	)
	if err := a.runs.Create(run); err != nil {
		a.logger.Warn("failed to record recommendation run", "err", err)
	}
}

type runView struct {
	ID             string    `json:"id"`
	SeedCount      int       `json:"seed_count"`
	LimitPerSeed   int       `json:"limit_per_seed"`
	Dedup          bool      `json:"dedup"`
	CandidateCount int       `json:"candidate_count"`
	FailedSeeds    int       `json:"failed_seeds"`
	DurationMS     int64     `json:"duration_ms"`
	CreatedAt      time.Time `json:"created_at"`
}

// History lists recent batch recommendations.
func (a *API) History(w http.ResponseWriter, r *http.Request) {
	views := []runView{}
	if a.runs == nil {
		writeJSON(w, http.StatusOK, map[string]any{"runs": views})
		return
	}

	limit := shared.BoundLimit(a.logger, queryLimit(r, defaultHistoryLimit), shared.MaxLimit)
	runs, err := a.runs.List(map[string]any{"limit": limit})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Error fetching history: "+err.Error())
		return
	}

	for _, run := range runs {
		views = append(views, runView{
			ID:             run.ID(),
			SeedCount:      run.SeedCount,
			LimitPerSeed:   run.LimitPerSeed,
			Dedup:          run.Dedup,
			CandidateCount: run.CandidateCount,
			FailedSeeds:    run.FailedSeeds,
			DurationMS:     run.Elapsed.Milliseconds(),
			CreatedAt:      run.CreatedAt(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": views})
}

// Playlists lists the user's playlists.
func (a *API) Playlists(w http.ResponseWriter, r *http.Request) {
	catalog, _ := CatalogFrom(r.Context())
	limit := shared.BoundLimit(a.logger, queryLimit(r, defaultPlaylistLimit), shared.MaxLimit)

	raw, err := catalog.Playlists(r.Context(), limit)
	if err != nil {
		writeError(w, statusFor(err), "Error fetching playlists: "+err.Error())
		return
	}

	playlists := make([]models.Playlist, 0, len(raw))
	for _, p := range raw {
		playlists = append(playlists, models.FormatPlaylist(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{"playlists": playlists})
}

// PlaylistTracks lists the tracks of one playlist.
func (a *API) PlaylistTracks(w http.ResponseWriter, r *http.Request) {
	catalog, _ := CatalogFrom(r.Context())
	id := r.PathValue("id")
	limit := shared.BoundLimit(a.logger, queryLimit(r, shared.MaxLimit), shared.MaxLimit)

	raw, err := catalog.PlaylistTracks(r.Context(), id, limit)
	if err != nil {
		if errors.Is(err, shared.ErrPlaylistNotFound) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("Playlist with ID %s not found", id))
			return
		}
		writeError(w, statusFor(err), "Error fetching playlist tracks: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"playlist_id": id,
		"tracks":      models.FormatTracks(raw, nil),
		"track_count": len(raw),
	})
}

type createPlaylistRequest struct {
	Title       string           `json:"title"`
	Description string           `json:"description"`
	TrackIDs    []models.TrackID `json:"track_ids"`
}

// CreatePlaylist creates a playlist and fills it with the given tracks.
func (a *API) CreatePlaylist(w http.ResponseWriter, r *http.Request) {
	catalog, _ := CatalogFrom(r.Context())

	var body createPlaylistRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(body.Title) == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	raw, err := catalog.CreatePlaylist(r.Context(), body.Title, body.Description)
	if err != nil {
		writeError(w, statusFor(err), "Error creating playlist: "+err.Error())
		return
	}

	if err := catalog.AddTracks(r.Context(), raw.UUID, body.TrackIDs); err != nil {
		writeError(w, statusFor(err), fmt.Sprintf("Playlist %s created but adding tracks failed: %v", raw.UUID, err))
		return
	}

	a.requestLogger(r).Info("playlist created", "playlist_id", raw.UUID, "tracks", len(body.TrackIDs))

	playlist := models.FormatPlaylist(*raw)
	playlist.TrackCount = len(body.TrackIDs)
	writeJSON(w, http.StatusCreated, map[string]any{
		"status":      "success",
		"playlist":    playlist,
		"track_count": len(body.TrackIDs),
	})
}

// DeletePlaylist removes a playlist.
func (a *API) DeletePlaylist(w http.ResponseWriter, r *http.Request) {
	catalog, _ := CatalogFrom(r.Context())
	id := r.PathValue("id")

	if err := catalog.DeletePlaylist(r.Context(), id); err != nil {
		if errors.Is(err, shared.ErrPlaylistNotFound) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("Playlist with ID %s not found", id))
			return
		}
		writeError(w, statusFor(err), "Error deleting playlist: "+err.Error())
		return
	}

	a.requestLogger(r).Info("playlist deleted", "playlist_id", id)
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "playlist_id": id})
}

// requestLogger tags the logger with the request id and, on gated routes, the TIDAL user.
func (a *API) requestLogger(r *http.Request) *log.Logger {
	kv := []any{"request_id", RequestIDFrom(r.Context())}
	if session, ok := SessionFrom(r.Context()); ok {
		kv = append(kv, "user_id", session.User().ID)
	}
	return shared.WithLogger(a.logger, kv...)
}

// MetricsHandler exposes the Prometheus registry.
type MetricsHandler struct {
	http.Handler
}

func NewMetricsHandler() *MetricsHandler {
	return &MetricsHandler{Handler: promhttp.Handler()}
}

func (m *MetricsHandler) Routes() []string {
	return []string{"GET /metrics"}
}
