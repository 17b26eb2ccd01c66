// TIDAL v1 API implementation of [Catalog]
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tidal-mcp/internal/metrics"
	"github.com/desertthunder/tidal-mcp/internal/models"
	"github.com/desertthunder/tidal-mcp/internal/shared"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	tidalBaseURL     = "https://api.tidal.com/v1"
	tidalCountryCode = "US"
	defaultTimeout   = 15 * time.Second
)

// tidalSession is the body of GET /sessions.
type tidalSession struct {
	SessionID   string      `json:"sessionId"`
	UserID      json.Number `json:"userId"`
	CountryCode string      `json:"countryCode"`
}

// tidalUser is the body of GET /users/{id}.
type tidalUser struct {
	ID          json.Number `json:"id"`
	Username    string      `json:"username"`
	Email       string      `json:"email"`
	CountryCode string      `json:"countryCode"`
}

// tidalPage is a paginated list; favorites and playlist items wrap each track in an "item" envelope.
type tidalPage[T any] struct {
	Limit              int `json:"limit"`
	Offset             int `json:"offset"`
	TotalNumberOfItems int `json:"totalNumberOfItems"`
	Items              []T `json:"items"`
}

type tidalItem[T any] struct {
	Type string `json:"type"`
	Item T      `json:"item"`
}

// upstreamResponse is what the breaker sees for one call.
type upstreamResponse struct {
	status int
	header http.Header
	body   []byte
}

// TidalOpts configures a [TidalService].
type TidalOpts struct {
	Config     shared.TidalConfig
	Breaker    shared.BreakerConfig
	HTTPClient *http.Client
	Logger     *log.Logger
}

// TidalService talks to the TIDAL v1 API.
//
// A bare service has no credentials; [TidalService.WithTokenSource] derives an authenticated copy that
// shares the rate limiter and circuit breaker with its parent.
type TidalService struct {
	baseURL     string
	countryCode string
	timeout     time.Duration
	base        *http.Client
	httpClient  *http.Client
	user        models.User
	limiter     *rate.Limiter
	breaker     *gobreaker.CircuitBreaker[*upstreamResponse]
	logger      *log.Logger
}

// NewTidalService creates an unauthenticated [TidalService].
func NewTidalService(opts TidalOpts) *TidalService {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	baseURL := strings.TrimRight(opts.Config.APIURL, "/")
	if baseURL == "" {
		baseURL = tidalBaseURL
	}
	country := opts.Config.CountryCode
	if country == "" {
		country = tidalCountryCode
	}
	timeout := opts.Config.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	limit := rate.Inf
	if opts.Config.RateLimit > 0 {
		limit = rate.Limit(opts.Config.RateLimit)
	}

	logger := shared.WithLogger(opts.Logger, "component", "tidal")

	return &TidalService{
		baseURL:     baseURL,
		countryCode: country,
		timeout:     timeout,
		base:        opts.HTTPClient,
		httpClient:  opts.HTTPClient,
		limiter:     rate.NewLimiter(limit, 1),
		breaker:     NewBreaker[*upstreamResponse]("tidal", opts.Breaker, logger),
		logger:      logger,
	}
}

// WithTokenSource returns a copy of s that authenticates as user with tokens from ts.
//
// The user's country code, when known, replaces the configured one.
func (s *TidalService) WithTokenSource(ts oauth2.TokenSource, user models.User) *TidalService {
	clone := *s
	clone.user = user
	if user.CountryCode != "" {
		clone.countryCode = user.CountryCode
	}

	transport := s.base.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	clone.httpClient = &http.Client{
		Transport: &oauth2.Transport{Source: ts, Base: transport},
		Timeout:   s.timeout,
	}
	return &clone
}

// User returns the account this service acts for.
func (s *TidalService) User() models.User {
	return s.user
}

// doRequest performs one rate-limited, breaker-guarded request and decodes a 2xx JSON body into result.
//
// endpoint labels the call in logs and metrics.
func (s *TidalService) doRequest(ctx context.Context, endpoint, method, path string, query url.Values, form url.Values, header http.Header, result any) (*upstreamResponse, error) {
	if query == nil {
		query = url.Values{}
	}
	query.Set("countryCode", s.countryCode)
	apiURL := s.baseURL + path + "?" + query.Encode()

	if err := s.limiter.Wait(ctx); err != nil {
		// the limiter refuses early when the wait would outlast the deadline
		if _, ok := ctx.Deadline(); ok && ctx.Err() == nil {
			err = fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
		}
		return nil, fmt.Errorf("%w: %s: %w", shared.ErrUpstreamUnavailable, endpoint, err)
	}

	resp, err := s.breaker.Execute(func() (*upstreamResponse, error) {
		return s.send(ctx, endpoint, method, apiURL, form, header)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %s: %w", shared.ErrUpstreamUnavailable, endpoint, err)
		}
		return nil, err
	}

	switch {
	case resp.status == http.StatusUnauthorized || resp.status == http.StatusForbidden:
		return resp, fmt.Errorf("%w: %s: status %d", shared.ErrAuthRequired, endpoint, resp.status)
	case resp.status == http.StatusNotFound:
		return resp, fmt.Errorf("%w: %s: status 404", errNotFound, endpoint)
	case resp.status < 200 || resp.status >= 300:
		return resp, fmt.Errorf("%w: %s: status %d: %s", shared.ErrAPIRequest, endpoint, resp.status, upstreamMessage(resp.body))
	}

	if result != nil && len(resp.body) > 0 {
		if err := json.Unmarshal(resp.body, result); err != nil {
			return resp, fmt.Errorf("%w: %s: failed to decode response: %v", shared.ErrAPIRequest, endpoint, err)
		}
	}

	return resp, nil
}

// send is the breaker-guarded part of doRequest. Only transport errors, 429 and 5xx count as failures.
func (s *TidalService) send(ctx context.Context, endpoint, method, apiURL string, form url.Values, header http.Header) (*upstreamResponse, error) {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	start := time.Now()
	resp, err := s.httpClient.Do(req)
	if err != nil {
		metrics.RecordUpstream(endpoint, 0, time.Since(start))
		return nil, fmt.Errorf("%w: %s: %w", shared.ErrUpstreamUnavailable, endpoint, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	metrics.RecordUpstream(endpoint, resp.StatusCode, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: failed to read response: %w", shared.ErrUpstreamUnavailable, endpoint, err)
	}

	s.logger.Debug("upstream request", "endpoint", endpoint, "method", method, "status", resp.StatusCode, "elapsed", time.Since(start))

	out := &upstreamResponse{status: resp.StatusCode, header: resp.Header, body: data}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return out, fmt.Errorf("%w: %s: status %d", shared.ErrUpstreamUnavailable, endpoint, resp.StatusCode)
	}
	return out, nil
}

// errNotFound is translated into a domain sentinel by each caller.
var errNotFound = errors.New("not found")

func upstreamMessage(body []byte) string {
	var msg struct {
		UserMessage string `json:"userMessage"`
		Description string `json:"error_description"`
	}
	if json.Unmarshal(body, &msg) == nil {
		if msg.UserMessage != "" {
			return msg.UserMessage
		}
		if msg.Description != "" {
			return msg.Description
		}
	}
	if len(body) > 200 {
		body = body[:200]
	}
	return string(bytes.TrimSpace(body))
}

func (s *TidalService) requireUser() error {
	if s.user.ID == "" {
		return fmt.Errorf("%w: no TIDAL user bound to this client", shared.ErrAuthRequired)
	}
	return nil
}

// CurrentUser resolves the account behind the access token.
func (s *TidalService) CurrentUser(ctx context.Context) (*models.User, error) {
	var session tidalSession
	if _, err := s.doRequest(ctx, "sessions", http.MethodGet, "/sessions", nil, nil, nil, &session); err != nil {
		return nil, err
	}
	if session.UserID == "" {
		return nil, fmt.Errorf("%w: session has no user", shared.ErrAuthRequired)
	}

	user := models.User{ID: session.UserID.String(), CountryCode: session.CountryCode}

	var profile tidalUser
	path := "/users/" + url.PathEscape(user.ID)
	if _, err := s.doRequest(ctx, "users.get", http.MethodGet, path, nil, nil, nil, &profile); err != nil {
		s.logger.Warn("failed to load user profile", "user", user.ID, "err", err)
		return &user, nil
	}

	user.Username = profile.Username
	user.Email = profile.Email
	if profile.CountryCode != "" {
		user.CountryCode = profile.CountryCode
	}
	return &user, nil
}

// FavoriteTracks returns the user's favorite tracks, newest first.
func (s *TidalService) FavoriteTracks(ctx context.Context, limit int) ([]models.TidalTrack, error) {
	if err := s.requireUser(); err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("limit", strconv.Itoa(shared.BoundLimit(s.logger, limit, shared.MaxLimit)))
	query.Set("offset", "0")
	query.Set("order", "DATE")
	query.Set("orderDirection", "DESC")

	var page tidalPage[tidalItem[models.TidalTrack]]
	path := fmt.Sprintf("/users/%s/favorites/tracks", url.PathEscape(s.user.ID))
	if _, err := s.doRequest(ctx, "favorites.tracks", http.MethodGet, path, query, nil, nil, &page); err != nil {
		return nil, err
	}

	tracks := make([]models.TidalTrack, 0, len(page.Items))
	for _, it := range page.Items {
		tracks = append(tracks, it.Item)
	}
	return tracks, nil
}

// Track looks up a single track.
func (s *TidalService) Track(ctx context.Context, id models.TrackID) (*models.TidalTrack, error) {
	var track models.TidalTrack
	path := "/tracks/" + url.PathEscape(id.String())
	if _, err := s.doRequest(ctx, "tracks.get", http.MethodGet, path, nil, nil, nil, &track); err != nil {
		if errors.Is(err, errNotFound) {
			return nil, fmt.Errorf("%w: %s", shared.ErrTrackNotFound, id)
		}
		return nil, err
	}
	return &track, nil
}

// SimilarTracks returns the track radio for id. The limit is clamped to [1, 50].
func (s *TidalService) SimilarTracks(ctx context.Context, id models.TrackID, limit int) ([]models.TidalTrack, error) {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(shared.BoundLimit(s.logger, limit, shared.MaxLimit)))

	var page tidalPage[models.TidalTrack]
	path := fmt.Sprintf("/tracks/%s/radio", url.PathEscape(id.String()))
	if _, err := s.doRequest(ctx, "tracks.radio", http.MethodGet, path, query, nil, nil, &page); err != nil {
		if errors.Is(err, errNotFound) {
			return nil, fmt.Errorf("%w: %s", shared.ErrTrackNotFound, id)
		}
		return nil, err
	}
	return page.Items, nil
}

// Playlists returns the user's playlists.
func (s *TidalService) Playlists(ctx context.Context, limit int) ([]models.TidalPlaylist, error) {
	if err := s.requireUser(); err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("limit", strconv.Itoa(shared.BoundLimit(s.logger, limit, shared.MaxLimit)))
	query.Set("order", "DATE_UPDATED")
	query.Set("orderDirection", "DESC")

	var page tidalPage[models.TidalPlaylist]
	path := fmt.Sprintf("/users/%s/playlists", url.PathEscape(s.user.ID))
	if _, err := s.doRequest(ctx, "playlists.list", http.MethodGet, path, query, nil, nil, &page); err != nil {
		return nil, err
	}
	return page.Items, nil
}

// Playlist returns playlist metadata and its ETag, needed to modify it.
func (s *TidalService) Playlist(ctx context.Context, id string) (*models.TidalPlaylist, string, error) {
	var playlist models.TidalPlaylist
	resp, err := s.doRequest(ctx, "playlists.get", http.MethodGet, "/playlists/"+url.PathEscape(id), nil, nil, nil, &playlist)
	if err != nil {
		if errors.Is(err, errNotFound) {
			return nil, "", fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, id)
		}
		return nil, "", err
	}
	return &playlist, resp.header.Get("ETag"), nil
}

// PlaylistTracks returns the tracks of a playlist in playlist order.
func (s *TidalService) PlaylistTracks(ctx context.Context, id string, limit int) ([]models.TidalTrack, error) {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(shared.BoundLimit(s.logger, limit, shared.MaxLimit)))
	query.Set("offset", "0")

	var page tidalPage[tidalItem[models.TidalTrack]]
	path := fmt.Sprintf("/playlists/%s/items", url.PathEscape(id))
	if _, err := s.doRequest(ctx, "playlists.items", http.MethodGet, path, query, nil, nil, &page); err != nil {
		if errors.Is(err, errNotFound) {
			return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, id)
		}
		return nil, err
	}

	tracks := make([]models.TidalTrack, 0, len(page.Items))
	for _, it := range page.Items {
		if it.Type != "" && it.Type != "track" {
			continue
		}
		tracks = append(tracks, it.Item)
	}
	return tracks, nil
}

// CreatePlaylist creates an empty playlist owned by the user.
func (s *TidalService) CreatePlaylist(ctx context.Context, title, description string) (*models.TidalPlaylist, error) {
	if err := s.requireUser(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(title) == "" {
		return nil, fmt.Errorf("%w: playlist title is required", shared.ErrInvalidRequest)
	}

	form := url.Values{}
	form.Set("title", title)
	form.Set("description", description)

	var playlist models.TidalPlaylist
	path := fmt.Sprintf("/users/%s/playlists", url.PathEscape(s.user.ID))
	if _, err := s.doRequest(ctx, "playlists.create", http.MethodPost, path, nil, form, nil, &playlist); err != nil {
		return nil, err
	}
	return &playlist, nil
}

// AddTracks appends ids to a playlist. Unknown tracks are skipped by TIDAL; duplicates are kept out.
func (s *TidalService) AddTracks(ctx context.Context, playlistID string, ids []models.TrackID) error {
	if len(ids) == 0 {
		return nil
	}

	_, etag, err := s.Playlist(ctx, playlistID)
	if err != nil {
		return err
	}

	raw := make([]string, len(ids))
	for i, id := range ids {
		raw[i] = id.String()
	}

	form := url.Values{}
	form.Set("trackIds", strings.Join(raw, ","))
	form.Set("onArtifactNotFound", "SKIP")
	form.Set("onDupes", "SKIP")

	header := http.Header{}
	if etag != "" {
		header.Set("If-None-Match", etag)
	}

	path := fmt.Sprintf("/playlists/%s/items", url.PathEscape(playlistID))
	_, err = s.doRequest(ctx, "playlists.add", http.MethodPost, path, nil, form, header, nil)
	return err
}

// DeletePlaylist removes a playlist owned by the user.
func (s *TidalService) DeletePlaylist(ctx context.Context, id string) error {
	_, err := s.doRequest(ctx, "playlists.delete", http.MethodDelete, "/playlists/"+url.PathEscape(id), nil, nil, nil, nil)
	if errors.Is(err, errNotFound) {
		return fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, id)
	}
	return err
}
