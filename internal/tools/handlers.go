package tools

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/desertthunder/tidal-mcp/internal/models"
	"github.com/desertthunder/tidal-mcp/internal/services"
	"github.com/mark3labs/mcp-go/mcp"
)

// failure turns a non-2xx backend response into an in-band error.
func failure(resp *services.APIResponse, prefix string) (*mcp.CallToolResult, error) {
	if resp.StatusCode == http.StatusUnauthorized {
		return errorResult(loginFirst)
	}
	return errorResult("%s: %s", prefix, resp.ErrorMessage("Unknown error"))
}

// Login runs the backend's device login and blocks until it resolves.
func (t *Tools) Login(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	resp, err := t.call(ctx, http.MethodGet, "/api/auth/login", nil)
	if err != nil {
		return errorResult("Failed to connect to TIDAL authentication service: %v", err)
	}
	if !resp.OK() {
		return errorResult("Authentication failed: %s", resp.ErrorMessage("Unknown error"))
	}

	var body map[string]any
	if err := resp.Decode(&body); err != nil {
		return errorResult("Authentication failed: %v", err)
	}
	return jsonResult(body)
}

type tracksResponse struct {
	Tracks []models.Track `json:"tracks"`
}

// favorites fetches up to limit favorites. A non-nil result is an in-band error to return as is.
func (t *Tools) favorites(ctx context.Context, limit int) ([]models.Track, *mcp.CallToolResult) {
	resp, err := t.call(ctx, http.MethodGet, withLimit("/api/tracks", limit), nil)
	if err != nil {
		res, _ := errorResult("Failed to connect to TIDAL tracks service: %v", err)
		return nil, res
	}
	if !resp.OK() {
		res, _ := failure(resp, "Failed to retrieve tracks")
		return nil, res
	}

	var body tracksResponse
	if err := resp.Decode(&body); err != nil {
		res, _ := errorResult("Failed to retrieve tracks: %v", err)
		return nil, res
	}
	return body.Tracks, nil
}

// FavoriteTracks lists the user's favorites.
func (t *Tools) FavoriteTracks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tracks, failed := t.favorites(ctx, req.GetInt("limit", defaultTrackLimit))
	if failed != nil {
		return failed, nil
	}

	return jsonResult(map[string]any{
		"status":      "success",
		"tracks":      tracks,
		"track_count": len(tracks),
	})
}

// SummarizePreferences returns the favorites for the model to characterise.
func (t *Tools) SummarizePreferences(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ok, err := t.authenticated(ctx)
	if err != nil {
		return errorResult("Failed to connect to TIDAL authentication service: %v", err)
	}
	if !ok {
		return errorResult("You need to login to TIDAL first before I can analyze your music preferences. Please use the tidal_login() function.")
	}

	tracks, failed := t.favorites(ctx, req.GetInt("limit", defaultTrackLimit))
	if failed != nil {
		return errorResult("Unable to analyze your music preferences: %s", resultMessage(failed))
	}
	if len(tracks) == 0 {
		return errorResult("I couldn't find any favorite tracks in your TIDAL account. Please make sure you have saved some tracks as favorites.")
	}

	return jsonResult(map[string]any{
		"status":          "success",
		"favorite_tracks": tracks,
		"track_count":     len(tracks),
	})
}

// TrackRecommendations returns the radio of one track.
func (t *Tools) TrackRecommendations(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("track_id")
	if err != nil || strings.TrimSpace(id) == "" {
		return errorResult("track_id is required")
	}
	id = strings.TrimSpace(id)
	limit := req.GetInt("limit", defaultTrackLimit)

	resp, err := t.call(ctx, http.MethodGet, withLimit("/api/recommendations/track/"+url.PathEscape(id), limit), nil)
	if err != nil {
		return errorResult("Failed to connect to TIDAL recommendation service: %v", err)
	}
	if !resp.OK() {
		return failure(resp, "Failed to get recommendations")
	}

	var body struct {
		Recommendations []models.Track `json:"recommendations"`
	}
	if err := resp.Decode(&body); err != nil {
		return errorResult("Failed to get recommendations: %v", err)
	}

	return jsonResult(map[string]any{
		"status":          "success",
		"track_id":        models.TrackID(id),
		"recommendations": body.Recommendations,
		"count":           len(body.Recommendations),
	})
}

// Playlists lists the user's playlists.
func (t *Tools) Playlists(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	resp, err := t.call(ctx, http.MethodGet, withLimit("/api/playlists", req.GetInt("limit", defaultPlaylistLimit)), nil)
	if err != nil {
		return errorResult("Failed to connect to TIDAL playlist service: %v", err)
	}
	if !resp.OK() {
		return failure(resp, "Failed to retrieve playlists")
	}

	var body struct {
		Playlists []models.Playlist `json:"playlists"`
	}
	if err := resp.Decode(&body); err != nil {
		return errorResult("Failed to retrieve playlists: %v", err)
	}

	return jsonResult(map[string]any{
		"status":         "success",
		"playlists":      body.Playlists,
		"playlist_count": len(body.Playlists),
	})
}

// PlaylistTracks lists the tracks of one playlist.
func (t *Tools) PlaylistTracks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := strings.TrimSpace(req.GetString("playlist_id", ""))
	if id == "" {
		return errorResult("playlist_id is required")
	}
	limit := req.GetInt("limit", defaultPlaylistTrackLimit)

	resp, err := t.call(ctx, http.MethodGet, withLimit("/api/playlists/"+url.PathEscape(id)+"/tracks", limit), nil)
	if err != nil {
		return errorResult("Failed to connect to TIDAL playlist service: %v", err)
	}
	if !resp.OK() {
		return failure(resp, "Failed to retrieve playlist tracks")
	}

	var body tracksResponse
	if err := resp.Decode(&body); err != nil {
		return errorResult("Failed to retrieve playlist tracks: %v", err)
	}

	return jsonResult(map[string]any{
		"status":      "success",
		"playlist_id": id,
		"tracks":      body.Tracks,
		"track_count": len(body.Tracks),
	})
}

// CreatePlaylist creates a playlist holding the given tracks.
func (t *Tools) CreatePlaylist(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title := strings.TrimSpace(req.GetString("title", ""))
	if title == "" {
		return errorResult("title is required")
	}
	ids, err := argTrackIDs(req, "track_ids")
	if err != nil {
		return errorResult("%v", err)
	}
	if len(ids) == 0 {
		return errorResult("track_ids must contain at least one track id")
	}

	resp, err := t.call(ctx, http.MethodPost, "/api/playlists", map[string]any{
		"title":       title,
		"description": req.GetString("description", ""),
		"track_ids":   ids,
	})
	if err != nil {
		return errorResult("Failed to connect to TIDAL playlist service: %v", err)
	}
	if !resp.OK() {
		return failure(resp, "Failed to create playlist")
	}

	var body struct {
		Playlist   models.Playlist `json:"playlist"`
		TrackCount int             `json:"track_count"`
	}
	if err := resp.Decode(&body); err != nil {
		return errorResult("Failed to create playlist: %v", err)
	}

	return jsonResult(map[string]any{
		"status":      "success",
		"playlist":    body.Playlist,
		"track_count": body.TrackCount,
	})
}

// DeletePlaylist removes a playlist.
func (t *Tools) DeletePlaylist(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := strings.TrimSpace(req.GetString("playlist_id", ""))
	if id == "" {
		return errorResult("playlist_id is required")
	}

	resp, err := t.call(ctx, http.MethodDelete, "/api/playlists/"+url.PathEscape(id), nil)
	if err != nil {
		return errorResult("Failed to connect to TIDAL playlist service: %v", err)
	}
	if !resp.OK() {
		return failure(resp, "Failed to delete playlist")
	}

	return jsonResult(map[string]any{
		"status":      "success",
		"playlist_id": id,
		"message":     "Playlist deleted",
	})
}
