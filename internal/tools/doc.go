// Package tools exposes the backend as MCP tools.
//
// Every tool is a thin client of the local HTTP backend: it calls a route through
// [services.APIService] and re-shapes the JSON for the model. Failures are reported
// in-band as {"status": "error", "message": ...} so the model can relay them.
//
// Tools:
//   - tidal_login
//   - get_favorite_tracks, summarize_music_preferences
//   - recommend_tracks, get_track_recommendations
//   - get_user_playlists, get_playlist_tracks, create_tidal_playlist, delete_tidal_playlist
package tools
