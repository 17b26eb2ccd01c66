package tools

import "github.com/mark3labs/mcp-go/mcp"

const (
	defaultTrackLimit         = 10
	defaultPlaylistLimit      = 20
	defaultPlaylistTrackLimit = 50
	defaultLimitPerSeed       = 10
	defaultSeedCount          = 10
	defaultMaxRecommendations = 30
)

// trackIDItems accepts both "123" and 123.
var trackIDItems = map[string]any{
	"anyOf": []any{
		map[string]any{"type": "string"},
		map[string]any{"type": "integer"},
	},
}

func limitParam(def int, desc string) mcp.ToolOption {
	return mcp.WithNumber("limit",
		mcp.Description(desc),
		mcp.DefaultNumber(float64(def)),
		mcp.Min(1),
		mcp.Max(50),
	)
}

func loginTool() mcp.Tool {
	return mcp.NewTool("tidal_login",
		mcp.WithDescription("Authenticate with TIDAL through the device login flow. "+
			"Opens a browser window where the user approves access to their TIDAL account, "+
			"then waits until the login completes or times out."),
	)
}

func favoritesTool() mcp.Tool {
	return mcp.NewTool("get_favorite_tracks",
		mcp.WithDescription("List the user's favorite TIDAL tracks, most recently added first. "+
			"Each track has an id, title, artist, album, duration in seconds and a listen URL."),
		mcp.WithReadOnlyHintAnnotation(true),
		limitParam(defaultTrackLimit, "Maximum number of tracks to return. Only set this when the user asks for a specific number."),
	)
}

func summarizeTool() mcp.Tool {
	return mcp.NewTool("summarize_music_preferences",
		mcp.WithDescription("Fetch the user's recent favorite tracks so their music taste can be summarized. "+
			"Use this whenever the user asks what kind of music they like or to analyze their TIDAL favorites. "+
			"Look for patterns in artists, genres and mood, and name the artists they seem to enjoy most."),
		mcp.WithReadOnlyHintAnnotation(true),
		limitParam(defaultTrackLimit, "Number of recent favorite tracks to analyze."),
	)
}

func recommendTool() mcp.Tool {
	return mcp.NewTool("recommend_tracks",
		mcp.WithDescription("Recommend tracks similar to a set of seed tracks. "+
			"Without seed_track_ids the user's most recent favorites are used as seeds. "+
			"The result holds the seeds and the candidate recommendations; rank and filter the candidates "+
			"against filter_criteria, group them by style or mood, and always include each track's URL."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithArray("seed_track_ids",
			mcp.Description("TIDAL track ids to use as seeds. Defaults to the user's favorites."),
			mcp.Items(trackIDItems),
		),
		mcp.WithString("filter_criteria",
			mcp.Description("Free-form preferences such as \"relaxing\", \"upbeat\" or \"jazz influences\". Returned unchanged."),
		),
		mcp.WithNumber("limit_per_seed",
			mcp.Description("Maximum number of similar tracks fetched per seed."),
			mcp.DefaultNumber(defaultLimitPerSeed),
			mcp.Min(1),
			mcp.Max(50),
		),
		mcp.WithNumber("limit_from_favorites",
			mcp.Description("Number of favorite tracks used as seeds when seed_track_ids is empty."),
			mcp.DefaultNumber(defaultSeedCount),
			mcp.Min(1),
			mcp.Max(50),
		),
		mcp.WithNumber("max_recommendations",
			mcp.Description("Maximum number of recommendations returned."),
			mcp.DefaultNumber(defaultMaxRecommendations),
			mcp.Min(1),
		),
	)
}

func trackRecommendationsTool() mcp.Tool {
	return mcp.NewTool("get_track_recommendations",
		mcp.WithDescription("Get tracks similar to one TIDAL track, taken from the track's radio."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithString("track_id", mcp.Required(), mcp.Description("TIDAL track id.")),
		limitParam(defaultTrackLimit, "Maximum number of recommendations."),
	)
}

func playlistsTool() mcp.Tool {
	return mcp.NewTool("get_user_playlists",
		mcp.WithDescription("List the user's TIDAL playlists, most recently updated first."),
		mcp.WithReadOnlyHintAnnotation(true),
		limitParam(defaultPlaylistLimit, "Maximum number of playlists."),
	)
}

func playlistTracksTool() mcp.Tool {
	return mcp.NewTool("get_playlist_tracks",
		mcp.WithDescription("List the tracks of one TIDAL playlist."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithString("playlist_id", mcp.Required(), mcp.Description("Playlist uuid as returned by get_user_playlists.")),
		limitParam(defaultPlaylistTrackLimit, "Maximum number of tracks."),
	)
}

func createPlaylistTool() mcp.Tool {
	return mcp.NewTool("create_tidal_playlist",
		mcp.WithDescription("Create a TIDAL playlist in the user's account and add tracks to it. "+
			"Returns the new playlist with its URL."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Playlist title.")),
		mcp.WithArray("track_ids",
			mcp.Required(),
			mcp.Description("TIDAL track ids to add, in order."),
			mcp.Items(trackIDItems),
		),
		mcp.WithString("description", mcp.Description("Optional playlist description.")),
	)
}

func deletePlaylistTool() mcp.Tool {
	return mcp.NewTool("delete_tidal_playlist",
		mcp.WithDescription("Delete one of the user's TIDAL playlists. This cannot be undone."),
		mcp.WithDestructiveHintAnnotation(true),
		mcp.WithString("playlist_id", mcp.Required(), mcp.Description("Playlist uuid to delete.")),
	)
}
