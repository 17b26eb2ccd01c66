package tools

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/desertthunder/tidal-mcp/internal/models"
	"github.com/mark3labs/mcp-go/mcp"
)

type recommendResponse struct {
	Status          string           `json:"status"`
	SeedTracks      []models.Track   `json:"seed_tracks"`
	SeedTrackIDs    []models.TrackID `json:"seed_track_ids"`
	Recommendations []models.Track   `json:"recommendations"`
	FilterCriteria  *string          `json:"filter_criteria"`
	SeedCount       int              `json:"seed_count"`
	FailedSeeds     []models.TrackID `json:"failed_seeds,omitempty"`
}

type batchResponse struct {
	Recommendations []models.Track   `json:"recommendations"`
	FailedSeeds     []models.TrackID `json:"failed_seeds"`
}

// RecommendTracks seeds the batch endpoint with explicit ids or the user's favorites.
//
// It fails only when no session is stored or no seeds are available. Seeds whose
// lookup failed upstream are listed in failed_seeds and contribute nothing.
func (t *Tools) RecommendTracks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	seedIDs, err := argTrackIDs(req, "seed_track_ids")
	if err != nil {
		return errorResult("%v", err)
	}

	limitPerSeed := req.GetInt("limit_per_seed", t.cfg.DefaultLimitPerSeed)
	seedCount := req.GetInt("limit_from_favorites", t.cfg.DefaultSeedCount)
	maxRecs := req.GetInt("max_recommendations", t.cfg.MaxRecommendations)

	var criteria *string
	if c := strings.TrimSpace(req.GetString("filter_criteria", "")); c != "" {
		criteria = &c
	}

	ok, err := t.authenticated(ctx)
	if err != nil {
		return errorResult("Failed to connect to TIDAL authentication service: %v", err)
	}
	if !ok {
		return errorResult("You need to login to TIDAL first before I can recommend music. Please use the tidal_login() function.")
	}

	var seeds []models.Track
	if len(seedIDs) == 0 {
		favorites, failed := t.favorites(ctx, seedCount)
		if failed != nil {
			return errorResult("Unable to analyze your music preferences: %s", resultMessage(failed))
		}
		if len(favorites) == 0 {
			return errorResult("I couldn't find any favorite tracks in your TIDAL account. Please make sure you have saved some tracks as favorites.")
		}
		seeds = favorites
		seedIDs = models.IDs(favorites)
	} else {
		seeds = t.seedTracks(ctx, seedIDs)
	}

	t.logger.Info("recommending tracks", "seeds", len(seedIDs), "limit_per_seed", limitPerSeed)

	resp, err := t.call(ctx, http.MethodPost, "/api/recommendations/batch", map[string]any{
		"track_ids":         seedIDs,
		"limit_per_track":   limitPerSeed,
		"remove_duplicates": true,
	})
	if err != nil {
		return errorResult("Failed to get recommendations: %v", err)
	}
	if !resp.OK() {
		return failure(resp, "Failed to get recommendations")
	}

	var batch batchResponse
	if err := resp.Decode(&batch); err != nil {
		return errorResult("Failed to get recommendations: %v", err)
	}

	recs := batch.Recommendations
	if recs == nil {
		recs = []models.Track{}
	}
	if maxRecs > 0 && len(recs) > maxRecs {
		recs = recs[:maxRecs]
	}

	return jsonResult(recommendResponse{
		Status:          "success",
		SeedTracks:      seeds,
		SeedTrackIDs:    seedIDs,
		Recommendations: recs,
		FilterCriteria:  criteria,
		SeedCount:       len(seedIDs),
		FailedSeeds:     batch.FailedSeeds,
	})
}

// seedTracks resolves explicit seed ids for display. Ids that cannot be resolved are skipped.
func (t *Tools) seedTracks(ctx context.Context, ids []models.TrackID) []models.Track {
	seeds := make([]models.Track, 0, len(ids))
	for _, id := range ids {
		resp, err := t.call(ctx, http.MethodGet, "/api/tracks/"+url.PathEscape(id.String()), nil)
		if err != nil || !resp.OK() {
			t.logger.Debug("seed track not resolved", "id", id)
			continue
		}

		var body struct {
			Track models.Track `json:"track"`
		}
		if err := resp.Decode(&body); err != nil {
			continue
		}
		seeds = append(seeds, body.Track)
	}
	return seeds
}
