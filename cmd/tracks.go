package main

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tidal-mcp/internal/formatter"
	"github.com/desertthunder/tidal-mcp/internal/models"
	"github.com/desertthunder/tidal-mcp/internal/recommend"
	"github.com/desertthunder/tidal-mcp/internal/shared"
	"github.com/desertthunder/tidal-mcp/internal/ui"
	"github.com/urfave/cli/v3"
)

// writeTracks renders list in the --format format, to --output when set.
func (r *Runner) writeTracks(cmd *cli.Command, list *formatter.TrackList) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	if path := cmd.String("output"); path != "" {
		written, err := formatter.WriteFile(list, format, path)
		if err != nil {
			return err
		}
		return r.writePlain("%s\n", ui.Success(fmt.Sprintf("✓ Saved %d tracks to %s", len(list.Tracks), written)))
	}
	return formatter.Write(r.output, list, format)
}

// Tracks lists the user's favorites.
func (r *Runner) Tracks(ctx context.Context, cmd *cli.Command) error {
	catalog, release, err := r.catalog(ctx, cmd)
	if err != nil {
		return err
	}
	defer release()

	limit := shared.BoundLimit(r.logger, cmd.Int("limit"), shared.MaxLimit)
	raw, err := catalog.FavoriteTracks(ctx, limit)
	if err != nil {
		return fmt.Errorf("failed to fetch favorites: %w", err)
	}

	return r.writeTracks(cmd, &formatter.TrackList{
		Title:  "Favorite Tracks",
		Tracks: models.FormatTracks(raw, nil),
	})
}

// Recommend runs a batch recommendation over the given track ids, or over the newest favorites when none are given.
func (r *Runner) Recommend(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}
	cfg := config.Recommend

	seeds := models.ParseTrackIDs(cmd.Args().Slice())

	catalog, release, err := r.catalog(ctx, cmd)
	if err != nil {
		return err
	}
	defer release()

	if len(seeds) == 0 {
		count := cmd.Int("seeds")
		if count <= 0 {
			count = cfg.DefaultSeedCount
		}
		raw, err := catalog.FavoriteTracks(ctx, shared.BoundLimit(r.logger, count, shared.MaxLimit))
		if err != nil {
			return fmt.Errorf("failed to fetch favorites: %w", err)
		}
		seeds = models.IDs(models.FormatTracks(raw, nil))
		if len(seeds) == 0 {
			return fmt.Errorf("%w: no track ids given and no favorites to seed from", shared.ErrMissingArgument)
		}
	}

	limit := cmd.Int("limit")
	if limit <= 0 {
		limit = cfg.DefaultLimitPerSeed
	}
	maxN := cmd.Int("max")
	if maxN <= 0 {
		maxN = cfg.MaxRecommendations
	}

	aggregator := recommend.NewAggregator(catalog, recommend.Options{
		MaxWorkers:  cfg.MaxWorkers,
		TaskTimeout: cfg.TaskTimeout,
		Logger:      r.logger,
	})
	report, err := aggregator.Run(ctx, recommend.Request{
		SeedIDs:      seeds,
		LimitPerSeed: limit,
		Dedup:        !cmd.Bool("keep-duplicates"),
	})
	if err != nil {
		return err
	}

	if len(report.FailedSeeds) > 0 {
		r.logger.Warn("some seeds returned no recommendations", "failed", report.FailedSeeds)
	}

	tracks := report.Candidates
	if maxN > 0 && len(tracks) > maxN {
		tracks = tracks[:maxN]
	}

	return r.writeTracks(cmd, &formatter.TrackList{
		Title:       "Recommended Tracks",
		Description: fmt.Sprintf("%d seeds, %d per seed, %d failed", len(seeds), report.LimitPerSeed, len(report.FailedSeeds)),
		Tracks:      tracks,
	})
}

// Browse launches the interactive favorites browser. Logs are silenced while it owns the terminal.
func (r *Runner) Browse(ctx context.Context, cmd *cli.Command) error {
	logger := r.logger
	r.logger = log.New(io.Discard)
	defer func() { r.logger = logger }()

	catalog, release, err := r.catalog(ctx, cmd)
	if err != nil {
		return err
	}
	defer release()

	return ui.Run(ctx, catalog, ui.Options{})
}
