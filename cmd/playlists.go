package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/tidal-mcp/internal/formatter"
	"github.com/desertthunder/tidal-mcp/internal/models"
	"github.com/desertthunder/tidal-mcp/internal/shared"
	"github.com/desertthunder/tidal-mcp/internal/ui"
	"github.com/urfave/cli/v3"
)

// PlaylistsList lists the user's playlists.
func (r *Runner) PlaylistsList(ctx context.Context, cmd *cli.Command) error {
	catalog, release, err := r.catalog(ctx, cmd)
	if err != nil {
		return err
	}
	defer release()

	raw, err := catalog.Playlists(ctx, shared.BoundLimit(r.logger, cmd.Int("limit"), shared.MaxLimit))
	if err != nil {
		return fmt.Errorf("failed to fetch playlists: %w", err)
	}

	playlists := make([]models.Playlist, 0, len(raw))
	for _, p := range raw {
		playlists = append(playlists, models.FormatPlaylist(p))
	}

	if cmd.Bool("json") {
		return r.writeJSON(playlists, true)
	}

	r.writePlainHeader(fmt.Sprintf("Playlists (%d)", len(playlists)))
	for _, p := range playlists {
		r.writePlain("%s  %s\n", ui.Highlight(p.Title), ui.Muted(fmt.Sprintf("%d tracks, %s", p.TrackCount, formatter.FormatDuration(p.Duration))))
		r.writePlain("  ID:  %s\n", p.ID)
		r.writePlain("  URL: %s\n", p.URL)
	}
	return nil
}

// PlaylistTracks lists the tracks of one playlist.
func (r *Runner) PlaylistTracks(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: playlist id", shared.ErrMissingArgument)
	}

	catalog, release, err := r.catalog(ctx, cmd)
	if err != nil {
		return err
	}
	defer release()

	raw, err := catalog.PlaylistTracks(ctx, id, cmd.Int("limit"))
	if err != nil {
		return fmt.Errorf("failed to fetch playlist tracks: %w", err)
	}

	return r.writeTracks(cmd, &formatter.TrackList{
		Title:  "Playlist " + id,
		Tracks: models.FormatTracks(raw, nil),
	})
}

// PlaylistCreate creates a playlist and adds the --track ids in order.
func (r *Runner) PlaylistCreate(ctx context.Context, cmd *cli.Command) error {
	title := strings.TrimSpace(cmd.StringArg("title"))
	if title == "" {
		return fmt.Errorf("%w: playlist title", shared.ErrMissingArgument)
	}
	ids := models.ParseTrackIDs(cmd.StringSlice("track"))
	if len(ids) == 0 {
		return fmt.Errorf("%w: at least one --track", shared.ErrMissingArgument)
	}

	catalog, release, err := r.catalog(ctx, cmd)
	if err != nil {
		return err
	}
	defer release()

	raw, err := catalog.CreatePlaylist(ctx, title, cmd.String("description"))
	if err != nil {
		return fmt.Errorf("failed to create playlist: %w", err)
	}
	if err := catalog.AddTracks(ctx, raw.UUID, ids); err != nil {
		return fmt.Errorf("playlist %s created but adding tracks failed: %w", raw.UUID, err)
	}

	playlist := models.FormatPlaylist(*raw)
	r.logger.Info("created playlist", "id", playlist.ID, "tracks", len(ids))

	r.writePlain("%s\n", ui.Success(fmt.Sprintf("✓ Created %q with %d tracks", playlist.Title, len(ids))))
	return r.writePlain("URL: %s\n", playlist.URL)
}

// PlaylistDelete deletes a playlist.
func (r *Runner) PlaylistDelete(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: playlist id", shared.ErrMissingArgument)
	}

	catalog, release, err := r.catalog(ctx, cmd)
	if err != nil {
		return err
	}
	defer release()

	if err := catalog.DeletePlaylist(ctx, id); err != nil {
		return fmt.Errorf("failed to delete playlist: %w", err)
	}
	return r.writePlain("%s\n", ui.Success("✓ Deleted playlist "+id))
}
