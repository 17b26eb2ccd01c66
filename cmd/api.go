package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/desertthunder/tidal-mcp/internal/shared"
	"github.com/urfave/cli/v3"
)

func (r *Runner) writeResponseBody(body []byte, data any, isJSON, pretty bool) error {
	if isJSON {
		return r.writeJSON(data, pretty)
	}
	if _, err := r.output.Write(append(body, '\n')); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// APIGet makes a direct GET request to the backend
func (r *Runner) APIGet(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}
	path := cmd.StringArg("path")
	if path == "" {
		return fmt.Errorf("%w: path", shared.ErrMissingArgument)
	}

	r.logger.Info("GET request", "path", path)

	resp, err := r.backend(config).Get(ctx, path)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	if !resp.OK() {
		return fmt.Errorf("%w: status %d, body: %s", shared.ErrAPIRequest, resp.StatusCode, string(resp.Body))
	}

	return r.writeResponseBody(resp.Body, resp.JSONData, resp.IsJSON, cmd.Bool("pretty"))
}

// APIPost makes a direct POST request to the backend
func (r *Runner) APIPost(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}
	path := cmd.StringArg("path")
	if path == "" {
		return fmt.Errorf("%w: path", shared.ErrMissingArgument)
	}
	data := cmd.String("data")
	if data == "" {
		return fmt.Errorf("%w: --data flag is required", shared.ErrMissingArgument)
	}

	if !json.Valid([]byte(data)) {
		return fmt.Errorf("%w: data is not valid JSON", shared.ErrInvalidArgument)
	}

	r.logger.Info("POST request", "path", path)

	resp, err := r.backend(config).Post(ctx, path, []byte(data))
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	if !resp.OK() {
		return fmt.Errorf("%w: status %d, body: %s", shared.ErrAPIRequest, resp.StatusCode, string(resp.Body))
	}

	return r.writeResponseBody(resp.Body, resp.JSONData, resp.IsJSON, true)
}

type dumpError struct {
	Endpoint string `json:"endpoint"`
	Error    string `json:"error"`
}

type dumpData struct {
	Health    any         `json:"health"`
	Auth      any         `json:"auth,omitempty"`
	Favorites any         `json:"favorites,omitempty"`
	Playlists any         `json:"playlists,omitempty"`
	History   any         `json:"history,omitempty"`
	Errors    []dumpError `json:"errors,omitempty"`
}

// APIDump fetches and displays the backend state. Failed endpoints are listed under errors.
func (r *Runner) APIDump(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}
	api := r.backend(config)

	r.logger.Info("dumping backend state", "backend", api.BaseURL())

	dump := dumpData{}
	for _, ep := range []struct {
		path string
		dst  *any
	}{
		{"/health", &dump.Health},
		{"/api/auth/status", &dump.Auth},
		{"/api/tracks?limit=50", &dump.Favorites},
		{"/api/playlists?limit=50", &dump.Playlists},
		{"/api/recommendations/history", &dump.History},
	} {
		resp, err := api.Get(ctx, ep.path)
		switch {
		case err != nil:
			dump.Errors = append(dump.Errors, dumpError{ep.path, err.Error()})
		case !resp.OK():
			dump.Errors = append(dump.Errors, dumpError{ep.path, resp.ErrorMessage(fmt.Sprintf("status %d", resp.StatusCode))})
		default:
			*ep.dst = resp.JSONData
			continue
		}
		r.logger.Warn("failed to fetch", "endpoint", ep.path)
	}

	if save := cmd.String("save"); save != "" {
		data, err := shared.MarshalJSON(dump, true)
		if err != nil {
			return fmt.Errorf("failed to marshal dump: %w", err)
		}
		if err := os.WriteFile(save, data, 0644); err != nil {
			r.logger.Warn("failed to save dump", "error", err)
		} else {
			r.logger.Info("dump saved", "file", save)
		}
	}

	return r.writeJSON(dump, cmd.Bool("pretty"))
}
