package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/desertthunder/tidal-mcp/internal/repositories"
	"github.com/desertthunder/tidal-mcp/internal/server"
	"github.com/desertthunder/tidal-mcp/internal/services"
	"github.com/desertthunder/tidal-mcp/internal/shared"
	"github.com/desertthunder/tidal-mcp/internal/sidecar"
	"github.com/desertthunder/tidal-mcp/internal/tools"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/urfave/cli/v3"
)

// Serve runs the backend until SIGINT or SIGTERM.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}
	if port := cmd.Int("port"); port > 0 {
		config.Server.Port = port
	}

	db, err := r.openDatabase(config)
	if err != nil {
		return err
	}
	defer db.Close()

	var auth services.Authenticator = r.auth
	if auth == nil {
		auth = r.newAuth(config, db, nil)
	}

	srv := server.New(server.Options{
		Config: *config,
		Auth:   auth,
		Runs:   repositories.NewRecommendationRunRepository(db),
		Logger: r.logger,
	})

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	r.logger.Info("starting backend", "addr", config.Server.Addr(), "database", config.Database.Path)
	return srv.Run(ctx)
}

// MCP starts (or reuses) the backend and serves the tools over stdio until the client disconnects.
func (r *Runner) MCP(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}
	api := r.backend(config)

	handle, err := sidecar.Start(ctx, sidecar.Options{
		Args:   []string{"--config", cmd.String("config"), "serve"},
		Env:    []string{fmt.Sprintf("%s=%d", shared.PortEnv, config.Server.Port)},
		API:    api,
		Logger: r.logger,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := handle.Stop(); err != nil {
			r.logger.Warn("backend did not stop cleanly", "err", err)
		}
	}()

	s := tools.NewServer(r.version, tools.New(api, config.Recommend, r.logger))

	r.logger.Info("serving MCP over stdio", "backend", api.BaseURL(), "owned", handle.Owned())
	if err := mcpserver.ServeStdio(s, mcpserver.WithErrorLogger(r.logger.StandardLog())); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}
