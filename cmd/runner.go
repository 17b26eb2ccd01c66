package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tidal-mcp/internal/repositories"
	"github.com/desertthunder/tidal-mcp/internal/services"
	"github.com/desertthunder/tidal-mcp/internal/shared"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// Anything left nil in [RunnerOpts] is built lazily from the loaded configuration.
type Runner struct {
	config     *shared.Config
	api        *services.APIService
	auth       services.Authenticator
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	version    string
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	API        *services.APIService
	Auth       services.Authenticator
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
	Version    string
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}

	return &Runner{
		config:     opts.Config,
		api:        opts.API,
		auth:       opts.Auth,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		version:    opts.Version,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		serveCommand, mcpCommand, authCommand, tracksCommand, recommendCommand,
		playlistsCommand, browseCommand, apiCommand, setupCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// loadConfig reads the file named by --config once and applies its log level.
func (r *Runner) loadConfig(cmd *cli.Command) (*shared.Config, error) {
	if r.config != nil {
		return r.config, nil
	}

	config, err := shared.LoadConfigOrDefault(cmd.String("config"))
	if err != nil {
		return nil, err
	}
	shared.ConfigureLogger(r.logger, config.Logging)

	r.config = config
	return config, nil
}

// backend returns the client for the local HTTP backend.
func (r *Runner) backend(config *shared.Config) *services.APIService {
	if r.api == nil {
		r.api = services.NewAPIService(config.Server.BaseURL(), r.httpClient)
	}
	return r.api
}

func (r *Runner) openDatabase(config *shared.Config) (*sql.DB, error) {
	db, err := shared.OpenDatabase(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

func (r *Runner) newAuth(config *shared.Config, db *sql.DB, onCode func(services.DeviceCode)) *services.TidalAuth {
	tidal := services.NewTidalService(services.TidalOpts{
		Config:     config.Tidal,
		Breaker:    config.Breaker,
		HTTPClient: r.httpClient,
		Logger:     r.logger,
	})
	return services.NewTidalAuth(services.AuthOpts{
		Config:       config.Tidal,
		Store:        repositories.NewSessionRepository(db),
		Service:      tidal,
		HTTPClient:   r.httpClient,
		Logger:       r.logger,
		OnDeviceCode: onCode,
	})
}

// authenticator returns the injected [services.Authenticator] or one backed by the session database.
// The returned func releases the database.
func (r *Runner) authenticator(config *shared.Config, onCode func(services.DeviceCode)) (services.Authenticator, func(), error) {
	if r.auth != nil {
		return r.auth, func() {}, nil
	}

	db, err := r.openDatabase(config)
	if err != nil {
		return nil, nil, err
	}
	closeDB := func() {
		if err := db.Close(); err != nil {
			r.logger.Warn("failed to close database", "err", err)
		}
	}
	return r.newAuth(config, db, onCode), closeDB, nil
}

// catalog returns a [services.Catalog] for the stored session.
func (r *Runner) catalog(ctx context.Context, cmd *cli.Command) (services.Catalog, func(), error) {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}

	auth, release, err := r.authenticator(config, nil)
	if err != nil {
		return nil, nil, err
	}

	catalog, _, err := auth.Catalog(ctx)
	if err != nil {
		release()
		if errors.Is(err, shared.ErrAuthRequired) {
			return nil, nil, fmt.Errorf("%w: run 'tidal-mcp auth login' first", err)
		}
		return nil, nil, err
	}
	return catalog, release, nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	out, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return err
	}
	return r.write(append(out, '\n'))
}

func (r *Runner) writePlain(format string, args ...any) error {
	return r.write([]byte(fmt.Sprintf(format, args...)))
}

// writePlainln writes one line set off by a blank line above it.
func (r *Runner) writePlainln(format string, args ...any) error {
	return r.write([]byte("\n" + fmt.Sprintf(format, args...) + "\n"))
}

func (r *Runner) writePlainHeader(title string) {
	rule := strings.Repeat("═", 39)
	r.writePlain("%s\n%s\n%s\n", rule, title, rule)
}

func (r *Runner) write(b []byte) error {
	if _, err := r.output.Write(b); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
