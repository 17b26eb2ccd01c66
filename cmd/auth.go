package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/tidal-mcp/internal/models"
	"github.com/desertthunder/tidal-mcp/internal/services"
	"github.com/desertthunder/tidal-mcp/internal/shared"
	"github.com/desertthunder/tidal-mcp/internal/ui"
	"github.com/urfave/cli/v3"
)

func displayName(user models.User) string {
	if user.Username != "" {
		return user.Username
	}
	return user.ID
}

// AuthLogin runs the device login and stores the session.
//
// By default a spinner shows the link and code; --plain prints them instead.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	login := func(ctx context.Context, onCode func(services.DeviceCode)) (*models.User, error) {
		auth, release, err := r.authenticator(config, onCode)
		if err != nil {
			return nil, err
		}
		defer release()
		return auth.Login(ctx)
	}

	if !cmd.Bool("plain") {
		user, err := ui.RunLogin(ctx, r.output, login)
		if err != nil {
			return fmt.Errorf("login failed: %w", err)
		}
		r.logger.Debug("login complete", "user", user.ID)
		return nil
	}

	user, err := login(ctx, func(code services.DeviceCode) {
		link := code.VerificationURIComplete
		if link == "" {
			link = code.VerificationURI
		}
		r.writePlain("Open %s and confirm the code %s\n", shared.BrowserURL(link), code.UserCode)
	})
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	return r.writePlain("%s\n", ui.Success("✓ Logged in to TIDAL as "+displayName(*user)))
}

type authStatus struct {
	Authenticated bool         `json:"authenticated"`
	Message       string       `json:"message"`
	User          *models.User `json:"user,omitempty"`
	UpdatedAt     *time.Time   `json:"updated_at,omitempty"`
}

// AuthStatus reports the stored session without touching the network.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}
	auth, release, err := r.authenticator(config, nil)
	if err != nil {
		return err
	}
	defer release()

	status := authStatus{Message: "No active TIDAL session"}
	session, err := auth.Session(ctx)
	switch {
	case errors.Is(err, shared.ErrSessionNotFound):
	case err != nil:
		return fmt.Errorf("failed to read session: %w", err)
	case session.Expired():
		status.Message = "TIDAL session expired"
	default:
		user := session.User()
		updated := session.UpdatedAt()
		status = authStatus{
			Authenticated: true,
			Message:       "Logged in to TIDAL",
			User:          &user,
			UpdatedAt:     &updated,
		}
	}

	if cmd.Bool("json") {
		return r.writeJSON(status, true)
	}

	if !status.Authenticated {
		paint := ui.Error
		if session != nil {
			paint = ui.Warn
		}
		r.writePlain("%s\n", paint("✗ "+status.Message))
		return r.writePlain("%s\n", ui.Muted("Run 'tidal-mcp auth login' to connect your account"))
	}

	r.writePlain("%s\n", ui.Success("✓ "+status.Message))
	r.writePlain("User: %s (%s)\n", displayName(*status.User), status.User.ID)
	if status.User.Email != "" {
		r.writePlain("Email: %s\n", status.User.Email)
	}
	return r.writePlain("Session updated: %s\n", status.UpdatedAt.Local().Format(time.RFC1123))
}

// AuthLogout deletes every stored session.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}
	auth, release, err := r.authenticator(config, nil)
	if err != nil {
		return err
	}
	defer release()

	if err := auth.Logout(ctx); err != nil {
		return err
	}
	return r.writePlain("%s\n", ui.Success("✓ Logged out of TIDAL"))
}
