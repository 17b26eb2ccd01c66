// TIDAL device authorization login and session persistence
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tidal-mcp/internal/models"
	"github.com/desertthunder/tidal-mcp/internal/shared"
	"golang.org/x/oauth2"
)

const (
	tidalAuthURL        = "https://auth.tidal.com/v1/oauth2"
	defaultLoginTimeout = 5 * time.Minute
)

// TidalScopes are requested on every login.
var TidalScopes = []string{"r_usr", "w_usr", "w_sub"}

// DeviceCode is what the user needs to approve a login.
type DeviceCode struct {
	DeviceCode              string `json:"deviceCode"`
	UserCode                string `json:"userCode"`
	VerificationURI         string `json:"verificationUri"`
	VerificationURIComplete string `json:"verificationUriComplete"`
	ExpiresIn               int64  `json:"expiresIn"`
	Interval                int64  `json:"interval"`
}

// AuthOpts configures a [TidalAuth].
type AuthOpts struct {
	Config     shared.TidalConfig
	Store      SessionStore
	Service    *TidalService
	HTTPClient *http.Client
	Logger     *log.Logger

	// OpenURL opens the verification page. Defaults to [shared.OpenBrowser].
	OpenURL func(url string) error

	// OnDeviceCode is called once the device code is issued, before polling starts.
	OnDeviceCode func(DeviceCode)
}

// TidalAuth implements [Authenticator] with the OAuth2 device authorization grant.
type TidalAuth struct {
	config       shared.TidalConfig
	oauth        *oauth2.Config
	store        SessionStore
	service      *TidalService
	httpClient   *http.Client
	logger       *log.Logger
	openURL      func(string) error
	onDeviceCode func(DeviceCode)
	mu           sync.Mutex
}

// NewTidalAuth creates a [TidalAuth]. Store and Service are required.
func NewTidalAuth(opts AuthOpts) *TidalAuth {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.OpenURL == nil {
		opts.OpenURL = shared.OpenBrowser
	}
	if opts.Config.LoginTimeout <= 0 {
		opts.Config.LoginTimeout = defaultLoginTimeout
	}

	authURL := strings.TrimRight(opts.Config.AuthURL, "/")
	if authURL == "" {
		authURL = tidalAuthURL
	}
	opts.Config.AuthURL = authURL

	return &TidalAuth{
		config: opts.Config,
		oauth: &oauth2.Config{
			ClientID:     opts.Config.ClientID,
			ClientSecret: opts.Config.ClientSecret,
			Scopes:       TidalScopes,
			Endpoint: oauth2.Endpoint{
				DeviceAuthURL: authURL + "/device_authorization",
				TokenURL:      authURL + "/token",
				AuthStyle:     oauth2.AuthStyleInParams,
			},
		},
		store:        opts.Store,
		service:      opts.Service,
		httpClient:   opts.HTTPClient,
		logger:       shared.WithLogger(opts.Logger, "component", "auth"),
		openURL:      opts.OpenURL,
		onDeviceCode: opts.OnDeviceCode,
	}
}

// Login runs the device flow: request a code, open the browser, poll for the token, then store the session.
//
// Polling stops after the configured login timeout with [shared.ErrTimeout].
func (a *TidalAuth) Login(ctx context.Context) (*models.User, error) {
	if a.config.ClientID == "" {
		return nil, fmt.Errorf("%w: tidal.client_id is not set", shared.ErrMissingCredentials)
	}

	ctx, cancel := context.WithTimeout(ctx, a.config.LoginTimeout)
	defer cancel()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)

	code, err := a.requestDeviceCode(ctx)
	if err != nil {
		return nil, err
	}

	if a.onDeviceCode != nil {
		a.onDeviceCode(*code)
	}

	link := code.VerificationURIComplete
	if link == "" {
		link = code.VerificationURI
	}
	a.logger.Info("waiting for TIDAL login", "url", shared.BrowserURL(link), "code", code.UserCode)
	if err := a.openURL(link); err != nil {
		a.logger.Warn("could not open browser, visit the url manually", "url", shared.BrowserURL(link), "err", err)
	}

	da := &oauth2.DeviceAuthResponse{
		DeviceCode:              code.DeviceCode,
		UserCode:                code.UserCode,
		VerificationURI:         code.VerificationURI,
		VerificationURIComplete: code.VerificationURIComplete,
		Interval:                code.Interval,
	}
	if code.ExpiresIn > 0 {
		da.Expiry = time.Now().Add(time.Duration(code.ExpiresIn) * time.Second)
	}

	token, err := a.oauth.DeviceAccessToken(ctx, da)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: login was not approved in time", shared.ErrTimeout)
		}
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
	}

	user, err := a.service.WithTokenSource(oauth2.StaticTokenSource(token), models.User{}).CurrentUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.store.DeleteAll(); err != nil {
		return nil, fmt.Errorf("failed to clear previous sessions: %w", err)
	}
	if err := a.store.Create(models.NewSession(*user, token)); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	a.logger.Info("logged in to TIDAL", "user", user.ID)
	return user, nil
}

// requestDeviceCode asks TIDAL for a device code. TIDAL answers in camelCase, which
// [oauth2.Config.DeviceAuth] does not parse.
func (a *TidalAuth) requestDeviceCode(ctx context.Context) (*DeviceCode, error) {
	form := url.Values{}
	form.Set("client_id", a.config.ClientID)
	form.Set("scope", strings.Join(TidalScopes, " "))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.oauth.Endpoint.DeviceAuthURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: device authorization: %v", shared.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: device authorization: status %d: %s", shared.ErrAuthFailed, resp.StatusCode, upstreamMessage(body))
	}

	var code DeviceCode
	if err := json.Unmarshal(body, &code); err != nil {
		return nil, fmt.Errorf("%w: failed to decode device code: %v", shared.ErrAuthFailed, err)
	}
	if code.DeviceCode == "" {
		return nil, fmt.Errorf("%w: device authorization returned no device code", shared.ErrAuthFailed)
	}
	return &code, nil
}

// IsAuthenticated reports whether a stored session can still produce access tokens.
func (a *TidalAuth) IsAuthenticated(ctx context.Context) bool {
	session, err := a.Session(ctx)
	return err == nil && !session.Expired()
}

// Session returns the most recent stored session.
func (a *TidalAuth) Session(_ context.Context) (*models.Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.store.Latest()
}

// Catalog returns a [TidalService] bound to the stored session. Refreshed tokens are written back to the store.
func (a *TidalAuth) Catalog(ctx context.Context) (Catalog, *models.Session, error) {
	session, err := a.Session(ctx)
	if err != nil {
		if errors.Is(err, shared.ErrSessionNotFound) {
			return nil, nil, fmt.Errorf("%w: %v", shared.ErrAuthRequired, err)
		}
		return nil, nil, err
	}
	if session.Expired() {
		return nil, nil, fmt.Errorf("%w: session expired", shared.ErrAuthRequired)
	}

	return a.service.WithTokenSource(a.TokenSource(session), session.User()), session, nil
}

// TokenSource returns a refreshing token source for session.
func (a *TidalAuth) TokenSource(session *models.Session) oauth2.TokenSource {
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, a.httpClient)
	return &persistingTokenSource{
		auth:    a,
		session: session,
		source:  oauth2.ReuseTokenSource(session.Token(), a.oauth.TokenSource(ctx, session.Token())),
		last:    session.Token().AccessToken,
	}
}

// Logout deletes all stored sessions.
func (a *TidalAuth) Logout(_ context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.store.DeleteAll(); err != nil {
		return fmt.Errorf("failed to delete sessions: %w", err)
	}
	a.logger.Info("logged out of TIDAL")
	return nil
}

// persistingTokenSource saves the session whenever the wrapped source hands out a new access token.
type persistingTokenSource struct {
	auth    *TidalAuth
	session *models.Session
	source  oauth2.TokenSource
	mu      sync.Mutex
	last    string
}

func (p *persistingTokenSource) Token() (*oauth2.Token, error) {
	token, err := p.source.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrTokenExpired, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if token.AccessToken == p.last {
		return token, nil
	}
	p.last = token.AccessToken

	if token.RefreshToken == "" && p.session.Token() != nil {
		token.RefreshToken = p.session.Token().RefreshToken
	}

	p.auth.mu.Lock()
	p.session.SetToken(token)
	p.session.SetUpdatedAt(time.Now().UTC())
	err = p.auth.store.Update(p.session)
	p.auth.mu.Unlock()

	if err != nil {
		p.auth.logger.Warn("failed to persist refreshed token", "err", err)
	} else {
		p.auth.logger.Debug("persisted refreshed token", "user", p.session.User().ID)
	}
	return token, nil
}
