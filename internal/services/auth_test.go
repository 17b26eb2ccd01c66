package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/tidal-mcp/internal/models"
	"github.com/desertthunder/tidal-mcp/internal/shared"
	tu "github.com/desertthunder/tidal-mcp/internal/testing"
	"golang.org/x/oauth2"
)

type authFixture struct {
	auth    *TidalAuth
	store   *tu.MemorySessionStore
	opened  []string
	code    *DeviceCode
	polls   atomic.Int32
	refresh atomic.Int32
}

// newAuthFixture serves a device flow that approves after pending polls.
func newAuthFixture(t *testing.T, pending int32, loginTimeout time.Duration) *authFixture {
	t.Helper()
	f := &authFixture{store: tu.NewMemorySessionStore()}

	authSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		switch r.URL.Path {
		case "/device_authorization":
			if r.PostForm.Get("client_id") != "client" {
				t.Errorf("expected client_id, got %q", r.PostForm.Get("client_id"))
			}
			writeJSON(t, w, map[string]any{
				"deviceCode":              "device-123",
				"userCode":                "ABCDE",
				"verificationUri":         "link.tidal.com",
				"verificationUriComplete": "link.tidal.com/ABCDE",
				"expiresIn":               300,
				"interval":                1,
			})
		case "/token":
			if r.PostForm.Get("grant_type") == "refresh_token" {
				f.refresh.Add(1)
				writeJSON(t, w, map[string]any{"access_token": "refreshed", "token_type": "Bearer", "expires_in": 3600})
				return
			}
			if r.PostForm.Get("device_code") != "device-123" {
				t.Errorf("expected device_code, got %q", r.PostForm.Get("device_code"))
			}
			if f.polls.Add(1) <= pending {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(`{"status":400,"error":"authorization_pending"}`))
				return
			}
			writeJSON(t, w, map[string]any{
				"access_token":  "access",
				"refresh_token": "refresh",
				"token_type":    "Bearer",
				"expires_in":    3600,
			})
		default:
			t.Errorf("unexpected auth path %s", r.URL.Path)
		}
	}))
	t.Cleanup(authSrv.Close)

	apiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/sessions":
			writeJSON(t, w, map[string]any{"userId": 42, "countryCode": "NO"})
		case "/users/42":
			writeJSON(t, w, map[string]any{"id": 42, "username": "listener", "email": "l@example.com"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(apiSrv.Close)

	cfg := shared.TidalConfig{
		ClientID:     "client",
		ClientSecret: "secret",
		APIURL:       apiSrv.URL,
		AuthURL:      authSrv.URL,
		LoginTimeout: loginTimeout,
	}
	f.auth = NewTidalAuth(AuthOpts{
		Config:  cfg,
		Store:   f.store,
		Service: NewTidalService(TidalOpts{Config: cfg}),
		OpenURL: func(u string) error {
			f.opened = append(f.opened, u)
			return errors.New("no browser")
		},
		OnDeviceCode: func(c DeviceCode) { f.code = &c },
	})
	return f
}

func TestTidalAuth(t *testing.T) {
	t.Run("Login", func(t *testing.T) {
		t.Run("Device Flow Persists Session", func(t *testing.T) {
			f := newAuthFixture(t, 1, 30*time.Second)

			user, err := f.auth.Login(context.Background())
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if user.ID != "42" || user.Username != "listener" {
				t.Errorf("unexpected user %+v", user)
			}
			if f.code == nil || f.code.UserCode != "ABCDE" {
				t.Errorf("expected device code callback, got %+v", f.code)
			}
			if len(f.opened) != 1 || f.opened[0] != "link.tidal.com/ABCDE" {
				t.Errorf("expected browser to open verification url, got %v", f.opened)
			}

			session, err := f.store.Latest()
			if err != nil {
				t.Fatalf("expected stored session, got %v", err)
			}
			if session.Token().AccessToken != "access" || session.Token().RefreshToken != "refresh" {
				t.Errorf("unexpected token %+v", session.Token())
			}
			if !f.auth.IsAuthenticated(context.Background()) {
				t.Error("expected to be authenticated after login")
			}
		})

		t.Run("Replaces Previous Session", func(t *testing.T) {
			f := newAuthFixture(t, 0, 30*time.Second)
			f.store.Create(models.NewSession(models.User{ID: "old"}, &oauth2.Token{AccessToken: "old"}))

			if _, err := f.auth.Login(context.Background()); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if f.store.Len() != 1 {
				t.Errorf("expected a single session, got %d", f.store.Len())
			}
		})

		t.Run("Times Out", func(t *testing.T) {
			f := newAuthFixture(t, 1000, 1500*time.Millisecond)

			_, err := f.auth.Login(context.Background())
			if !errors.Is(err, shared.ErrTimeout) {
				t.Errorf("expected ErrTimeout, got %v", err)
			}
			if f.store.Len() != 0 {
				t.Error("expected no session after timeout")
			}
		})

		t.Run("Missing Client ID", func(t *testing.T) {
			auth := NewTidalAuth(AuthOpts{Store: tu.NewMemorySessionStore(), Service: NewTidalService(TidalOpts{})})

			_, err := auth.Login(context.Background())
			if !errors.Is(err, shared.ErrMissingCredentials) {
				t.Errorf("expected ErrMissingCredentials, got %v", err)
			}
		})

		t.Run("Device Authorization Rejected", func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"invalid_client","error_description":"unknown client"}`))
			}))
			defer srv.Close()

			auth := NewTidalAuth(AuthOpts{
				Config:  shared.TidalConfig{ClientID: "bad", AuthURL: srv.URL},
				Store:   tu.NewMemorySessionStore(),
				Service: NewTidalService(TidalOpts{}),
			})

			_, err := auth.Login(context.Background())
			if !errors.Is(err, shared.ErrAuthFailed) {
				t.Errorf("expected ErrAuthFailed, got %v", err)
			}
		})
	})

	t.Run("Catalog", func(t *testing.T) {
		t.Run("Without Session", func(t *testing.T) {
			f := newAuthFixture(t, 0, time.Minute)

			_, _, err := f.auth.Catalog(context.Background())
			if !errors.Is(err, shared.ErrAuthRequired) {
				t.Errorf("expected ErrAuthRequired, got %v", err)
			}
			if f.auth.IsAuthenticated(context.Background()) {
				t.Error("expected not authenticated")
			}
		})

		t.Run("Expired Without Refresh Token", func(t *testing.T) {
			f := newAuthFixture(t, 0, time.Minute)
			f.store.Create(models.NewSession(models.User{ID: "42"}, &oauth2.Token{
				AccessToken: "stale",
				Expiry:      time.Now().Add(-time.Hour),
			}))

			_, _, err := f.auth.Catalog(context.Background())
			if !errors.Is(err, shared.ErrAuthRequired) {
				t.Errorf("expected ErrAuthRequired, got %v", err)
			}
		})

		t.Run("Bound To Session User", func(t *testing.T) {
			f := newAuthFixture(t, 0, time.Minute)
			f.store.Create(models.NewSession(models.User{ID: "42", CountryCode: "SE"}, &oauth2.Token{
				AccessToken: "access",
				Expiry:      time.Now().Add(time.Hour),
			}))

			catalog, session, err := f.auth.Catalog(context.Background())
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			svc, ok := catalog.(*TidalService)
			if !ok {
				t.Fatalf("expected *TidalService, got %T", catalog)
			}
			if svc.User().ID != "42" || svc.countryCode != "SE" {
				t.Errorf("unexpected binding %+v %s", svc.User(), svc.countryCode)
			}
			if session.User().ID != "42" {
				t.Errorf("unexpected session user %s", session.User().ID)
			}
		})
	})

	t.Run("TokenSource Persists Refreshed Token", func(t *testing.T) {
		f := newAuthFixture(t, 0, time.Minute)
		session := models.NewSession(models.User{ID: "42"}, &oauth2.Token{
			AccessToken:  "stale",
			RefreshToken: "refresh",
			Expiry:       time.Now().Add(-time.Hour),
		})
		f.store.Create(session)

		ts := f.auth.TokenSource(session)
		token, err := ts.Token()
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if token.AccessToken != "refreshed" {
			t.Errorf("expected refreshed token, got %s", token.AccessToken)
		}

		stored, _ := f.store.Latest()
		if stored.Token().AccessToken != "refreshed" {
			t.Errorf("expected refreshed token to be stored, got %s", stored.Token().AccessToken)
		}
		if stored.Token().RefreshToken != "refresh" {
			t.Errorf("expected refresh token to be kept, got %q", stored.Token().RefreshToken)
		}

		if _, err := ts.Token(); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got := f.refresh.Load(); got != 1 {
			t.Errorf("expected a single refresh, got %d", got)
		}
	})

	t.Run("Logout", func(t *testing.T) {
		f := newAuthFixture(t, 0, time.Minute)
		f.store.Create(models.NewSession(models.User{ID: "42"}, &oauth2.Token{AccessToken: "a"}))

		if err := f.auth.Logout(context.Background()); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if _, err := f.auth.Session(context.Background()); !errors.Is(err, shared.ErrSessionNotFound) {
			t.Errorf("expected ErrSessionNotFound, got %v", err)
		}
	})
}
