package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/tidal-mcp/internal/models"
	"github.com/desertthunder/tidal-mcp/internal/services"
	"github.com/desertthunder/tidal-mcp/internal/shared"
	tu "github.com/desertthunder/tidal-mcp/internal/testing"
	"golang.org/x/oauth2"
)

// fakeAuth is an in-memory [services.Authenticator].
type fakeAuth struct {
	mu         sync.Mutex
	catalog    *tu.FakeCatalog
	session    *models.Session
	sessionErr error
	loginUser  *models.User
	loginErr   error
	loggedOut  bool
}

func newFakeAuth(loggedIn bool) *fakeAuth {
	user := models.User{ID: "42", Username: "listener", Email: "l@example.com"}
	f := &fakeAuth{catalog: tu.NewFakeCatalog(user), loginUser: &user}
	if loggedIn {
		f.session = models.NewSession(user, &oauth2.Token{AccessToken: "access"})
	}
	return f
}

func (f *fakeAuth) IsAuthenticated(ctx context.Context) bool {
	s, err := f.Session(ctx)
	return err == nil && !s.Expired()
}

func (f *fakeAuth) Login(context.Context) (*models.User, error) {
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.session = models.NewSession(*f.loginUser, &oauth2.Token{AccessToken: "access"})
	return f.loginUser, nil
}

func (f *fakeAuth) Session(context.Context) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sessionErr != nil {
		return nil, f.sessionErr
	}
	if f.session == nil {
		return nil, shared.ErrSessionNotFound
	}
	return f.session, nil
}

func (f *fakeAuth) Catalog(ctx context.Context) (services.Catalog, *models.Session, error) {
	s, err := f.Session(ctx)
	if err != nil {
		if errors.Is(err, shared.ErrSessionNotFound) {
			return nil, nil, fmt.Errorf("%w: %v", shared.ErrAuthRequired, err)
		}
		return nil, nil, err
	}
	if s.Expired() {
		return nil, nil, shared.ErrAuthRequired
	}
	return f.catalog, s, nil
}

func (f *fakeAuth) Logout(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.session = nil
	f.loggedOut = true
	return nil
}

// memRuns is an in-memory [RunStore].
type memRuns struct {
	mu   sync.Mutex
	runs []*models.RecommendationRun
	err  error
}

func (m *memRuns) Create(run *models.RecommendationRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	run.SetID(shared.GenerateID())
	m.runs = append([]*models.RecommendationRun{run}, m.runs...)
	return nil
}

func (m *memRuns) List(criteria map[string]any) ([]*models.RecommendationRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	limit, _ := criteria["limit"].(int)
	if limit > 0 && limit < len(m.runs) {
		return m.runs[:limit], nil
	}
	return m.runs, nil
}

func newTestServer(t *testing.T, auth services.Authenticator, runs RunStore) *httptest.Server {
	t.Helper()
	srv := New(Options{Config: *shared.DefaultConfig(), Auth: auth, Runs: runs})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func do(t *testing.T, ts *httptest.Server, method, path string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, _ := json.Marshal(b)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, ts.URL+path, reader)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	var out map[string]any
	json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestServe(t *testing.T) {
	t.Run("Shuts Down On Cancel", func(t *testing.T) {
		srv := New(Options{Config: *shared.DefaultConfig(), Auth: newFakeAuth(false)})

		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatalf("failed to listen: %v", err)
		}

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- srv.Serve(ctx, ln) }()

		resp, err := http.Get("http://" + ln.Addr().String() + "/health")
		if err != nil {
			t.Fatalf("health request failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("expected 200, got %d", resp.StatusCode)
		}

		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("expected clean shutdown, got %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("server did not shut down")
		}
	})

	t.Run("Run Fails On Bad Address", func(t *testing.T) {
		cfg := *shared.DefaultConfig()
		cfg.Server.Port = 70000
		srv := New(Options{Config: cfg, Auth: newFakeAuth(false)})

		err := srv.Run(context.Background())
		if !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{fmt.Errorf("%w: x", shared.ErrInvalidRequest), http.StatusBadRequest},
		{shared.ErrMissingArgument, http.StatusBadRequest},
		{fmt.Errorf("%w: x", shared.ErrAuthRequired), http.StatusUnauthorized},
		{shared.ErrTokenExpired, http.StatusUnauthorized},
		{fmt.Errorf("%w: 9", shared.ErrTrackNotFound), http.StatusNotFound},
		{shared.ErrPlaylistNotFound, http.StatusNotFound},
		{shared.ErrTimeout, http.StatusRequestTimeout},
		{shared.ErrAPIRequest, http.StatusBadGateway},
		{fmt.Errorf("%w: breaker open", shared.ErrUpstreamUnavailable), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.err), func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
}
