package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	tu "github.com/desertthunder/tidal-mcp/internal/testing"
)

// echoServer answers with the method, path, content type and body it received.
func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		switch r.URL.Path {
		case "/plain":
			w.Write([]byte("plain text"))
		case "/health":
			w.Write([]byte(`{"status":"ok"}`))
		case "/down":
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			w.Header().Set("X-Backend", "tidal-mcp")
			json.NewEncoder(w).Encode(map[string]string{
				"method":       r.Method,
				"path":         r.URL.RequestURI(),
				"content_type": r.Header.Get("Content-Type"),
				"body":         string(body),
			})
		}
	}))
	t.Cleanup(ts.Close)
	return ts
}

func echoed(t *testing.T, resp *APIResponse) map[string]string {
	t.Helper()
	var got map[string]string
	if err := resp.Decode(&got); err != nil {
		t.Fatalf("failed to decode echo: %v", err)
	}
	return got
}

func TestAPIService(t *testing.T) {
	t.Run("New", func(t *testing.T) {
		tests := []struct {
			name    string
			baseURL string
			want    string
		}{
			{"Custom", "http://localhost:6000", "http://localhost:6000"},
			{"Default", "", defaultBackendURL},
			{"Trailing Slash", "http://localhost:6000/", "http://localhost:6000"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				if got := NewAPIService(tt.baseURL, nil).BaseURL(); got != tt.want {
					t.Errorf("expected %s, got %s", tt.want, got)
				}
			})
		}

		t.Run("Nil Client", func(t *testing.T) {
			if NewAPIService("", nil).httpClient != http.DefaultClient {
				t.Error("expected http.DefaultClient")
			}
		})
	})

	t.Run("Methods", func(t *testing.T) {
		ts := echoServer(t)
		api := NewAPIService(ts.URL, ts.Client())
		ctx := context.Background()

		tests := []struct {
			name        string
			call        func() (*APIResponse, error)
			method      string
			path        string
			contentType string
			body        string
		}{
			{
				name:   "Get",
				call:   func() (*APIResponse, error) { return api.Get(ctx, "/api/tracks?limit=5") },
				method: http.MethodGet, path: "/api/tracks?limit=5",
			},
			{
				name:   "Post",
				call:   func() (*APIResponse, error) { return api.Post(ctx, "/api/playlists", []byte(`{"title":"Mix"}`)) },
				method: http.MethodPost, path: "/api/playlists", contentType: "application/json", body: `{"title":"Mix"}`,
			},
			{
				name: "PostJSON",
				call: func() (*APIResponse, error) {
					return api.PostJSON(ctx, "/api/recommendations/batch", map[string]any{"track_ids": []int{1}})
				},
				method: http.MethodPost, path: "/api/recommendations/batch", contentType: "application/json", body: `{"track_ids":[1]}`,
			},
			{
				name:   "Delete",
				call:   func() (*APIResponse, error) { return api.Delete(ctx, "/api/playlists/abc") },
				method: http.MethodDelete, path: "/api/playlists/abc",
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				resp, err := tt.call()
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				if !resp.OK() || !resp.IsJSON {
					t.Fatalf("expected a JSON 200, got %d (json=%v)", resp.StatusCode, resp.IsJSON)
				}
				if resp.Headers.Get("X-Backend") != "tidal-mcp" {
					t.Error("expected response headers to be preserved")
				}

				got := echoed(t, resp)
				if got["method"] != tt.method || got["path"] != tt.path {
					t.Errorf("expected %s %s, got %s %s", tt.method, tt.path, got["method"], got["path"])
				}
				if got["content_type"] != tt.contentType {
					t.Errorf("expected content type %q, got %q", tt.contentType, got["content_type"])
				}
				if got["body"] != tt.body {
					t.Errorf("expected body %q, got %q", tt.body, got["body"])
				}
			})
		}

		t.Run("Non-JSON Response", func(t *testing.T) {
			resp, err := api.Get(ctx, "/plain")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if resp.IsJSON || resp.JSONData != nil || string(resp.Body) != "plain text" {
				t.Errorf("unexpected response %+v", resp)
			}
		})

		t.Run("Unencodable Value", func(t *testing.T) {
			_, err := api.PostJSON(ctx, "/x", make(chan int))
			if err == nil || !strings.Contains(err.Error(), "failed to encode request") {
				t.Errorf("expected encode error, got %v", err)
			}
		})

		t.Run("Canceled Context", func(t *testing.T) {
			canceled, cancel := context.WithCancel(ctx)
			cancel()
			if _, err := api.Get(canceled, "/health"); err == nil {
				t.Error("expected error for canceled context")
			}
		})
	})

	t.Run("Transport Failures", func(t *testing.T) {
		tests := []struct {
			name      string
			transport http.RoundTripper
			path      string
			want      string
		}{
			{"Invalid URL", nil, "/test\x00invalid", "failed to create request"},
			{"Connection Refused", tu.Refuse(errors.New("connection refused")), "/test", "request failed"},
			{"Body Read", tu.Respond(http.StatusOK, tu.FailBody{}), "/test", "failed to read response"},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				api := NewAPIService("http://example.com", &http.Client{Transport: tt.transport})
				for _, call := range []func() (*APIResponse, error){
					func() (*APIResponse, error) { return api.Get(context.Background(), tt.path) },
					func() (*APIResponse, error) { return api.Post(context.Background(), tt.path, []byte("{}")) },
				} {
					_, err := call()
					if err == nil || !strings.Contains(err.Error(), tt.want) {
						t.Errorf("expected %q error, got %v", tt.want, err)
					}
				}
			})
		}
	})

	t.Run("Ping", func(t *testing.T) {
		ts := echoServer(t)

		if err := NewAPIService(ts.URL, ts.Client()).Ping(context.Background()); err != nil {
			t.Errorf("expected healthy backend, got %v", err)
		}

		down := &http.Client{Transport: tu.Respond(http.StatusServiceUnavailable, tu.Body(""))}
		err := NewAPIService("http://example.com", down).Ping(context.Background())
		if err == nil || !strings.Contains(err.Error(), "status 503") {
			t.Errorf("expected status error, got %v", err)
		}
	})

	t.Run("ErrorMessage", func(t *testing.T) {
		tests := []struct {
			name string
			body string
			want string
		}{
			{"Error Field", `{"error":"Not authenticated"}`, "Not authenticated"},
			{"Message Field", `{"status":"error","message":"Track with ID 1 not found"}`, "Track with ID 1 not found"},
			{"Empty Fields", `{"error":""}`, "fallback"},
			{"Not JSON", `oops`, "fallback"},
			{"JSON Array", `[1,2]`, "fallback"},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				client := &http.Client{Transport: tu.Respond(http.StatusBadRequest, tu.Body(tt.body))}
				resp, err := NewAPIService("http://example.com", client).Get(context.Background(), "/x")
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				if resp.OK() {
					t.Error("expected a non-OK response")
				}
				if got := resp.ErrorMessage("fallback"); got != tt.want {
					t.Errorf("expected %q, got %q", tt.want, got)
				}
			})
		}
	})
}
