package server

import (
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"
)

type routesHandler struct {
	http.HandlerFunc
	routes []string
}

func (h routesHandler) Routes() []string { return h.routes }

func TestBasicRouter(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(r.PathValue("id")))
	})

	t.Run("Method Patterns", func(t *testing.T) {
		router := NewBasicRouter()
		router.Handle("get", "/items/{id}", ok)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items/7", nil))
		if rec.Code != http.StatusOK || rec.Body.String() != "7" {
			t.Errorf("expected 200 with path value, got %d %q", rec.Code, rec.Body.String())
		}

		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/items/7", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rec.Code)
		}

		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/other", nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("Middleware Order", func(t *testing.T) {
		var order []string
		mark := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, r)
				})
			}
		}

		router := NewBasicRouter()
		router.Use(mark("first"), mark("second"))
		router.Handle(http.MethodGet, "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			order = append(order, "handler")
		}))

		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

		if !slices.Equal(order, []string{"first", "second", "handler"}) {
			t.Errorf("unexpected order %v", order)
		}
	})

	t.Run("Middleware Wraps Every Request", func(t *testing.T) {
		calls := 0
		count := func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls++
				next.ServeHTTP(w, r)
			})
		}

		router := NewBasicRouter()
		router.Handle(http.MethodGet, "/before/{id}", ok)
		router.Use(count)
		router.Handle(http.MethodGet, "/after/{id}", ok)

		for _, req := range []*http.Request{
			httptest.NewRequest(http.MethodGet, "/before/1", nil),
			httptest.NewRequest(http.MethodGet, "/after/1", nil),
			httptest.NewRequest(http.MethodGet, "/nowhere", nil),
			httptest.NewRequest(http.MethodDelete, "/after/1", nil),
		} {
			router.ServeHTTP(httptest.NewRecorder(), req)
		}

		if calls != 4 {
			t.Errorf("expected middleware to see 4 requests, saw %d", calls)
		}
	})

	t.Run("Handler Registers All Routes", func(t *testing.T) {
		router := NewBasicRouter()
		router.Handler(routesHandler{HandlerFunc: ok, routes: []string{"GET /a/{id}", "GET /b/{id}"}})

		for _, path := range []string{"/a/1", "/b/2"} {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
			if rec.Code != http.StatusOK {
				t.Errorf("expected 200 for %s, got %d", path, rec.Code)
			}
		}

		if got := router.Routes(); !slices.Equal(got, []string{"GET /a/{id}", "GET /b/{id}"}) {
			t.Errorf("unexpected routes %v", got)
		}
	})
}
