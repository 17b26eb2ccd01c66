package sidecar

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"os/signal"
	"syscall"
	"testing"
	"time"

	"github.com/desertthunder/tidal-mcp/internal/services"
	"github.com/desertthunder/tidal-mcp/internal/shared"
)

// TestHelperProcess is the fake backend launched by the tests below.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}

	switch os.Getenv("HELPER_MODE") {
	case "exit":
		os.Exit(3)
	case "stubborn":
		signal.Ignore(syscall.SIGTERM)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"status":"ok","authenticated":false}`)
	})
	http.ListenAndServe(os.Getenv("HELPER_ADDR"), mux)
	os.Exit(0)
}

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to reserve a port: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()
	return addr
}

func helperOptions(t *testing.T, mode string) Options {
	addr := freeAddr(t)
	return Options{
		Command:      os.Args[0],
		Args:         []string{"-test.run=TestHelperProcess"},
		Env:          []string{"GO_WANT_HELPER_PROCESS=1", "HELPER_MODE=" + mode, "HELPER_ADDR=" + addr},
		API:          services.NewAPIService("http://"+addr, nil),
		Output:       io.Discard,
		StartTimeout: 5 * time.Second,
		StopTimeout:  500 * time.Millisecond,
	}
}

func waitDone(t *testing.T, h *ServiceHandle) {
	t.Helper()
	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("backend process did not exit")
	}
}

func TestStart(t *testing.T) {
	t.Run("Starts And Stops", func(t *testing.T) {
		opts := helperOptions(t, "")

		h, err := Start(context.Background(), opts)
		if err != nil {
			t.Fatalf("start failed: %v", err)
		}
		if !h.Owned() {
			t.Error("expected the handle to own the process")
		}
		if err := opts.API.Ping(context.Background()); err != nil {
			t.Errorf("expected healthy backend: %v", err)
		}

		if err := h.Stop(); err != nil {
			t.Errorf("stop failed: %v", err)
		}
		waitDone(t, h)

		if err := h.Stop(); err != nil {
			t.Errorf("second stop should be a no-op, got %v", err)
		}
	})

	t.Run("Kills After Grace Period", func(t *testing.T) {
		opts := helperOptions(t, "stubborn")

		h, err := Start(context.Background(), opts)
		if err != nil {
			t.Fatalf("start failed: %v", err)
		}

		start := time.Now()
		if err := h.Stop(); err != nil {
			t.Errorf("stop failed: %v", err)
		}
		waitDone(t, h)

		if elapsed := time.Since(start); elapsed < opts.StopTimeout {
			t.Errorf("expected stop to wait out the grace period, took %s", elapsed)
		}
	})

	t.Run("Process Exits Early", func(t *testing.T) {
		opts := helperOptions(t, "exit")

		_, err := Start(context.Background(), opts)
		if !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})

	t.Run("Missing Command", func(t *testing.T) {
		opts := helperOptions(t, "")
		opts.Command = "/nonexistent/tidal-mcp-backend"

		_, err := Start(context.Background(), opts)
		if !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})

	t.Run("Reuses Running Backend", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"status":"ok"}`)
		}))
		defer ts.Close()

		h, err := Start(context.Background(), Options{
			Command: "/nonexistent/tidal-mcp-backend",
			API:     services.NewAPIService(ts.URL, nil),
		})
		if err != nil {
			t.Fatalf("start failed: %v", err)
		}
		if h.Owned() {
			t.Error("reused backend must not be owned")
		}
		if err := h.Stop(); err != nil {
			t.Errorf("stop failed: %v", err)
		}

		resp, err := http.Get(ts.URL)
		if err != nil {
			t.Fatalf("backend should still be running: %v", err)
		}
		resp.Body.Close()
	})

	t.Run("Requires Client", func(t *testing.T) {
		_, err := Start(context.Background(), Options{})
		if !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})
}
