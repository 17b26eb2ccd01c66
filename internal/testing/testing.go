// package testing contains shared testing utilities
package testing

import (
	"errors"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
)

// ErrInjected is returned by the failing fakes in this package.
var ErrInjected = errors.New("injected failure")

// FailWriter fails every Write.
type FailWriter struct{}

func (FailWriter) Write([]byte) (int, error) { return 0, ErrInjected }

// FailBody is a response body whose reads fail.
type FailBody struct{}

func (FailBody) Read([]byte) (int, error) { return 0, ErrInjected }
func (FailBody) Close() error             { return nil }

// RoundTripFunc adapts a function to [http.RoundTripper].
type RoundTripFunc func(*http.Request) (*http.Response, error)

func (f RoundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

// Respond answers every request with a response carrying status and body.
func Respond(status int, body io.ReadCloser) RoundTripFunc {
	return func(r *http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: status, Header: http.Header{}, Body: body, Request: r}, nil
	}
}

// Refuse fails every request with err.
func Refuse(err error) RoundTripFunc {
	return func(*http.Request) (*http.Response, error) { return nil, err }
}

// Body wraps s as a response body.
func Body(s string) io.ReadCloser { return io.NopCloser(strings.NewReader(s)) }

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
