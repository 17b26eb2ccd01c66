package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrAuthFailed      = fmt.Errorf("authentication failed")
	ErrAuthRequired    = fmt.Errorf("authentication required")
	ErrUnauthenticated = fmt.Errorf("not authenticated")
	ErrTokenExpired    = fmt.Errorf("access token expired")
	ErrSessionNotFound = fmt.Errorf("session not found")
	ErrTimeout         = fmt.Errorf("operation timed out")

	// API and service errors
	ErrAPIRequest          = fmt.Errorf("API request failed")
	ErrUpstreamUnavailable = fmt.Errorf("upstream unavailable")
	ErrServiceUnavailable  = fmt.Errorf("service unavailable")
	ErrPlaylistNotFound    = fmt.Errorf("playlist not found")
	ErrTrackNotFound       = fmt.Errorf("track not found")

	// Input validation errors
	ErrInvalidRequest  = fmt.Errorf("invalid request")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
