package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/oauth2"
)

// User is the TIDAL account behind a session.
type User struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	CountryCode string `json:"country_code,omitempty"`
}

// Session is a persisted TIDAL login.
//
// Implements [Model]; tokens are stored as JSON so refreshed access tokens can be written back.
type Session struct {
	id        string
	user      User
	token     *oauth2.Token
	createdAt time.Time
	updatedAt time.Time
}

// NewSession creates an unsaved session for user holding token.
func NewSession(user User, token *oauth2.Token) *Session {
	now := time.Now().UTC()
	return &Session{user: user, token: token, createdAt: now, updatedAt: now}
}

func (s *Session) ID() string           { return s.id }
func (s *Session) CreatedAt() time.Time { return s.createdAt }
func (s *Session) UpdatedAt() time.Time { return s.updatedAt }
func (s *Session) User() User           { return s.user }
func (s *Session) Token() *oauth2.Token { return s.token }

func (s *Session) SetID(id string)              { s.id = id }
func (s *Session) SetCreatedAt(t time.Time)     { s.createdAt = t }
func (s *Session) SetUpdatedAt(t time.Time)     { s.updatedAt = t }
func (s *Session) SetToken(token *oauth2.Token) { s.token = token }

// Validate checks the session carries a user and a usable token.
func (s *Session) Validate() error {
	if s.user.ID == "" {
		return errors.New("session user id is required")
	}
	if s.token == nil || s.token.AccessToken == "" {
		return errors.New("session access token is required")
	}
	return nil
}

// Expired reports whether the access token has expired and cannot be refreshed.
func (s *Session) Expired() bool {
	if s.token == nil {
		return true
	}
	return !s.token.Valid() && s.token.RefreshToken == ""
}

// EncodeToken serialises the oauth2 token for storage.
func (s *Session) EncodeToken() (string, error) {
	data, err := json.Marshal(s.token)
	if err != nil {
		return "", fmt.Errorf("failed to encode token: %w", err)
	}
	return string(data), nil
}

// DecodeToken parses a stored token.
func DecodeToken(raw string) (*oauth2.Token, error) {
	var token oauth2.Token
	if err := json.Unmarshal([]byte(raw), &token); err != nil {
		return nil, fmt.Errorf("failed to decode token: %w", err)
	}
	return &token, nil
}

// RestoreSession rebuilds a session read from storage.
func RestoreSession(id string, user User, token *oauth2.Token, createdAt, updatedAt time.Time) *Session {
	return &Session{id: id, user: user, token: token, createdAt: createdAt, updatedAt: updatedAt}
}
