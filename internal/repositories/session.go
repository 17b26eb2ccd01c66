package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/tidal-mcp/internal/models"
	"github.com/desertthunder/tidal-mcp/internal/shared"
)

const sessionColumns = `id, user_id, username, email, country_code, token, created_at, updated_at`

// SessionRepository implements [models.Repository] for [models.Session] persistence.
type SessionRepository struct {
	db *sql.DB
}

// NewSessionRepository creates a new [SessionRepository] with the given database connection
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create inserts a session with a generated ID
func (r *SessionRepository) Create(session *models.Session) error {
	if err := session.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	token, err := session.EncodeToken()
	if err != nil {
		return err
	}

	session.SetID(shared.GenerateID())
	user := session.User()

	query := `
		INSERT INTO sessions (id, user_id, username, email, country_code, token, expires_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		session.ID(), user.ID, user.Username, user.Email, user.CountryCode,
		token, expiresAt(session), session.CreatedAt().UTC(), session.UpdatedAt().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}

	return nil
}

// Get retrieves a session by ID
func (r *SessionRepository) Get(id string) (*models.Session, error) {
	row := r.db.QueryRow(`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)

	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrSessionNotFound, id)
	}
	return session, err
}

// Latest returns the most recently updated session
func (r *SessionRepository) Latest() (*models.Session, error) {
	row := r.db.QueryRow(`SELECT ` + sessionColumns + ` FROM sessions ORDER BY updated_at DESC LIMIT 1`)

	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrSessionNotFound
	}
	return session, err
}

// Update stores the session's user and token
func (r *SessionRepository) Update(session *models.Session) error {
	if err := session.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	token, err := session.EncodeToken()
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	session.SetUpdatedAt(now)
	user := session.User()

	query := `
		UPDATE sessions
		SET user_id = ?, username = ?, email = ?, country_code = ?, token = ?, expires_at = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.Exec(query, user.ID, user.Username, user.Email, user.CountryCode, token, expiresAt(session), now, session.ID())
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrSessionNotFound, session.ID())
	}

	return nil
}

// Delete removes a session by ID
func (r *SessionRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrSessionNotFound, id)
	}

	return nil
}

// DeleteAll removes every session
func (r *SessionRepository) DeleteAll() error {
	if _, err := r.db.Exec(`DELETE FROM sessions`); err != nil {
		return fmt.Errorf("failed to delete sessions: %w", err)
	}
	return nil
}

// List retrieves sessions, newest first. Supports the "user_id" criterion.
func (r *SessionRepository) List(criteria map[string]any) ([]*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE 1 = 1`
	args := []any{}

	if userID, ok := criteria["user_id"].(string); ok && userID != "" {
		query += " AND user_id = ?"
		args = append(args, userID)
	}

	query += " ORDER BY updated_at DESC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*models.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return sessions, nil
}

func scanSession(row scanner) (*models.Session, error) {
	var (
		id        string
		user      models.User
		raw       string
		createdAt time.Time
		updatedAt time.Time
	)

	err := row.Scan(&id, &user.ID, &user.Username, &user.Email, &user.CountryCode, &raw, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}

	token, err := models.DecodeToken(raw)
	if err != nil {
		return nil, err
	}

	return models.RestoreSession(id, user, token, createdAt, updatedAt), nil
}

func expiresAt(session *models.Session) sql.NullTime {
	token := session.Token()
	if token == nil || token.Expiry.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: token.Expiry.UTC(), Valid: true}
}
