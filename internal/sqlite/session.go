package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rpggio/timeline/internal/domain/session"
	"github.com/rpggio/timeline/internal/repository"
)

// SessionRepository implements session.SessionRepository for SQLite
type SessionRepository struct {
	db *DB
}

// NewSessionRepository creates a new SessionRepository
func NewSessionRepository(db *DB) *SessionRepository {
	return &SessionRepository{db: db}
}

const sessionColumns = `id, key_hash, preferred_username, access_token, created_at, last_used, revoked_at`

// Create creates a new session
func (r *SessionRepository) Create(ctx context.Context, sess *session.Session) error {
	query := `
		INSERT INTO sessions (` + sessionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		sess.ID,
		sess.KeyHash,
		nullString(sess.PreferredUsername),
		sess.AccessToken,
		sess.CreatedAt,
		sess.LastUsed,
		sess.RevokedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("failed to create session: %w", err)
	}

	return nil
}

// Get retrieves a session by ID
func (r *SessionRepository) Get(ctx context.Context, id string) (*session.Session, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	return scanSession(row)
}

// GetByKeyHash retrieves a session by the hash of its bearer key
func (r *SessionRepository) GetByKeyHash(ctx context.Context, keyHash string) (*session.Session, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE key_hash = ?`, keyHash)
	return scanSession(row)
}

// List returns all sessions, newest first
func (r *SessionRepository) List(ctx context.Context) ([]session.Session, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+sessionColumns+` FROM sessions ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []session.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sessions: %w", err)
	}

	return sessions, nil
}

// Touch records that the session was just used
func (r *SessionRepository) Touch(ctx context.Context, id string, at time.Time) error {
	return r.exec(ctx, `UPDATE sessions SET last_used = ? WHERE id = ?`, at, id)
}

// Revoke marks a session revoked. An already revoked session keeps its
// original revocation time.
func (r *SessionRepository) Revoke(ctx context.Context, id string, at time.Time) error {
	return r.exec(ctx, `UPDATE sessions SET revoked_at = COALESCE(revoked_at, ?) WHERE id = ?`, at, id)
}

func (r *SessionRepository) exec(ctx context.Context, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return repository.ErrNotFound
	}

	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*session.Session, error) {
	var sess session.Session
	var preferredUsername sql.NullString
	var lastUsed, revokedAt sql.NullTime
	err := row.Scan(
		&sess.ID,
		&sess.KeyHash,
		&preferredUsername,
		&sess.AccessToken,
		&sess.CreatedAt,
		&lastUsed,
		&revokedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	sess.PreferredUsername = preferredUsername.String
	if lastUsed.Valid {
		sess.LastUsed = &lastUsed.Time
	}
	if revokedAt.Valid {
		sess.RevokedAt = &revokedAt.Time
	}

	return &sess, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
