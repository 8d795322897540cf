package auth

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Employee is the account record behind a register login.
type Employee struct {
	ID           string
	Username     string
	FullName     string
	Role         string
	PasswordHash string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Session is a persisted refresh-token session. The token column stores a
// SHA-256 hex digest, never the raw token.
type Session struct {
	ID         string
	EmployeeID string
	TokenHash  string
	UserAgent  string
	IP         string
	ExpiresAt  time.Time
}

// Store persists employees and refresh sessions.
type Store interface {
	GetEmployeeByUsername(ctx context.Context, username string) (Employee, error)
	GetEmployeeByID(ctx context.Context, id string) (Employee, error)
	CreateSession(ctx context.Context, s Session) (string, error)
	GetSessionByTokenHash(ctx context.Context, tokenHash string) (Session, error)
	RotateSessionToken(ctx context.Context, sessionID, tokenHash string, expiresAt time.Time) error
	DeleteSessionByTokenHash(ctx context.Context, tokenHash string) error
	DeleteSessionsByEmployee(ctx context.Context, employeeID string) error
}

// PGStore implements Store on a pgx connection pool.
type PGStore struct {
	Pool *pgxpool.Pool
}

// NewPGStore wraps a pool in a Store.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{Pool: pool}
}

const employeeColumns = `id, username, full_name, role, password_hash, active, created_at, updated_at`

func scanEmployee(row pgx.Row) (Employee, error) {
	var e Employee
	err := row.Scan(&e.ID, &e.Username, &e.FullName, &e.Role, &e.PasswordHash, &e.Active, &e.CreatedAt, &e.UpdatedAt)
	return e, err
}

func (s *PGStore) GetEmployeeByUsername(ctx context.Context, username string) (Employee, error) {
	row := s.Pool.QueryRow(ctx,
		`SELECT `+employeeColumns+` FROM employees WHERE username = $1`, username)
	return scanEmployee(row)
}

func (s *PGStore) GetEmployeeByID(ctx context.Context, id string) (Employee, error) {
	row := s.Pool.QueryRow(ctx,
		`SELECT `+employeeColumns+` FROM employees WHERE id = $1`, id)
	return scanEmployee(row)
}

func (s *PGStore) CreateSession(ctx context.Context, sess Session) (string, error) {
	var id string
	err := s.Pool.QueryRow(ctx,
		`INSERT INTO sessions (employee_id, token_hash, user_agent, ip, expires_at)
		 VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5)
		 RETURNING id`,
		sess.EmployeeID, sess.TokenHash, sess.UserAgent, sess.IP, sess.ExpiresAt).Scan(&id)
	return id, err
}

func (s *PGStore) GetSessionByTokenHash(ctx context.Context, tokenHash string) (Session, error) {
	var sess Session
	var userAgent, ip *string
	err := s.Pool.QueryRow(ctx,
		`SELECT id, employee_id, token_hash, user_agent, ip, expires_at
		 FROM sessions WHERE token_hash = $1`, tokenHash).
		Scan(&sess.ID, &sess.EmployeeID, &sess.TokenHash, &userAgent, &ip, &sess.ExpiresAt)
	if err != nil {
		return Session{}, err
	}
	if userAgent != nil {
		sess.UserAgent = *userAgent
	}
	if ip != nil {
		sess.IP = *ip
	}
	return sess, nil
}

func (s *PGStore) RotateSessionToken(ctx context.Context, sessionID, tokenHash string, expiresAt time.Time) error {
	_, err := s.Pool.Exec(ctx,
		`UPDATE sessions SET token_hash = $2, expires_at = $3 WHERE id = $1`,
		sessionID, tokenHash, expiresAt)
	return err
}

func (s *PGStore) DeleteSessionByTokenHash(ctx context.Context, tokenHash string) error {
	_, err := s.Pool.Exec(ctx, `DELETE FROM sessions WHERE token_hash = $1`, tokenHash)
	return err
}

func (s *PGStore) DeleteSessionsByEmployee(ctx context.Context, employeeID string) error {
	_, err := s.Pool.Exec(ctx, `DELETE FROM sessions WHERE employee_id = $1`, employeeID)
	return err
}
