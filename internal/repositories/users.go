// Package repositories is the MySQL-backed credential and message store.
// Every method issues a single parameterized statement.
package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"messagely/internal/common"
	"messagely/internal/database"
	"messagely/internal/models"
)

type UserRepository struct {
	db database.DBTX
}

func NewUserRepository(db database.DBTX) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts u. A taken username yields common.ErrDuplicate.
func (r *UserRepository) Create(ctx context.Context, u *models.User) (*models.User, error) {
	query := `INSERT INTO users (username, password, first_name, last_name, phone, join_at, last_login_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		u.Username, u.Password, u.FirstName, u.LastName, u.Phone, u.JoinAt, u.LastLoginAt)
	if err != nil {
		if database.IsDuplicateEntry(err) {
			return nil, common.ErrDuplicate
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return u, nil
}

// PasswordHash returns the stored bcrypt hash for username.
func (r *UserRepository) PasswordHash(ctx context.Context, username string) (string, error) {
	var hash string
	err := r.db.QueryRowContext(ctx, `SELECT password FROM users WHERE username = ?`, username).Scan(&hash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", common.ErrNotFound
		}
		return "", fmt.Errorf("db error: %w", err)
	}
	return hash, nil
}

func (r *UserRepository) UpdateLastLogin(ctx context.Context, username string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET last_login_at = ? WHERE username = ?`, at, username)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *UserRepository) List(ctx context.Context) ([]models.UserSummary, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT username, first_name, last_name, phone FROM users`)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	users := []models.UserSummary{}
	for rows.Next() {
		var u models.UserSummary
		if err := rows.Scan(&u.Username, &u.FirstName, &u.LastName, &u.Phone); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return users, nil
}

func (r *UserRepository) Get(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT username, first_name, last_name, phone, join_at, last_login_at
		FROM users WHERE username = ?`

	u := &models.User{}
	var lastLogin sql.NullTime
	err := r.db.QueryRowContext(ctx, query, username).
		Scan(&u.Username, &u.FirstName, &u.LastName, &u.Phone, &u.JoinAt, &lastLogin)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	u.LastLoginAt = nullTime(lastLogin)
	return u, nil
}

// MessagesFrom lists messages sent by username along with each recipient.
func (r *UserRepository) MessagesFrom(ctx context.Context, username string) ([]models.SentMessage, error) {
	query := `SELECT m.id, t.username, t.first_name, t.last_name, t.phone, m.body, m.sent_at, m.read_at
		FROM messages AS m
		JOIN users AS f ON m.from_username = f.username
		JOIN users AS t ON m.to_username = t.username
		WHERE f.username = ?`

	rows, err := r.db.QueryContext(ctx, query, username)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	messages := []models.SentMessage{}
	for rows.Next() {
		var m models.SentMessage
		var readAt sql.NullTime
		err := rows.Scan(&m.ID, &m.ToUser.Username, &m.ToUser.FirstName, &m.ToUser.LastName,
			&m.ToUser.Phone, &m.Body, &m.SentAt, &readAt)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		m.ReadAt = nullTime(readAt)
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return messages, nil
}

// MessagesTo lists messages received by username along with each sender.
func (r *UserRepository) MessagesTo(ctx context.Context, username string) ([]models.ReceivedMessage, error) {
	query := `SELECT m.id, f.username, f.first_name, f.last_name, f.phone, m.body, m.sent_at, m.read_at
		FROM messages AS m
		JOIN users AS f ON m.from_username = f.username
		JOIN users AS t ON m.to_username = t.username
		WHERE t.username = ?`

	rows, err := r.db.QueryContext(ctx, query, username)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	messages := []models.ReceivedMessage{}
	for rows.Next() {
		var m models.ReceivedMessage
		var readAt sql.NullTime
		err := rows.Scan(&m.ID, &m.FromUser.Username, &m.FromUser.FirstName, &m.FromUser.LastName,
			&m.FromUser.Phone, &m.Body, &m.SentAt, &readAt)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		m.ReadAt = nullTime(readAt)
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return messages, nil
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
