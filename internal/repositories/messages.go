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

type MessageRepository struct {
	db database.DBTX
}

func NewMessageRepository(db database.DBTX) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create inserts m and fills in its ID. An unknown participant yields
// common.ErrMissingReference.
func (r *MessageRepository) Create(ctx context.Context, m *models.Message) (*models.Message, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO messages (from_username, to_username, body, sent_at) VALUES (?, ?, ?, ?)`,
		m.FromUsername, m.ToUsername, m.Body, m.SentAt)
	if err != nil {
		if database.IsMissingReference(err) {
			return nil, common.ErrMissingReference
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	m.ID = id
	return m, nil
}

func (r *MessageRepository) Get(ctx context.Context, id int64) (*models.MessageDetail, error) {
	query := `SELECT m.id,
			f.username, f.first_name, f.last_name, f.phone,
			t.username, t.first_name, t.last_name, t.phone,
			m.body, m.sent_at, m.read_at
		FROM messages AS m
		JOIN users AS f ON m.from_username = f.username
		JOIN users AS t ON m.to_username = t.username
		WHERE m.id = ?`

	m := &models.MessageDetail{}
	var readAt sql.NullTime
	err := r.db.QueryRowContext(ctx, query, id).Scan(&m.ID,
		&m.FromUser.Username, &m.FromUser.FirstName, &m.FromUser.LastName, &m.FromUser.Phone,
		&m.ToUser.Username, &m.ToUser.FirstName, &m.ToUser.LastName, &m.ToUser.Phone,
		&m.Body, &m.SentAt, &readAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	m.ReadAt = nullTime(readAt)
	return m, nil
}

func (r *MessageRepository) MarkRead(ctx context.Context, id int64, at time.Time) (*models.ReadReceipt, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE messages SET read_at = ? WHERE id = ?`, at, id)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return nil, common.ErrNotFound
	}
	return &models.ReadReceipt{ID: id, ReadAt: at}, nil
}
