package services

import (
	"context"
	"errors"
	"time"

	"messagely/internal/common"
	"messagely/internal/models"
)

type MessageStore interface {
	Create(ctx context.Context, m *models.Message) (*models.Message, error)
	Get(ctx context.Context, id int64) (*models.MessageDetail, error)
	MarkRead(ctx context.Context, id int64, at time.Time) (*models.ReadReceipt, error)
}

type NewMessage struct {
	FromUsername string
	ToUsername   string
	Body         string
}

type MessageService struct {
	store MessageStore
	now   func() time.Time
}

func NewMessageService(store MessageStore) *MessageService {
	return &MessageService{store: store, now: utcNow}
}

func (s *MessageService) Create(ctx context.Context, in NewMessage) (*models.Message, error) {
	if in.ToUsername == "" {
		return nil, common.ValidationError("To: username required.")
	}
	if in.Body == "" {
		return nil, common.ValidationError("Message body required.")
	}

	m, err := s.store.Create(ctx, &models.Message{
		FromUsername: in.FromUsername,
		ToUsername:   in.ToUsername,
		Body:         in.Body,
		SentAt:       s.now(),
	})
	if err != nil {
		if errors.Is(err, common.ErrMissingReference) {
			return nil, common.ConflictError("Unable to create message.")
		}
		return nil, err
	}
	return m, nil
}

func (s *MessageService) Get(ctx context.Context, id int64) (*models.MessageDetail, error) {
	m, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, noSuchMessage(err)
	}
	return m, nil
}

// MarkRead stamps read_at with the current time. Whether the caller may do
// so is decided by the handler.
func (s *MessageService) MarkRead(ctx context.Context, id int64) (*models.ReadReceipt, error) {
	r, err := s.store.MarkRead(ctx, id, s.now())
	if err != nil {
		return nil, noSuchMessage(err)
	}
	return r, nil
}

func noSuchMessage(err error) error {
	if errors.Is(err, common.ErrNotFound) {
		return common.NotFoundError("No such message.")
	}
	return err
}
