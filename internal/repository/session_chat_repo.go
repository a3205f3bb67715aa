package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/educlass-api/internal/models"
)

// SessionChatRepository keeps the chat log of live sessions.
type SessionChatRepository interface {
	Save(ctx context.Context, message *models.SessionChatMessage) error
	ListBySession(ctx context.Context, sessionID string, limit int) ([]models.SessionChatMessage, error)
}

type sessionChatRepository struct {
	db *gorm.DB
}

// NewSessionChatRepository constructs a chat repository backed by GORM.
func NewSessionChatRepository(db *gorm.DB) SessionChatRepository {
	return &sessionChatRepository{db: db}
}

func (r *sessionChatRepository) Save(ctx context.Context, message *models.SessionChatMessage) error {
	return r.db.WithContext(ctx).Create(message).Error
}

// ListBySession returns the latest messages of a session in chronological order.
func (r *sessionChatRepository) ListBySession(ctx context.Context, sessionID string, limit int) ([]models.SessionChatMessage, error) {
	if limit <= 0 || limit > 200 {
		limit = 100
	}

	var messages []models.SessionChatMessage
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}
