package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RoleUser = "user"
	RoleBot  = "bot"
)

var ErrInvalidRole = errors.New("message role must be \"user\" or \"bot\"")

// ChatMessage is immutable once written; ordering within a session is
// by CreatedAt.
type ChatMessage struct {
	ID            string `gorm:"primaryKey;size:36"`
	ChatSessionID string `gorm:"size:36;not null;index"`
	Role          string `gorm:"size:10;not null"`
	Content       string `gorm:"type:text;not null"`
	CreatedAt     time.Time
}

func (m *ChatMessage) BeforeCreate(tx *gorm.DB) error {
	if m.Role != RoleUser && m.Role != RoleBot {
		return ErrInvalidRole
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}
