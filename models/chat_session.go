package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// titleMaxRunes caps the session title derived from the first message.
const titleMaxRunes = 60

type ChatSession struct {
	ID        string `gorm:"primaryKey;size:36"`
	UserID    string `gorm:"size:36;not null;index"`
	Title     string `gorm:"size:200"`
	CreatedAt time.Time
	UpdatedAt time.Time
	Messages  []ChatMessage `gorm:"foreignKey:ChatSessionID;constraint:OnDelete:CASCADE"`
}

func (s *ChatSession) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// TitleFromMessage derives a session title from the first user message.
// Set once at creation and never recomputed.
func TitleFromMessage(message string) string {
	runes := []rune(message)
	if len(runes) <= titleMaxRunes {
		return message
	}
	return string(runes[:titleMaxRunes]) + "..."
}
