package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	MessageRoleUser      = "user"
	MessageRoleAssistant = "assistant"
)

// Message rows are insert-only; within a conversation they are totally
// ordered by (created_at, id).
type Message struct {
	gorm.Model
	ID             uuid.UUID     `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ConversationID uuid.UUID     `gorm:"index;not null" json:"conversation_id"`
	Conversation   *Conversation `gorm:"constraint:OnDelete:CASCADE;foreignKey:ConversationID;references:ID" json:"-"`
	Role           string        `gorm:"not null;column:role" json:"role"`
	Content        string        `gorm:"type:text;not null;column:content" json:"content"`
	CreatedAt      time.Time     `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt      time.Time     `gorm:"not null;default:now()" json:"updated_at"`
}

func (Message) TableName() string {
	return "message"
}
