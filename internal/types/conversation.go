package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Conversation is created lazily on the first chat message for a document.
// The unique index on document_id enforces at most one conversation per
// document; concurrent creators detect the violation and re-fetch.
type Conversation struct {
	gorm.Model
	ID         uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	DocumentID uuid.UUID `gorm:"uniqueIndex;not null" json:"document_id"`
	Document   *Document `gorm:"constraint:OnDelete:CASCADE;foreignKey:DocumentID;references:ID" json:"-"`
	UserID     uuid.UUID `gorm:"index;not null" json:"user_id"`
	User       *User     `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"-"`
	CreatedAt  time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt  time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Conversation) TableName() string {
	return "conversation"
}
