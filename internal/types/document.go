package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Document content is the editor's rich-text node tree stored as JSONB.
type Document struct {
	gorm.Model
	ID                uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID            uuid.UUID      `gorm:"index;not null" json:"user_id"`
	User              *User          `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"-"`
	CaptureID         *uuid.UUID     `gorm:"index" json:"capture_id"`
	Capture           *Capture       `gorm:"foreignKey:CaptureID;references:ID" json:"capture,omitempty"`
	Title             string         `gorm:"not null;default:'Untitled Document';column:title" json:"title"`
	Content           datatypes.JSON `gorm:"type:jsonb;column:content" json:"content"`
	CustomAgentPrompt string         `gorm:"type:text;column:custom_agent_prompt" json:"custom_agent_prompt"`
	IsFocused         bool           `gorm:"not null;default:false;column:is_focused" json:"is_focused"`
	CreatedAt         time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt         time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (Document) TableName() string {
	return "document"
}
