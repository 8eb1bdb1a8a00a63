package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Capture is a recorded voice note. Transcription is nil until the external
// transcription pipeline has processed the recording.
type Capture struct {
	gorm.Model
	ID            uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID        uuid.UUID  `gorm:"index;not null" json:"user_id"`
	User          *User      `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"-"`
	Transcription *string    `gorm:"type:text;column:transcription" json:"transcription"`
	NoteType      string     `gorm:"not null;default:'capture';column:note_type" json:"note_type"`
	LogDate       *time.Time `gorm:"column:log_date" json:"log_date"`
	Insights      []*Insight `gorm:"foreignKey:CaptureID;references:ID" json:"insights,omitempty"`
	CreatedAt     time.Time  `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"not null;default:now()" json:"updated_at"`
}

func (Capture) TableName() string {
	return "capture"
}
