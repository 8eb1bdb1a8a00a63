package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Insight types form a small fixed vocabulary.
const (
	InsightTypeInsight  = "insight"
	InsightTypeDecision = "decision"
	InsightTypeQuestion = "question"
	InsightTypeConcept  = "concept"
)

type Insight struct {
	gorm.Model
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	CaptureID uuid.UUID `gorm:"index;not null" json:"capture_id"`
	Capture   *Capture  `gorm:"constraint:OnDelete:CASCADE;foreignKey:CaptureID;references:ID" json:"-"`
	Type      string    `gorm:"not null;column:type" json:"type"`
	Content   string    `gorm:"type:text;not null;column:content" json:"content"`
	Position  int       `gorm:"not null;default:0;column:position" json:"position"`
	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Insight) TableName() string {
	return "insight"
}
