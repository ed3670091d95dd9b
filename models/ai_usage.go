package models

import (
	"time"

	"github.com/google/uuid"
)

type AIFeature string

const (
	FeatureFlashcards AIFeature = "flashcards"
	FeatureQuiz       AIFeature = "quiz"
)

// AIUsage holds the last time a free-tier user ran a gated AI feature.
type AIUsage struct {
	Base
	UserID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_usage_user_feature" json:"user_id"`
	Feature    AIFeature `gorm:"type:varchar(20);not null;uniqueIndex:idx_usage_user_feature" json:"feature"`
	LastUsedAt time.Time `gorm:"not null" json:"last_used_at"`
}
