package models

import (
	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"gorm.io/gorm"
)

type FlashcardSet struct {
	Base
	UserID      uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	Title       string    `gorm:"size:255;not null" json:"title"`
	Description *string   `gorm:"type:text" json:"description"`
	IsPublic    bool      `gorm:"default:false" json:"is_public"`
	PublicID    string    `gorm:"size:32;uniqueIndex" json:"public_id"`
	Tags        []string  `gorm:"serializer:json" json:"tags"`

	Flashcards []Flashcard `gorm:"constraint:OnDelete:CASCADE;" json:"flashcards,omitempty"`
}

// BeforeCreate assigns the share id used by the public link.
func (s *FlashcardSet) BeforeCreate(tx *gorm.DB) error {
	if err := s.Base.BeforeCreate(tx); err != nil {
		return err
	}
	if s.PublicID == "" {
		id, err := gonanoid.New(12)
		if err != nil {
			return err
		}
		s.PublicID = id
	}
	return nil
}

type Flashcard struct {
	Base
	FlashcardSetID uuid.UUID `gorm:"type:uuid;not null;index" json:"flashcard_set_id"`
	Question       string    `gorm:"type:text;not null" json:"question"`
	Answer         string    `gorm:"type:text;not null" json:"answer"`
	QuestionImage  *string   `gorm:"type:text" json:"question_image"`
	AnswerImage    *string   `gorm:"type:text" json:"answer_image"`
	Position       int       `gorm:"default:0" json:"position"`
}
