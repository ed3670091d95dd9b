package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base carries the id and timestamps shared by every table.
// The id is generated here instead of gen_random_uuid() so the schema also runs on sqlite.
type Base struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (b *Base) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// All returns every model handled by AutoMigrate.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Profile{},
		&UserRoleRecord{},
		&FlashcardSet{},
		&Flashcard{},
		&Folder{},
		&File{},
		&Note{},
		&Task{},
		&MainGoal{},
		&UserSubscription{},
		&PaymentLog{},
		&AIUsage{},
	}
}
