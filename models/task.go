package models

import "github.com/google/uuid"

type Task struct {
	Base
	UserID    uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	Text      string    `gorm:"type:text;not null" json:"text"`
	Completed bool      `gorm:"default:false" json:"completed"`
}

// MainGoal is the single free-text goal shown on the tasks page.
type MainGoal struct {
	Base
	UserID   uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"user_id"`
	GoalText *string   `gorm:"type:text" json:"goal_text"`
}
