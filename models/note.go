package models

import (
	"encoding/json"

	"github.com/google/uuid"
)

type Note struct {
	Base
	UserID    uuid.UUID       `gorm:"type:uuid;not null;index" json:"user_id"`
	FolderID  *uuid.UUID      `gorm:"type:uuid;index" json:"folder_id"`
	Title     string          `gorm:"size:255;not null;default:'Untitled'" json:"title"`
	Content   json.RawMessage `gorm:"serializer:json" json:"content"`
	Thumbnail *string         `gorm:"type:text" json:"thumbnail"`
}
