package models

import "github.com/google/uuid"

type Folder struct {
	Base
	UserID uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	Name   string    `gorm:"size:255;not null" json:"name"`
	Color  string    `gorm:"size:20;not null;default:'#3b82f6'" json:"color"`
}

// File is an object uploaded to the user_files bucket.
type File struct {
	Base
	UserID      uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	FolderID    *uuid.UUID `gorm:"type:uuid;index" json:"folder_id"`
	Name        string     `gorm:"size:255;not null" json:"name"`
	FileSize    int64      `gorm:"not null" json:"file_size"`
	FileType    string     `gorm:"size:255;not null" json:"file_type"`
	StoragePath string     `gorm:"type:text;not null" json:"storage_path"`
}
