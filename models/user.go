package models

import (
	"github.com/google/uuid"
)

type UserRole string

const (
	RoleAdmin     UserRole = "admin"
	RoleModerator UserRole = "moderator"
	RoleUser      UserRole = "user"
)

// User mirrors the account owned by the hosted auth service. Only the id and
// email are kept; the row is synced from the access token on each request.
type User struct {
	Base
	Email string `gorm:"size:255;index" json:"email"`
}

type Profile struct {
	Base
	UserID      uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"user_id"`
	DisplayName *string   `gorm:"size:150" json:"display_name"`
	Email       *string   `gorm:"size:255;index" json:"email"`
}

// UserRoleRecord is a row of user_roles.
type UserRoleRecord struct {
	Base
	UserID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_user_role" json:"user_id"`
	Role   UserRole  `gorm:"type:varchar(20);not null;uniqueIndex:idx_user_role" json:"role"`
}

func (UserRoleRecord) TableName() string { return "user_roles" }
