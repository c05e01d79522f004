package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type UserStatus string

const (
	UserStatusEnabled  UserStatus = "enabled"
	UserStatusDisabled UserStatus = "disabled"
)

func (s UserStatus) Valid() bool {
	return s == UserStatusEnabled || s == UserStatusDisabled
}

// User is a back-office operator account.
type User struct {
	ID           snowflake.ID `json:"id" gorm:"primaryKey"`
	Username     string       `json:"username" gorm:"size:64;not null;uniqueIndex:ux_users_username"`
	PasswordHash string       `json:"-" gorm:"type:text;not null"`
	Name         string       `json:"name" gorm:"size:128;not null"`
	RoleCode     string       `json:"role" gorm:"column:role_code;size:64;not null;index"`
	Status       UserStatus   `json:"status" gorm:"size:16;not null"`
	LastLoginAt  *time.Time   `json:"last_login_at,omitempty"`
	CreatedAt    time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt    time.Time    `json:"updated_at" gorm:"not null"`
}

func (User) TableName() string { return "users" }

type ListFilter struct {
	Search   string
	RoleCode string
	Status   UserStatus
	Offset   int
	Limit    int
}
