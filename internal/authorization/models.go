package authorization

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Role struct {
	ID          snowflake.ID `json:"id" gorm:"primaryKey"`
	Code        string       `json:"code" gorm:"size:64;not null;uniqueIndex:ux_roles_code"`
	Name        string       `json:"name" gorm:"size:128;not null"`
	Description string       `json:"description" gorm:"type:text"`
	IsSystem    bool         `json:"is_system" gorm:"not null;default:false"`
	CreatedAt   time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt   time.Time    `json:"updated_at" gorm:"not null"`
}

func (Role) TableName() string { return "roles" }

type Permission struct {
	ID        snowflake.ID `json:"id" gorm:"primaryKey"`
	Code      string       `json:"code" gorm:"size:64;not null;uniqueIndex:ux_permissions_code"`
	Object    string       `json:"object" gorm:"size:64;not null;index"`
	Name      string       `json:"name" gorm:"size:128;not null"`
	CreatedAt time.Time    `json:"created_at" gorm:"not null"`
}

func (Permission) TableName() string { return "permissions" }

// PermissionDiff is the outcome of reconciling a role's grants.
type PermissionDiff struct {
	Added   []string `json:"added"`
	Removed []string `json:"removed"`
}
