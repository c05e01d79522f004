package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, user *User) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*User, error)
	FindByUsername(ctx context.Context, db *gorm.DB, username string) (*User, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]User, int64, error)
	Update(ctx context.Context, db *gorm.DB, id snowflake.ID, values map[string]any) error
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error
}
