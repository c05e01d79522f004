package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, order *Order) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Order, error)
	// FindByIDForUpdate row-locks the order for the rest of the transaction.
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Order, error)
	FindRow(ctx context.Context, db *gorm.DB, id snowflake.ID) (*OrderRow, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]OrderRow, int64, error)
	Update(ctx context.Context, db *gorm.DB, id snowflake.ID, values map[string]any) error

	InsertItems(ctx context.Context, db *gorm.DB, items []OrderItem) error
	FindItem(ctx context.Context, db *gorm.DB, id snowflake.ID) (*OrderItem, error)
	ListItems(ctx context.Context, db *gorm.DB, orderID snowflake.ID) ([]OrderItem, error)
	UpdateItem(ctx context.Context, db *gorm.DB, id snowflake.ID, values map[string]any) error
	DeleteItem(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	SumSubtotals(ctx context.Context, db *gorm.DB, orderID snowflake.ID) (decimal.Decimal, error)
}
