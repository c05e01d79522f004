package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, invoice *Invoice) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Invoice, error)
	// FindByIDForUpdate row-locks the invoice for the rest of the transaction.
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Invoice, error)
	FindRow(ctx context.Context, db *gorm.DB, id snowflake.ID) (*InvoiceRow, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]InvoiceRow, int64, error)
	Update(ctx context.Context, db *gorm.DB, id snowflake.ID, values map[string]any) error
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error

	// FindActiveLinkByOrder returns the active link of an order on any invoice.
	FindActiveLinkByOrder(ctx context.Context, db *gorm.DB, orderID snowflake.ID) (*InvoiceOrder, error)
	// FindLink returns the link between invoice and order regardless of status.
	FindLink(ctx context.Context, db *gorm.DB, invoiceID, orderID snowflake.ID) (*InvoiceOrder, error)
	InsertLink(ctx context.Context, db *gorm.DB, link *InvoiceOrder) error
	UpdateLink(ctx context.Context, db *gorm.DB, id snowflake.ID, values map[string]any) error
	DeleteLinks(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) error
	CountActiveLinks(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) (int64, error)
	ListLinkedOrders(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]LinkedOrder, error)

	CountPayments(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) (int64, error)
	ListPaymentSummaries(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]PaymentSummary, error)
}
