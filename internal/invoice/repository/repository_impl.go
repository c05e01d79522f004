package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/visadesk/internal/invoice/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const rowColumns = `invoices.*, passports.name AS customer_name, passports.passport_no AS passport_no, agents.name AS agent_name`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, invoice *domain.Invoice) error {
	return db.WithContext(ctx).Create(invoice).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Invoice, error) {
	return r.find(db.WithContext(ctx), id)
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Invoice, error) {
	return r.find(db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *repo) find(stmt *gorm.DB, id snowflake.ID) (*domain.Invoice, error) {
	var invoice domain.Invoice
	err := stmt.Where("id = ?", id).First(&invoice).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *repo) FindRow(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.InvoiceRow, error) {
	var row domain.InvoiceRow
	err := r.joined(db.WithContext(ctx)).
		Select(rowColumns).
		Where("invoices.id = ?", id).
		Limit(1).
		Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == 0 {
		return nil, nil
	}
	return &row, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]domain.InvoiceRow, int64, error) {
	stmt := r.joined(db.WithContext(ctx))

	if invoiceNo := strings.TrimSpace(filter.InvoiceNo); invoiceNo != "" {
		stmt = stmt.Where("invoices.invoice_no LIKE ?", "%"+invoiceNo+"%")
	}
	if filter.Status != "" {
		stmt = stmt.Where("invoices.status = ?", filter.Status)
	}
	if name := strings.TrimSpace(filter.CustomerName); name != "" {
		stmt = stmt.Where("passports.name LIKE ?", "%"+name+"%")
	}
	if filter.CustomerID != 0 {
		stmt = stmt.Where("invoices.customer_id = ?", filter.CustomerID)
	}
	if filter.DateFrom != nil {
		stmt = stmt.Where("invoices.created_at >= ?", filter.DateFrom.UTC())
	}
	if filter.DateTo != nil {
		stmt = stmt.Where("invoices.created_at < ?", filter.DateTo.UTC())
	}

	var total int64
	if err := stmt.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []domain.InvoiceRow
	stmt = stmt.Select(rowColumns).Order("invoices.created_at desc, invoices.id desc").Offset(filter.Offset)
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit)
	}
	if err := stmt.Scan(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (r *repo) joined(db *gorm.DB) *gorm.DB {
	return db.Model(&domain.Invoice{}).
		Joins("LEFT JOIN passports ON passports.id = invoices.customer_id").
		Joins("LEFT JOIN agents ON agents.id = invoices.agent_id")
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, id snowflake.ID, values map[string]any) error {
	if len(values) == 0 {
		return nil
	}
	return db.WithContext(ctx).Model(&domain.Invoice{}).Where("id = ?", id).Updates(values).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Invoice{}).Error
}

func (r *repo) FindActiveLinkByOrder(ctx context.Context, db *gorm.DB, orderID snowflake.ID) (*domain.InvoiceOrder, error) {
	return r.findLink(db.WithContext(ctx).
		Where("order_id = ? AND status = ?", orderID, domain.LinkStatusActive))
}

func (r *repo) FindLink(ctx context.Context, db *gorm.DB, invoiceID, orderID snowflake.ID) (*domain.InvoiceOrder, error) {
	return r.findLink(db.WithContext(ctx).
		Where("invoice_id = ? AND order_id = ?", invoiceID, orderID))
}

func (r *repo) findLink(stmt *gorm.DB) (*domain.InvoiceOrder, error) {
	var link domain.InvoiceOrder
	err := stmt.Order("updated_at desc").First(&link).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &link, nil
}

func (r *repo) InsertLink(ctx context.Context, db *gorm.DB, link *domain.InvoiceOrder) error {
	return db.WithContext(ctx).Create(link).Error
}

func (r *repo) UpdateLink(ctx context.Context, db *gorm.DB, id snowflake.ID, values map[string]any) error {
	if len(values) == 0 {
		return nil
	}
	return db.WithContext(ctx).Model(&domain.InvoiceOrder{}).Where("id = ?", id).Updates(values).Error
}

func (r *repo) DeleteLinks(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) error {
	return db.WithContext(ctx).Where("invoice_id = ?", invoiceID).Delete(&domain.InvoiceOrder{}).Error
}

func (r *repo) CountActiveLinks(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&domain.InvoiceOrder{}).
		Where("invoice_id = ? AND status = ?", invoiceID, domain.LinkStatusActive).
		Count(&count).Error
	return count, err
}

func (r *repo) ListLinkedOrders(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]domain.LinkedOrder, error) {
	rows := []domain.LinkedOrder{}
	err := db.WithContext(ctx).
		Table("invoice_orders").
		Select(`invoice_orders.id AS link_id, invoice_orders.order_id AS order_id,
			orders.order_no AS order_no, orders.order_date AS order_date,
			orders.order_status AS order_status, orders.total_amount AS order_total,
			invoice_orders.amount AS amount, invoice_orders.updated_at AS linked_at`).
		Joins("JOIN orders ON orders.id = invoice_orders.order_id").
		Where("invoice_orders.invoice_id = ? AND invoice_orders.status = ?", invoiceID, domain.LinkStatusActive).
		Order("orders.order_date asc, orders.id asc").
		Scan(&rows).Error
	return rows, err
}

func (r *repo) CountPayments(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).
		Table("payments").
		Where("invoice_id = ?", invoiceID).
		Count(&count).Error
	return count, err
}

func (r *repo) ListPaymentSummaries(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]domain.PaymentSummary, error) {
	rows := []domain.PaymentSummary{}
	err := db.WithContext(ctx).
		Table("payments").
		Select("payment_date, payment_method, status, amount").
		Where("invoice_id = ?", invoiceID).
		Order("payment_date asc, id asc").
		Scan(&rows).Error
	return rows, err
}
