package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/visadesk/internal/order/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const rowColumns = `orders.*, passports.name AS customer_name, agents.name AS agent_name`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, order *domain.Order) error {
	return db.WithContext(ctx).Create(order).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Order, error) {
	return r.find(db.WithContext(ctx), id)
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Order, error) {
	return r.find(db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *repo) find(stmt *gorm.DB, id snowflake.ID) (*domain.Order, error) {
	var order domain.Order
	err := stmt.Where("id = ?", id).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repo) FindRow(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.OrderRow, error) {
	var row domain.OrderRow
	err := r.joined(db.WithContext(ctx)).
		Select(rowColumns).
		Where("orders.id = ?", id).
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

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]domain.OrderRow, int64, error) {
	stmt := r.joined(db.WithContext(ctx))

	if filter.CustomerID != 0 {
		stmt = stmt.Where("orders.customer_id = ?", filter.CustomerID)
	}
	if filter.AgentID != 0 {
		stmt = stmt.Where("orders.agent_id = ?", filter.AgentID)
	}
	if filter.OrderStatus != "" {
		stmt = stmt.Where("orders.order_status = ?", filter.OrderStatus)
	}
	if filter.PaymentStatus != "" {
		stmt = stmt.Where("orders.payment_status = ?", filter.PaymentStatus)
	}
	if orderNo := strings.TrimSpace(filter.OrderNo); orderNo != "" {
		stmt = stmt.Where("orders.order_no LIKE ?", "%"+orderNo+"%")
	}
	if filter.DateFrom != nil {
		stmt = stmt.Where("orders.order_date >= ?", filter.DateFrom.UTC())
	}
	if filter.DateTo != nil {
		stmt = stmt.Where("orders.order_date < ?", filter.DateTo.UTC())
	}

	var total int64
	if err := stmt.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []domain.OrderRow
	stmt = stmt.Select(rowColumns).Order("orders.created_at desc, orders.id desc").Offset(filter.Offset)
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit)
	}
	if err := stmt.Scan(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (r *repo) joined(db *gorm.DB) *gorm.DB {
	return db.Model(&domain.Order{}).
		Joins("LEFT JOIN passports ON passports.id = orders.customer_id").
		Joins("LEFT JOIN agents ON agents.id = orders.agent_id")
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, id snowflake.ID, values map[string]any) error {
	if len(values) == 0 {
		return nil
	}
	return db.WithContext(ctx).Model(&domain.Order{}).Where("id = ?", id).Updates(values).Error
}

func (r *repo) InsertItems(ctx context.Context, db *gorm.DB, items []domain.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&items).Error
}

func (r *repo) FindItem(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.OrderItem, error) {
	var item domain.OrderItem
	err := db.WithContext(ctx).Where("id = ?", id).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repo) ListItems(ctx context.Context, db *gorm.DB, orderID snowflake.ID) ([]domain.OrderItem, error) {
	items := []domain.OrderItem{}
	err := db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at asc, id asc").
		Find(&items).Error
	return items, err
}

func (r *repo) UpdateItem(ctx context.Context, db *gorm.DB, id snowflake.ID, values map[string]any) error {
	if len(values) == 0 {
		return nil
	}
	return db.WithContext(ctx).Model(&domain.OrderItem{}).Where("id = ?", id).Updates(values).Error
}

func (r *repo) DeleteItem(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Where("id = ?", id).Delete(&domain.OrderItem{}).Error
}

func (r *repo) SumSubtotals(ctx context.Context, db *gorm.DB, orderID snowflake.ID) (decimal.Decimal, error) {
	var sum decimal.NullDecimal
	err := db.WithContext(ctx).
		Model(&domain.OrderItem{}).
		Select("SUM(subtotal)").
		Where("order_id = ?", orderID).
		Row().
		Scan(&sum)
	if err != nil {
		return decimal.Zero, err
	}
	if !sum.Valid {
		return decimal.Zero, nil
	}
	return sum.Decimal.Round(2), nil
}
