package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

type PaymentStatus string

const (
	PaymentStatusUnpaid  PaymentStatus = "unpaid"
	PaymentStatusPartial PaymentStatus = "partial"
	PaymentStatusPaid    PaymentStatus = "paid"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusCompleted, OrderStatusCancelled:
		return true
	}
	return false
}

// Editable reports whether items may still be added, changed or removed.
func (s OrderStatus) Editable() bool {
	return s != OrderStatusCompleted && s != OrderStatusCancelled
}

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusUnpaid, PaymentStatusPartial, PaymentStatusPaid:
		return true
	}
	return false
}

// Order is a customer purchase; TotalAmount always equals the sum of its item subtotals.
type Order struct {
	ID            snowflake.ID    `json:"id" gorm:"primaryKey"`
	OrderNo       string          `json:"order_no" gorm:"size:32;not null;uniqueIndex:ux_orders_order_no"`
	CustomerID    snowflake.ID    `json:"customer_id" gorm:"not null;index"`
	AgentID       snowflake.ID    `json:"agent_id" gorm:"not null;index"`
	TotalAmount   decimal.Decimal `json:"total_amount" gorm:"type:decimal(18,2);not null"`
	OrderStatus   OrderStatus     `json:"order_status" gorm:"size:16;not null;index"`
	PaymentStatus PaymentStatus   `json:"payment_status" gorm:"size:16;not null;index"`
	OrderDate     time.Time       `json:"order_date" gorm:"not null;index"`
	Remarks       string          `json:"remarks" gorm:"type:text"`
	CreatedBy     snowflake.ID    `json:"created_by"`
	CreatedAt     time.Time       `json:"created_at" gorm:"not null"`
	UpdatedAt     time.Time       `json:"updated_at" gorm:"not null"`
}

func (Order) TableName() string { return "orders" }

type OrderItem struct {
	ID                  snowflake.ID    `json:"id" gorm:"primaryKey"`
	OrderID             snowflake.ID    `json:"order_id" gorm:"not null;index"`
	ProductID           snowflake.ID    `json:"product_id" gorm:"not null"`
	ProductQuoteID      snowflake.ID    `json:"product_quote_id" gorm:"not null"`
	AgentProductPriceID snowflake.ID    `json:"agent_product_price_id" gorm:"not null"`
	Quantity            int             `json:"quantity" gorm:"not null"`
	UnitPrice           decimal.Decimal `json:"unit_price" gorm:"type:decimal(18,2);not null"`
	Subtotal            decimal.Decimal `json:"subtotal" gorm:"type:decimal(18,2);not null"`
	Remarks             string          `json:"remarks" gorm:"type:text"`
	CreatedAt           time.Time       `json:"created_at" gorm:"not null"`
	UpdatedAt           time.Time       `json:"updated_at" gorm:"not null"`
}

func (OrderItem) TableName() string { return "order_items" }

// Subtotal is quantity × unit price rounded to cents.
func Subtotal(quantity int, unitPrice decimal.Decimal) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity))).Round(2)
}

// OrderRow is an order joined with its customer and agent names.
type OrderRow struct {
	Order        `gorm:"embedded"`
	CustomerName string `json:"customer_name"`
	AgentName    string `json:"agent_name"`
}

type ListFilter struct {
	CustomerID    snowflake.ID
	AgentID       snowflake.ID
	OrderStatus   OrderStatus
	PaymentStatus PaymentStatus
	OrderNo       string
	DateFrom      *time.Time
	DateTo        *time.Time
	Offset        int
	Limit         int
}
