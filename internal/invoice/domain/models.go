package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusUnpaid        Status = "unpaid"
	StatusPartiallyPaid Status = "partially_paid"
	StatusPaid          Status = "paid"
)

// legacyPartialPaid is still sent by older clients.
const legacyPartialPaid = "partial_paid"

func (s Status) Valid() bool {
	switch s {
	case StatusUnpaid, StatusPartiallyPaid, StatusPaid:
		return true
	}
	return false
}

// ParseStatus normalizes client input, mapping partial_paid to partially_paid.
func ParseStatus(raw string) (Status, bool) {
	value := strings.ToLower(strings.TrimSpace(raw))
	if value == legacyPartialPaid {
		return StatusPartiallyPaid, true
	}
	status := Status(value)
	return status, status.Valid()
}

// DeriveStatus computes the settlement status from the balance.
func DeriveStatus(total, paid decimal.Decimal) Status {
	switch {
	case total.IsPositive() && paid.GreaterThanOrEqual(total):
		return StatusPaid
	case paid.IsPositive():
		return StatusPartiallyPaid
	default:
		return StatusUnpaid
	}
}

type LinkStatus string

const (
	LinkStatusActive   LinkStatus = "active"
	LinkStatusInactive LinkStatus = "inactive"
)

// Invoice bills one customer for a set of linked orders.
// UnpaidAmount is always TotalAmount minus PaidAmount.
type Invoice struct {
	ID           snowflake.ID    `json:"id" gorm:"primaryKey"`
	InvoiceNo    string          `json:"invoice_no" gorm:"size:32;not null;uniqueIndex:ux_invoices_invoice_no"`
	CustomerID   snowflake.ID    `json:"customer_id" gorm:"not null;index"`
	AgentID      *snowflake.ID   `json:"agent_id,omitempty" gorm:"index"`
	TotalAmount  decimal.Decimal `json:"total_amount" gorm:"type:decimal(18,2);not null"`
	PaidAmount   decimal.Decimal `json:"paid_amount" gorm:"type:decimal(18,2);not null"`
	UnpaidAmount decimal.Decimal `json:"unpaid_amount" gorm:"type:decimal(18,2);not null"`
	Status       Status          `json:"status" gorm:"size:16;not null;index"`
	Remarks      string          `json:"remarks" gorm:"type:text"`
	CreatedBy    snowflake.ID    `json:"created_by"`
	CreatedAt    time.Time       `json:"created_at" gorm:"not null;index"`
	UpdatedAt    time.Time       `json:"updated_at" gorm:"not null"`
}

func (Invoice) TableName() string { return "invoices" }

// InvoiceOrder links an order to an invoice. An order has at most one active link.
type InvoiceOrder struct {
	ID        snowflake.ID    `json:"id" gorm:"primaryKey"`
	InvoiceID snowflake.ID    `json:"invoice_id" gorm:"not null;uniqueIndex:ux_invoice_orders_invoice_order,priority:1"`
	OrderID   snowflake.ID    `json:"order_id" gorm:"not null;uniqueIndex:ux_invoice_orders_invoice_order,priority:2;index:ux_invoice_orders_active_order,unique,where:status = 'active'"`
	Amount    decimal.Decimal `json:"amount" gorm:"type:decimal(18,2);not null"`
	Status    LinkStatus      `json:"status" gorm:"size:16;not null"`
	CreatedAt time.Time       `json:"created_at" gorm:"not null"`
	UpdatedAt time.Time       `json:"updated_at" gorm:"not null"`
}

func (InvoiceOrder) TableName() string { return "invoice_orders" }

// InvoiceRow is an invoice joined with its customer and agent.
type InvoiceRow struct {
	Invoice      `gorm:"embedded"`
	CustomerName string `json:"customer_name"`
	PassportNo   string `json:"passport_no"`
	AgentName    string `json:"agent_name"`
}

// LinkedOrder is an active link together with the order it points at.
type LinkedOrder struct {
	LinkID      snowflake.ID    `json:"link_id"`
	OrderID     snowflake.ID    `json:"order_id"`
	OrderNo     string          `json:"order_no"`
	OrderDate   time.Time       `json:"order_date"`
	OrderStatus string          `json:"order_status"`
	OrderTotal  decimal.Decimal `json:"order_total"`
	Amount      decimal.Decimal `json:"amount"`
	LinkedAt    time.Time       `json:"linked_at"`
}

// PaymentSummary is the slice of a payment printed on the invoice document.
type PaymentSummary struct {
	PaymentDate   time.Time       `json:"payment_date"`
	PaymentMethod string          `json:"payment_method"`
	Status        string          `json:"status"`
	Amount        decimal.Decimal `json:"amount"`
}

type ListFilter struct {
	InvoiceNo    string
	Status       Status
	CustomerName string
	CustomerID   snowflake.ID
	DateFrom     *time.Time
	DateTo       *time.Time
	Offset       int
	Limit        int
}
