package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Payment is a recorded attempt to settle part of an invoice. It affects the
// invoice balance only once approved.
type Payment struct {
	ID            snowflake.ID    `json:"id" gorm:"primaryKey"`
	InvoiceID     snowflake.ID    `json:"invoice_id" gorm:"not null;index"`
	Amount        decimal.Decimal `json:"amount" gorm:"type:decimal(18,2);not null"`
	PaymentMethod string          `json:"payment_method" gorm:"size:32;not null"`
	PaymentDate   time.Time       `json:"payment_date" gorm:"not null"`
	Status        Status          `json:"status" gorm:"size:16;not null;index"`
	VoucherPath   string          `json:"voucher_path,omitempty" gorm:"size:255"`
	ReviewerID    *snowflake.ID   `json:"reviewer_id,omitempty"`
	ReviewedAt    *time.Time      `json:"reviewed_at,omitempty"`
	ReviewRemark  string          `json:"review_remark,omitempty" gorm:"type:text"`
	Remarks       string          `json:"remarks" gorm:"type:text"`
	CreatedBy     snowflake.ID    `json:"created_by"`
	CreatedAt     time.Time       `json:"created_at" gorm:"not null"`
	UpdatedAt     time.Time       `json:"updated_at" gorm:"not null"`
}

func (Payment) TableName() string { return "payments" }
