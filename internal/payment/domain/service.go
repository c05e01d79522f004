package domain

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

type Service interface {
	Create(ctx context.Context, req CreatePaymentRequest) (*Payment, error)
	ListByInvoice(ctx context.Context, invoiceID string) ([]Payment, error)
	Get(ctx context.Context, id string) (*Payment, error)
	Update(ctx context.Context, id string, req UpdatePaymentRequest) (*Payment, error)
	Delete(ctx context.Context, id string) error
	Review(ctx context.Context, id string, req ReviewPaymentRequest) (*Payment, error)
}

type CreatePaymentRequest struct {
	InvoiceID     string          `json:"invoice_id" form:"invoice_id"`
	Amount        decimal.Decimal `json:"amount" form:"amount"`
	PaymentMethod string          `json:"payment_method" form:"payment_method"`
	PaymentDate   string          `json:"payment_date" form:"payment_date"`
	Remarks       string          `json:"remarks" form:"remarks"`
	Voucher       *VoucherUpload  `json:"-" form:"-"`
}

type UpdatePaymentRequest struct {
	Amount        *decimal.Decimal `json:"amount"`
	PaymentMethod *string          `json:"payment_method"`
	PaymentDate   *string          `json:"payment_date"`
	Remarks       *string          `json:"remarks"`
	Voucher       *VoucherUpload   `json:"-"`
}

type ReviewPaymentRequest struct {
	Status string `json:"status"`
	Remark string `json:"remark"`
}

var (
	ErrInvalidID             = errors.New("invalid_id")
	ErrInvalidInvoiceID      = errors.New("invalid_invoice_id")
	ErrInvalidAmount         = errors.New("invalid_amount")
	ErrInvalidMethod         = errors.New("invalid_payment_method")
	ErrInvalidPaymentDate    = errors.New("invalid_payment_date")
	ErrInvalidReviewStatus   = errors.New("invalid_review_status")
	ErrInvalidVoucher        = errors.New("invalid_voucher")
	ErrVoucherTooLarge       = errors.New("voucher_too_large")
	ErrAmountExceedsUnpaid   = errors.New("amount_exceeds_unpaid")
	ErrPaymentNotFound       = errors.New("payment_not_found")
	ErrPaymentNotPending     = errors.New("payment_not_pending")
	ErrApprovalExceedsUnpaid = errors.New("approval_exceeds_unpaid")
)
