package domain

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/visadesk/pkg/db/pagination"
)

type Service interface {
	Create(ctx context.Context, req CreateInvoiceRequest) (*Invoice, error)
	List(ctx context.Context, req ListInvoiceRequest) (pagination.Page[InvoiceRow], error)
	Get(ctx context.Context, id string) (*InvoiceRow, error)
	Update(ctx context.Context, id string, req UpdateInvoiceRequest) (*Invoice, error)
	Delete(ctx context.Context, id string) error
	SetStatus(ctx context.Context, id string, status string) (*Invoice, error)
	RenderPDF(ctx context.Context, id string) (*RenderedInvoice, error)

	ListOrders(ctx context.Context, id string) ([]LinkedOrder, error)
	LinkOrders(ctx context.Context, id string, req LinkOrdersRequest) (*LinkOrdersResponse, error)
	UnlinkOrder(ctx context.Context, id string, orderID string) (*Invoice, error)
}

type CreateInvoiceRequest struct {
	CustomerID  string           `json:"customer_id"`
	AgentID     string           `json:"agent_id"`
	TotalAmount *decimal.Decimal `json:"total_amount"`
	Remarks     string           `json:"remarks"`
}

type ListInvoiceRequest struct {
	pagination.Pagination
	InvoiceNo    string
	Status       string
	CustomerName string
	CustomerID   string
	DateFrom     string
	DateTo       string
}

// UpdateInvoiceRequest changes the header fields. An empty AgentID clears the agent.
type UpdateInvoiceRequest struct {
	CustomerID *string `json:"customer_id"`
	AgentID    *string `json:"agent_id"`
	Remarks    *string `json:"remarks"`
}

// LinkOrdersRequest links orders to an invoice. A nil Amount bills each order at its total.
type LinkOrdersRequest struct {
	OrderIDs []string         `json:"orderIds"`
	Amount   *decimal.Decimal `json:"amount"`
}

type LinkOrdersResponse struct {
	Invoice *Invoice `json:"invoice"`
	Linked  int      `json:"linked"`
	Skipped int      `json:"skipped"`
}

type RenderedInvoice struct {
	Filename string
	Content  []byte
}

var (
	ErrInvalidID           = errors.New("invalid_id")
	ErrInvalidCustomer     = errors.New("invalid_customer_id")
	ErrInvalidAgent        = errors.New("invalid_agent_id")
	ErrInvalidTotal        = errors.New("invalid_total_amount")
	ErrInvalidStatus       = errors.New("invalid_status")
	ErrInvalidOrderIDs     = errors.New("invalid_order_ids")
	ErrInvalidAmount       = errors.New("invalid_amount")
	ErrInvalidDateRange    = errors.New("invalid_date_range")
	ErrInvoiceNotFound     = errors.New("invoice_not_found")
	ErrLinkNotFound        = errors.New("invoice_order_not_found")
	ErrInvoicePaid         = errors.New("invoice_paid")
	ErrOrderInvoiced       = errors.New("order_already_invoiced")
	ErrOrderCancelled      = errors.New("order_cancelled")
	ErrTotalBelowPaid      = errors.New("total_below_paid")
	ErrInvoiceNotDeletable = errors.New("invoice_not_deletable")
)
