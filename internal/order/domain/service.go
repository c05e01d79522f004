package domain

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/visadesk/pkg/db/pagination"
)

type Service interface {
	Create(ctx context.Context, req CreateOrderRequest) (*CreateOrderResponse, error)
	List(ctx context.Context, req ListOrderRequest) (pagination.Page[OrderRow], error)
	Get(ctx context.Context, id string) (*OrderDetail, error)
	Update(ctx context.Context, id string, req UpdateOrderRequest) (*Order, error)
	Cancel(ctx context.Context, id string) (*Order, error)

	ListItems(ctx context.Context, orderID string) ([]OrderItem, error)
	GetItem(ctx context.Context, id string) (*OrderItem, error)
	AddItem(ctx context.Context, req AddItemRequest) (*OrderItem, error)
	UpdateItem(ctx context.Context, id string, req UpdateItemRequest) (*OrderItem, error)
	DeleteItem(ctx context.Context, id string) error
}

// ItemInput references the product, supplier quote and agent price being sold.
// A nil UnitPrice falls back to the agent price's selling price.
type ItemInput struct {
	ProductID           string           `json:"product_id"`
	ProductQuoteID      string           `json:"product_quote_id"`
	AgentProductPriceID string           `json:"agent_product_price_id"`
	Quantity            int              `json:"quantity"`
	UnitPrice           *decimal.Decimal `json:"unit_price"`
	Remarks             string           `json:"remarks"`
}

type CreateOrderRequest struct {
	CustomerID string      `json:"customer_id"`
	AgentID    string      `json:"agent_id"`
	OrderDate  string      `json:"order_date"`
	Remarks    string      `json:"remarks"`
	Items      []ItemInput `json:"items"`
}

type CreateOrderResponse struct {
	ID      string `json:"id"`
	OrderNo string `json:"order_no"`
}

type ListOrderRequest struct {
	pagination.Pagination
	CustomerID    string
	AgentID       string
	OrderStatus   string
	PaymentStatus string
	OrderNo       string
	DateFrom      string
	DateTo        string
}

type OrderDetail struct {
	OrderRow
	Items []OrderItem `json:"items"`
}

type UpdateOrderRequest struct {
	OrderStatus   *string `json:"order_status"`
	PaymentStatus *string `json:"payment_status"`
	Remarks       *string `json:"remarks"`
}

type AddItemRequest struct {
	OrderID string `json:"order_id"`
	ItemInput
}

type UpdateItemRequest struct {
	Quantity  *int             `json:"quantity"`
	UnitPrice *decimal.Decimal `json:"unit_price"`
	Remarks   *string          `json:"remarks"`
}

var (
	ErrInvalidID             = errors.New("invalid_id")
	ErrInvalidOrderID        = errors.New("invalid_order_id")
	ErrInvalidCustomer       = errors.New("invalid_customer_id")
	ErrInvalidAgent          = errors.New("invalid_agent_id")
	ErrInvalidProduct        = errors.New("invalid_product_id")
	ErrInvalidQuote          = errors.New("invalid_product_quote_id")
	ErrInvalidAgentPrice     = errors.New("invalid_agent_product_price_id")
	ErrInvalidItems          = errors.New("invalid_items")
	ErrInvalidQuantity       = errors.New("invalid_quantity")
	ErrInvalidUnitPrice      = errors.New("invalid_unit_price")
	ErrInvalidOrderDate      = errors.New("invalid_order_date")
	ErrInvalidDateRange      = errors.New("invalid_date_range")
	ErrInvalidOrderStatus    = errors.New("invalid_order_status")
	ErrInvalidPaymentStatus  = errors.New("invalid_payment_status")
	ErrItemReferenceMismatch = errors.New("invalid_item_reference")
	ErrOrderNotFound         = errors.New("order_not_found")
	ErrOrderItemNotFound     = errors.New("order_item_not_found")
	ErrOrderNotEditable      = errors.New("order_not_editable")
	ErrOrderAlreadyCancelled = errors.New("order_already_cancelled")
	ErrOrderCompleted        = errors.New("order_completed")
)
