package domain

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/visadesk/pkg/db/pagination"
)

type Service interface {
	ListPassports(ctx context.Context, req ListPassportRequest) (pagination.Page[*Passport], error)
	GetPassport(ctx context.Context, id string) (*Passport, error)
	CreatePassport(ctx context.Context, req CreatePassportRequest) (*Passport, error)
	UpdatePassport(ctx context.Context, id string, req UpdatePassportRequest) (*Passport, error)
	DeletePassport(ctx context.Context, id string) error

	ListVisas(ctx context.Context, req ListVisaRequest) (pagination.Page[*Visa], error)
	GetVisa(ctx context.Context, id string) (*Visa, error)
	CreateVisa(ctx context.Context, req CreateVisaRequest) (*Visa, error)
	UpdateVisa(ctx context.Context, id string, req UpdateVisaRequest) (*Visa, error)
	DeleteVisa(ctx context.Context, id string) error

	ListSuppliers(ctx context.Context, req ListPartyRequest) (pagination.Page[*Supplier], error)
	GetSupplier(ctx context.Context, id string) (*Supplier, error)
	CreateSupplier(ctx context.Context, req CreatePartyRequest) (*Supplier, error)
	UpdateSupplier(ctx context.Context, id string, req UpdatePartyRequest) (*Supplier, error)
	DeleteSupplier(ctx context.Context, id string) error

	ListAgents(ctx context.Context, req ListPartyRequest) (pagination.Page[*Agent], error)
	GetAgent(ctx context.Context, id string) (*Agent, error)
	CreateAgent(ctx context.Context, req CreatePartyRequest) (*Agent, error)
	UpdateAgent(ctx context.Context, id string, req UpdatePartyRequest) (*Agent, error)
	DeleteAgent(ctx context.Context, id string) error

	ListProducts(ctx context.Context, req ListProductRequest) (pagination.Page[*Product], error)
	GetProduct(ctx context.Context, id string) (*Product, error)
	CreateProduct(ctx context.Context, req CreateProductRequest) (*Product, error)
	UpdateProduct(ctx context.Context, id string, req UpdateProductRequest) (*Product, error)
	DeleteProduct(ctx context.Context, id string) error

	ListQuotes(ctx context.Context, req ListQuoteRequest) (pagination.Page[*ProductQuote], error)
	GetQuote(ctx context.Context, id string) (*ProductQuote, error)
	CreateQuote(ctx context.Context, req CreateQuoteRequest) (*ProductQuote, error)
	UpdateQuote(ctx context.Context, id string, req UpdateQuoteRequest) (*ProductQuote, error)
	DeleteQuote(ctx context.Context, id string) error

	ListAgentPrices(ctx context.Context, req ListAgentPriceRequest) (pagination.Page[*AgentProductPrice], error)
	GetAgentPrice(ctx context.Context, id string) (*AgentProductPrice, error)
	CreateAgentPrice(ctx context.Context, req CreateAgentPriceRequest) (*AgentProductPrice, error)
	UpdateAgentPrice(ctx context.Context, id string, req UpdateAgentPriceRequest) (*AgentProductPrice, error)
	DeleteAgentPrice(ctx context.Context, id string) error
}

type ListPassportRequest struct {
	pagination.Pagination
	Keyword string
	Gender  string
}

// Dates are YYYY-MM-DD.
type CreatePassportRequest struct {
	Name        string `json:"name"`
	PassportNo  string `json:"passport_no"`
	Nationality string `json:"nationality"`
	BirthDate   string `json:"birth_date"`
	Gender      string `json:"gender"`
	IssueDate   string `json:"issue_date"`
	ExpiryDate  string `json:"expiry_date"`
	Remarks     string `json:"remarks"`
}

type UpdatePassportRequest struct {
	Name        *string `json:"name"`
	PassportNo  *string `json:"passport_no"`
	Nationality *string `json:"nationality"`
	BirthDate   *string `json:"birth_date"`
	Gender      *string `json:"gender"`
	IssueDate   *string `json:"issue_date"`
	ExpiryDate  *string `json:"expiry_date"`
	Remarks     *string `json:"remarks"`
}

type ListVisaRequest struct {
	pagination.Pagination
	PassportID string
	Status     string
	VisaType   string
}

type CreateVisaRequest struct {
	PassportID   string `json:"passport_id"`
	VisaType     string `json:"visa_type"`
	IssueCountry string `json:"issue_country"`
	IssueDate    string `json:"issue_date"`
	ExpiryDate   string `json:"expiry_date"`
	EntryCount   string `json:"entry_count"`
	Remarks      string `json:"remarks"`
}

type UpdateVisaRequest struct {
	VisaType     *string `json:"visa_type"`
	IssueCountry *string `json:"issue_country"`
	IssueDate    *string `json:"issue_date"`
	ExpiryDate   *string `json:"expiry_date"`
	EntryCount   *string `json:"entry_count"`
	Remarks      *string `json:"remarks"`
}

// ListPartyRequest filters suppliers and agents.
type ListPartyRequest struct {
	pagination.Pagination
	Keyword string
	Status  string
}

type CreatePartyRequest struct {
	Name          string `json:"name"`
	ContactPerson string `json:"contact_person"`
	ContactPhone  string `json:"contact_phone"`
	Address       string `json:"address"`
	Status        string `json:"status"`
	Remarks       string `json:"remarks"`
}

type UpdatePartyRequest struct {
	Name          *string `json:"name"`
	ContactPerson *string `json:"contact_person"`
	ContactPhone  *string `json:"contact_phone"`
	Address       *string `json:"address"`
	Status        *string `json:"status"`
	Remarks       *string `json:"remarks"`
}

type ListProductRequest struct {
	pagination.Pagination
	Keyword string
	Type    string
	Status  string
}

type CreateProductRequest struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Details     string `json:"details"`
	Status      string `json:"status"`
	Remarks     string `json:"remarks"`
}

type UpdateProductRequest struct {
	Name        *string `json:"name"`
	Type        *string `json:"type"`
	Description *string `json:"description"`
	Details     *string `json:"details"`
	Status      *string `json:"status"`
	Remarks     *string `json:"remarks"`
}

type ListQuoteRequest struct {
	pagination.Pagination
	ProductID  string
	SupplierID string
}

type CreateQuoteRequest struct {
	ProductID  string          `json:"product_id"`
	SupplierID string          `json:"supplier_id"`
	CostPrice  decimal.Decimal `json:"cost_price"`
	Remarks    string          `json:"remarks"`
}

type UpdateQuoteRequest struct {
	CostPrice *decimal.Decimal `json:"cost_price"`
	Remarks   *string          `json:"remarks"`
}

type ListAgentPriceRequest struct {
	pagination.Pagination
	ProductQuoteID string
	AgentID        string
}

type CreateAgentPriceRequest struct {
	ProductQuoteID string          `json:"product_quote_id"`
	AgentID        string          `json:"agent_id"`
	CostPrice      decimal.Decimal `json:"cost_price"`
	SellingPrice   decimal.Decimal `json:"selling_price"`
	Remarks        string          `json:"remarks"`
}

type UpdateAgentPriceRequest struct {
	CostPrice    *decimal.Decimal `json:"cost_price"`
	SellingPrice *decimal.Decimal `json:"selling_price"`
	Remarks      *string          `json:"remarks"`
}

var (
	ErrInvalidID          = errors.New("invalid_id")
	ErrInvalidName        = errors.New("invalid_name")
	ErrInvalidPassportNo  = errors.New("invalid_passport_no")
	ErrInvalidGender      = errors.New("invalid_gender")
	ErrInvalidDate        = errors.New("invalid_date")
	ErrInvalidDateRange   = errors.New("invalid_date_range")
	ErrInvalidStatus      = errors.New("invalid_status")
	ErrInvalidType        = errors.New("invalid_type")
	ErrInvalidVisaType    = errors.New("invalid_visa_type")
	ErrInvalidEntryCount  = errors.New("invalid_entry_count")
	ErrInvalidPrice       = errors.New("invalid_price")
	ErrInvalidPassportID  = errors.New("invalid_passport_id")
	ErrInvalidProductID   = errors.New("invalid_product_id")
	ErrInvalidSupplierID  = errors.New("invalid_supplier_id")
	ErrInvalidQuoteID     = errors.New("invalid_product_quote_id")
	ErrInvalidAgentID     = errors.New("invalid_agent_id")
	ErrPassportNotFound   = errors.New("passport_not_found")
	ErrVisaNotFound       = errors.New("visa_not_found")
	ErrSupplierNotFound   = errors.New("supplier_not_found")
	ErrAgentNotFound      = errors.New("agent_not_found")
	ErrProductNotFound    = errors.New("product_not_found")
	ErrQuoteNotFound      = errors.New("product_quote_not_found")
	ErrAgentPriceNotFound = errors.New("agent_product_price_not_found")
	ErrPassportNoTaken    = errors.New("passport_no_taken")
	ErrQuoteExists        = errors.New("product_quote_exists")
	ErrAgentPriceExists   = errors.New("agent_product_price_exists")
	ErrPassportHasVisas   = errors.New("passport_has_visas")
	ErrProductHasQuotes   = errors.New("product_has_quotes")
	ErrSupplierHasQuotes  = errors.New("supplier_has_quotes")
	ErrAgentHasPrices     = errors.New("agent_has_prices")
	ErrQuoteHasPrices     = errors.New("product_quote_has_prices")
)
