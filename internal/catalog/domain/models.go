package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Passport is the customer record; orders and invoices reference it as customer_id.
type Passport struct {
	ID          snowflake.ID    `json:"id" gorm:"primaryKey"`
	Name        string          `json:"name" gorm:"size:128;not null;index"`
	PassportNo  string          `json:"passport_no" gorm:"size:32;not null;uniqueIndex:ux_passports_passport_no"`
	Nationality string          `json:"nationality" gorm:"size:64"`
	BirthDate   *datatypes.Date `json:"birth_date,omitempty"`
	Gender      string          `json:"gender" gorm:"size:16"`
	IssueDate   *datatypes.Date `json:"issue_date,omitempty"`
	ExpiryDate  *datatypes.Date `json:"expiry_date,omitempty"`
	Remarks     string          `json:"remarks" gorm:"type:text"`
	CreatedAt   time.Time       `json:"created_at" gorm:"not null"`
	UpdatedAt   time.Time       `json:"updated_at" gorm:"not null"`
}

func (Passport) TableName() string { return "passports" }

type Visa struct {
	ID           snowflake.ID    `json:"id" gorm:"primaryKey"`
	PassportID   snowflake.ID    `json:"passport_id" gorm:"not null;index"`
	VisaType     string          `json:"visa_type" gorm:"size:64;not null"`
	IssueCountry string          `json:"issue_country" gorm:"size:64"`
	IssueDate    *datatypes.Date `json:"issue_date,omitempty"`
	ExpiryDate   datatypes.Date  `json:"expiry_date" gorm:"not null"`
	EntryCount   string          `json:"entry_count" gorm:"size:16;not null"`
	Status       string          `json:"status" gorm:"size:16;not null;index"`
	Remarks      string          `json:"remarks" gorm:"type:text"`
	CreatedAt    time.Time       `json:"created_at" gorm:"not null"`
	UpdatedAt    time.Time       `json:"updated_at" gorm:"not null"`
}

func (Visa) TableName() string { return "visas" }

type Supplier struct {
	ID            snowflake.ID `json:"id" gorm:"primaryKey"`
	Name          string       `json:"name" gorm:"size:128;not null;index"`
	ContactPerson string       `json:"contact_person" gorm:"size:64"`
	ContactPhone  string       `json:"contact_phone" gorm:"size:32"`
	Address       string       `json:"address" gorm:"size:255"`
	Status        string       `json:"status" gorm:"size:16;not null"`
	Remarks       string       `json:"remarks" gorm:"type:text"`
	CreatedAt     time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt     time.Time    `json:"updated_at" gorm:"not null"`
}

func (Supplier) TableName() string { return "suppliers" }

type Agent struct {
	ID            snowflake.ID `json:"id" gorm:"primaryKey"`
	Name          string       `json:"name" gorm:"size:128;not null;index"`
	ContactPerson string       `json:"contact_person" gorm:"size:64"`
	ContactPhone  string       `json:"contact_phone" gorm:"size:32"`
	Address       string       `json:"address" gorm:"size:255"`
	Status        string       `json:"status" gorm:"size:16;not null"`
	Remarks       string       `json:"remarks" gorm:"type:text"`
	CreatedAt     time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt     time.Time    `json:"updated_at" gorm:"not null"`
}

func (Agent) TableName() string { return "agents" }

type Product struct {
	ID          snowflake.ID `json:"id" gorm:"primaryKey"`
	Name        string       `json:"name" gorm:"size:128;not null;index"`
	Type        string       `json:"type" gorm:"size:16;not null"`
	Description string       `json:"description" gorm:"type:text"`
	Details     string       `json:"details" gorm:"type:text"`
	Status      string       `json:"status" gorm:"size:16;not null"`
	Remarks     string       `json:"remarks" gorm:"type:text"`
	CreatedAt   time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt   time.Time    `json:"updated_at" gorm:"not null"`
}

func (Product) TableName() string { return "products" }

// ProductQuote is a supplier's cost for a product; one per (product, supplier).
type ProductQuote struct {
	ID         snowflake.ID    `json:"id" gorm:"primaryKey"`
	ProductID  snowflake.ID    `json:"product_id" gorm:"not null;uniqueIndex:ux_product_quotes_product_supplier,priority:1"`
	SupplierID snowflake.ID    `json:"supplier_id" gorm:"not null;uniqueIndex:ux_product_quotes_product_supplier,priority:2;index"`
	CostPrice  decimal.Decimal `json:"cost_price" gorm:"type:decimal(18,2);not null"`
	Remarks    string          `json:"remarks" gorm:"type:text"`
	CreatedAt  time.Time       `json:"created_at" gorm:"not null"`
	UpdatedAt  time.Time       `json:"updated_at" gorm:"not null"`
}

func (ProductQuote) TableName() string { return "product_quotes" }

// AgentProductPrice is the agent-specific selling price for a quote; one per (quote, agent).
type AgentProductPrice struct {
	ID             snowflake.ID    `json:"id" gorm:"primaryKey"`
	ProductQuoteID snowflake.ID    `json:"product_quote_id" gorm:"not null;uniqueIndex:ux_agent_product_prices_quote_agent,priority:1"`
	AgentID        snowflake.ID    `json:"agent_id" gorm:"not null;uniqueIndex:ux_agent_product_prices_quote_agent,priority:2;index"`
	CostPrice      decimal.Decimal `json:"cost_price" gorm:"type:decimal(18,2);not null"`
	SellingPrice   decimal.Decimal `json:"selling_price" gorm:"type:decimal(18,2);not null"`
	Remarks        string          `json:"remarks" gorm:"type:text"`
	CreatedAt      time.Time       `json:"created_at" gorm:"not null"`
	UpdatedAt      time.Time       `json:"updated_at" gorm:"not null"`
}

func (AgentProductPrice) TableName() string { return "agent_product_prices" }

const (
	StatusActive   = "active"
	StatusInactive = "inactive"

	VisaStatusValid        = "valid"
	VisaStatusExpired      = "expired"
	VisaStatusExpiringSoon = "expiring_soon"

	EntrySingle   = "single"
	EntryMultiple = "multiple"
)

var (
	genders      = map[string]bool{"male": true, "female": true, "other": true}
	productTypes = map[string]bool{"tour": true, "hotel": true, "flight": true, "other": true}
	entryCounts  = map[string]bool{EntrySingle: true, EntryMultiple: true}
	partyStatus  = map[string]bool{StatusActive: true, StatusInactive: true}
)

func ValidGender(v string) bool      { return genders[v] }
func ValidProductType(v string) bool { return productTypes[v] }
func ValidEntryCount(v string) bool  { return entryCounts[v] }
func ValidStatus(v string) bool      { return partyStatus[v] }

// DeriveVisaStatus classifies a visa by its expiry date relative to now.
func DeriveVisaStatus(expiry time.Time, now time.Time, expiringSoonDays int) string {
	today := truncateDay(now)
	exp := truncateDay(expiry)
	if exp.Before(today) {
		return VisaStatusExpired
	}
	if !exp.After(today.AddDate(0, 0, expiringSoonDays)) {
		return VisaStatusExpiringSoon
	}
	return VisaStatusValid
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
