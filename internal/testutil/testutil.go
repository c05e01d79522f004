// Package testutil holds fixtures shared by the service tests.
package testutil

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	catalogdomain "github.com/smallbiznis/visadesk/internal/catalog/domain"
	"github.com/smallbiznis/visadesk/internal/clock"
	"github.com/smallbiznis/visadesk/internal/config"
	"github.com/smallbiznis/visadesk/internal/migration"
	orderdomain "github.com/smallbiznis/visadesk/internal/order/domain"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// Now is the instant every fixture clock starts at.
var Now = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

// Env is an isolated in-memory database with a fake clock and an id node.
type Env struct {
	DB       *gorm.DB
	Node     *snowflake.Node
	Clock    *clock.FakeClock
	Business *config.BusinessConfigHolder
}

// NewEnv opens a private sqlite database named after the test and migrates
// every model into it.
func NewEnv(t *testing.T) *Env {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=foreign_keys(0)", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, migration.Migrate(db, "sqlite"))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return &Env{
		DB:       db,
		Node:     node,
		Clock:    clock.NewFakeClock(Now),
		Business: config.NewStaticBusinessConfigHolder(config.DefaultBusinessConfig()),
	}
}

// Catalog is a passport, an agent and one priced product ready to be ordered.
type Catalog struct {
	Passport catalogdomain.Passport
	Agent    catalogdomain.Agent
	Supplier catalogdomain.Supplier
	Product  catalogdomain.Product
	Quote    catalogdomain.ProductQuote
	Price    catalogdomain.AgentProductPrice
}

// SeedCatalog inserts a minimal catalog whose agent price sells at sellingPrice.
func (e *Env) SeedCatalog(t *testing.T, sellingPrice string) Catalog {
	t.Helper()
	now := e.Clock.Now()
	c := Catalog{
		Passport: catalogdomain.Passport{ID: e.Node.Generate(), Name: "Alice Tan", PassportNo: "E" + e.Node.Generate().String()[10:], CreatedAt: now, UpdatedAt: now},
		Agent:    catalogdomain.Agent{ID: e.Node.Generate(), Name: "Sunrise Travel", Status: catalogdomain.StatusActive, CreatedAt: now, UpdatedAt: now},
		Supplier: catalogdomain.Supplier{ID: e.Node.Generate(), Name: "Embassy Desk", Status: catalogdomain.StatusActive, CreatedAt: now, UpdatedAt: now},
		Product:  catalogdomain.Product{ID: e.Node.Generate(), Name: "Japan tourist visa", Type: "other", Status: catalogdomain.StatusActive, CreatedAt: now, UpdatedAt: now},
	}
	c.Quote = catalogdomain.ProductQuote{
		ID:         e.Node.Generate(),
		ProductID:  c.Product.ID,
		SupplierID: c.Supplier.ID,
		CostPrice:  decimal.RequireFromString("60.00"),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	c.Price = catalogdomain.AgentProductPrice{
		ID:             e.Node.Generate(),
		ProductQuoteID: c.Quote.ID,
		AgentID:        c.Agent.ID,
		CostPrice:      c.Quote.CostPrice,
		SellingPrice:   decimal.RequireFromString(sellingPrice),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	for _, row := range []any{&c.Passport, &c.Agent, &c.Supplier, &c.Product, &c.Quote, &c.Price} {
		require.NoError(t, e.DB.Create(row).Error)
	}
	return c
}

// InsertOrder writes a pending order with one line item worth total.
func (e *Env) InsertOrder(t *testing.T, c Catalog, orderNo string, total string) orderdomain.Order {
	t.Helper()
	now := e.Clock.Now()
	amount := Dec(total)
	order := orderdomain.Order{
		ID:            e.Node.Generate(),
		OrderNo:       orderNo,
		CustomerID:    c.Passport.ID,
		AgentID:       c.Agent.ID,
		TotalAmount:   amount,
		OrderStatus:   orderdomain.OrderStatusPending,
		PaymentStatus: orderdomain.PaymentStatusUnpaid,
		OrderDate:     now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	item := orderdomain.OrderItem{
		ID:                  e.Node.Generate(),
		OrderID:             order.ID,
		ProductID:           c.Product.ID,
		ProductQuoteID:      c.Quote.ID,
		AgentProductPriceID: c.Price.ID,
		Quantity:            1,
		UnitPrice:           amount,
		Subtotal:            amount,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	require.NoError(t, e.DB.Create(&order).Error)
	require.NoError(t, e.DB.Create(&item).Error)
	return order
}

// Dec parses a decimal literal.
func Dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}
