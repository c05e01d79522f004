package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	auditdomain "github.com/smallbiznis/visadesk/internal/audit/domain"
	authdomain "github.com/smallbiznis/visadesk/internal/auth/domain"
	"github.com/smallbiznis/visadesk/internal/authorization"
	catalogdomain "github.com/smallbiznis/visadesk/internal/catalog/domain"
	"github.com/smallbiznis/visadesk/internal/docnumber"
	invoicedomain "github.com/smallbiznis/visadesk/internal/invoice/domain"
	orderdomain "github.com/smallbiznis/visadesk/internal/order/domain"
	paymentdomain "github.com/smallbiznis/visadesk/internal/payment/domain"
	"gorm.io/gorm"
)

const migrationsDir = "sql"

//go:embed sql/*.sql
var embeddedMigrations embed.FS

// Models lists every table the service owns, in dependency order.
func Models() []any {
	return []any{
		&catalogdomain.Passport{},
		&catalogdomain.Visa{},
		&catalogdomain.Supplier{},
		&catalogdomain.Agent{},
		&catalogdomain.Product{},
		&catalogdomain.ProductQuote{},
		&catalogdomain.AgentProductPrice{},
		&orderdomain.Order{},
		&orderdomain.OrderItem{},
		&invoicedomain.Invoice{},
		&invoicedomain.InvoiceOrder{},
		&paymentdomain.Payment{},
		&docnumber.DocumentSequence{},
		&authdomain.User{},
		&authorization.Role{},
		&authorization.Permission{},
		&auditdomain.OperationLog{},
	}
}

// Migrate brings the schema up to date. Postgres runs the versioned SQL
// files; sqlite and mysql are migrated from the gorm models.
func Migrate(conn *gorm.DB, dbType string) error {
	if conn == nil {
		return errors.New("migration database handle is required")
	}
	if strings.EqualFold(strings.TrimSpace(dbType), "postgres") {
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}
	if err := conn.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// RunMigrations applies the embedded postgres migrations.
func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Closing the migrator would close the shared *sql.DB.

	return nil
}
