package migration

import (
	"context"
	"os"
	"testing"

	"github.com/glebarez/sqlite"
	authdomain "github.com/smallbiznis/visadesk/internal/auth/domain"
	invoicedomain "github.com/smallbiznis/visadesk/internal/invoice/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func TestMigrateSQLiteCreatesEveryTable(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, Migrate(conn, "sqlite"))
	require.NoError(t, Migrate(conn, "sqlite"))

	for _, model := range Models() {
		assert.True(t, conn.Migrator().HasTable(model), "%T", model)
	}
	assert.True(t, conn.Migrator().HasIndex(&invoicedomain.InvoiceOrder{}, "ux_invoice_orders_active_order"))
}

func TestMigrateRejectsNilHandle(t *testing.T) {
	assert.Error(t, Migrate(nil, "sqlite"))
	assert.Error(t, RunMigrations(nil))
}

func TestRunMigrationsPostgres(t *testing.T) {
	if os.Getenv("VISADESK_INTEGRATION") != "1" {
		t.Skip("set VISADESK_INTEGRATION=1 to run against a postgres container")
	}
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("visadesk"),
		tcpostgres.WithUsername("visadesk"),
		tcpostgres.WithPassword("visadesk"),
		tcpostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	conn, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, Migrate(conn, "postgres"))
	require.NoError(t, Migrate(conn, "postgres"))

	for _, model := range Models() {
		assert.True(t, conn.Migrator().HasTable(model), "%T", model)
	}
	assert.True(t, conn.Migrator().HasTable("casbin_rule"))
	assert.True(t, conn.Migrator().HasIndex(&authdomain.User{}, "ux_users_username"))

	var count int64
	require.NoError(t, conn.Raw(`SELECT count(*) FROM pg_indexes WHERE indexname = 'ux_invoice_orders_active_order'`).Scan(&count).Error)
	assert.Equal(t, int64(1), count)
}
