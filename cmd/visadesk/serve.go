package main

import (
	"github.com/smallbiznis/visadesk/internal/catalog"
	"github.com/smallbiznis/visadesk/internal/docnumber"
	"github.com/smallbiznis/visadesk/internal/invoice"
	"github.com/smallbiznis/visadesk/internal/migration"
	"github.com/smallbiznis/visadesk/internal/order"
	"github.com/smallbiznis/visadesk/internal/payment"
	"github.com/smallbiznis/visadesk/internal/providers/pdf"
	"github.com/smallbiznis/visadesk/internal/seed"
	"github.com/smallbiznis/visadesk/internal/server"
	"github.com/smallbiznis/visadesk/internal/storage"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Run the back office HTTP API.

The schema is migrated on start unless MIGRATE_ON_START=false. When the user
table is empty and BOOTSTRAP_ADMIN_PASSWORD is set, an administrator is
created from the BOOTSTRAP_ADMIN_* variables.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fx.New(
			infrastructure(),
			migration.Module,
			identity(),

			docnumber.Module,
			storage.Module,
			pdf.Module,
			catalog.Module,
			order.Module,
			invoice.Module,
			payment.Module,

			seed.Module,
			server.Module,
		).Run()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
