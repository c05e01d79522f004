package main

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	authdomain "github.com/smallbiznis/visadesk/internal/auth/domain"
	"github.com/smallbiznis/visadesk/internal/authorization"
	"github.com/smallbiznis/visadesk/internal/config"
	"github.com/smallbiznis/visadesk/internal/migration"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const commandTimeout = 2 * time.Minute

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database schema migrations and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOnce(
			infrastructure(),
			fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
				if err := migration.Migrate(conn, cfg.DBType); err != nil {
					return err
				}
				log.Info("schema migrated", zap.String("type", cfg.DBType))
				return nil
			}),
		)
	},
}

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create an administrator or reset an existing one",
	Example: `  visadesk create-admin --username admin --name "Office Admin"
  ADMIN_PASSWORD=secret visadesk create-admin --username admin`,
	RunE: func(cmd *cobra.Command, args []string) error {
		username, _ := cmd.Flags().GetString("username")
		name, _ := cmd.Flags().GetString("name")
		password, _ := cmd.Flags().GetString("password")
		if password == "" {
			password = os.Getenv("ADMIN_PASSWORD")
		}
		if strings.TrimSpace(username) == "" || password == "" {
			return errors.New("username and password are required (use --password or ADMIN_PASSWORD)")
		}

		return runOnce(
			infrastructure(),
			identity(),
			fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
				return migration.Migrate(conn, cfg.DBType)
			}),
			fx.Invoke(func(lc fx.Lifecycle, authz authorization.Service, users authdomain.Service, log *zap.Logger) {
				lc.Append(fx.Hook{
					OnStart: func(ctx context.Context) error {
						if err := authz.EnsureDefaults(ctx); err != nil {
							return err
						}
						admin, err := users.EnsureAdmin(ctx, authdomain.CreateUserRequest{
							Username: username,
							Password: password,
							Name:     name,
						})
						if err != nil {
							return err
						}
						log.Info("administrator ready", zap.String("username", admin.Username), zap.String("id", admin.ID.String()))
						return nil
					},
				})
			}),
		)
	},
}

func init() {
	createAdminCmd.Flags().String("username", "admin", "login name")
	createAdminCmd.Flags().String("name", "Administrator", "display name")
	createAdminCmd.Flags().String("password", "", "password (defaults to ADMIN_PASSWORD)")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(createAdminCmd)
}

// runOnce starts the graph, letting OnStart hooks do the work, and stops it.
func runOnce(opts ...fx.Option) error {
	app := fx.New(append(opts, fx.NopLogger)...)
	if err := app.Err(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	if err := app.Start(ctx); err != nil {
		return err
	}
	return app.Stop(ctx)
}
