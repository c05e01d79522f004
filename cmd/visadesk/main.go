package main

import (
	"fmt"
	"os"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/visadesk/internal/audit"
	"github.com/smallbiznis/visadesk/internal/auth"
	"github.com/smallbiznis/visadesk/internal/authorization"
	"github.com/smallbiznis/visadesk/internal/clock"
	"github.com/smallbiznis/visadesk/internal/config"
	"github.com/smallbiznis/visadesk/internal/observability"
	"github.com/smallbiznis/visadesk/internal/ratelimit"
	"github.com/smallbiznis/visadesk/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

var version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:     "visadesk",
	Short:   "Back office for visa and travel orders, invoices and payments",
	Version: version,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var nodeID int64

func init() {
	rootCmd.PersistentFlags().Int64Var(&nodeID, "node", envNode(), "snowflake node id (0-1023)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// infrastructure is shared by every command that touches the database.
func infrastructure() fx.Option {
	return fx.Options(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
	)
}

// identity wires the services needed to manage users and roles.
func identity() fx.Option {
	return fx.Options(
		audit.Module,
		authorization.Module,
		ratelimit.Module,
		auth.Module,
	)
}

func RegisterSnowflake() (*snowflake.Node, error) {
	return snowflake.NewNode(nodeID)
}

func envNode() int64 {
	var id int64
	if raw := os.Getenv("SNOWFLAKE_NODE"); raw != "" {
		if _, err := fmt.Sscan(raw, &id); err == nil {
			return id
		}
	}
	return 1
}
