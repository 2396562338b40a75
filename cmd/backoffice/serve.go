package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/backoffice/internal/advance"
	"github.com/smallbiznis/backoffice/internal/clock"
	"github.com/smallbiznis/backoffice/internal/commitment"
	"github.com/smallbiznis/backoffice/internal/config"
	"github.com/smallbiznis/backoffice/internal/fee"
	"github.com/smallbiznis/backoffice/internal/invoice"
	"github.com/smallbiznis/backoffice/internal/locking"
	"github.com/smallbiznis/backoffice/internal/migration"
	"github.com/smallbiznis/backoffice/internal/notification"
	"github.com/smallbiznis/backoffice/internal/observability"
	"github.com/smallbiznis/backoffice/internal/party"
	"github.com/smallbiznis/backoffice/internal/sequence"
	"github.com/smallbiznis/backoffice/internal/server"
	"github.com/smallbiznis/backoffice/internal/serviceorder"
	"github.com/smallbiznis/backoffice/internal/tax"
	"github.com/smallbiznis/backoffice/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Run the HTTP API on HTTP_ADDR.

The schema is migrated before the server starts listening, and a default
fee configuration is published when none exists. Tax rates must be
published through the API before invoices can be created.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		nodeID, _ := cmd.Flags().GetInt64("node")
		fx.New(
			fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
				return &fxevent.ZapLogger{Logger: log.Named("fx")}
			}),
			appModules(nodeID),
			migration.Module,
			server.Module,
		).Run()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int64("node", 1, "snowflake node id, unique per running instance")
}

// appModules wires infrastructure and every bounded context.
func appModules(nodeID int64) fx.Option {
	return fx.Options(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(func() (*snowflake.Node, error) {
			return snowflake.NewNode(nodeID)
		}),
		db.Module,
		clock.Module,
		sequence.Module,
		locking.Module,
		notification.Module,

		// Functional Domains
		party.Module,
		commitment.Module,
		serviceorder.Module,
		tax.Module,
		fee.Module,
		invoice.Module,
		advance.Module,
	)
}
