// Package cli implements the claimsync command line.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/claimsync/backend/internal/infrastructure/telemetry"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	output     string
}

// NewRootCmd builds the claimsync command tree
func NewRootCmd(version string) *cobra.Command {
	opts := &rootOptions{}
	telemetry.ServiceVersion = version

	root := &cobra.Command{
		Use:     "claimsync",
		Short:   "Insurance claim correspondence reconciliation and alerts",
		Version: version,
		Long: `claimsync reads broker responses and indemnity receipts from the shared
claims mailbox, advances the matching cases, and raises time-based alerts
over the configured notification channels.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return validFormat(opts.output)
		},
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file (default: ./claimsync.toml)")
	root.PersistentFlags().StringVarP(&opts.output, "output", "o", FormatJSON, "output format: json, yaml or text")

	root.AddCommand(
		newReconcileCmd(opts),
		newAlertsCmd(opts),
		newNotificationsCmd(opts),
		newCasesCmd(opts),
		newMigrateCmd(opts),
		newServeCmd(opts, version),
	)
	return root
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
