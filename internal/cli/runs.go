package cli

import (
	"fmt"

	"github.com/claimsync/backend/internal/application/alerting"
	"github.com/claimsync/backend/internal/application/reconciliation"
	"github.com/spf13/cobra"
)

func newReconcileCmd(opts *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Read unread broker responses and receipts and advance their cases",
		Long: `Reconcile runs one bounded pass over the shared mailbox. Each unread
message matching the configured subject keywords is parsed, resolved to a
case and applied when the case is in the expected state. Applied messages are
marked read; everything else stays unread for the next run.

The command exits non-zero when the mailbox is unreachable. The summary is
printed in every case.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 0 {
				return fmt.Errorf("--limit cannot be negative")
			}
			ctx, cancel := signalContext(cmd)
			defer cancel()

			a, err := bootstrap(ctx, opts.configPath)
			if err != nil {
				return err
			}
			defer a.close(ctx)

			svc, err := a.reconciler(ctx)
			if err != nil {
				return err
			}
			summary, runErr := svc.Run(ctx, reconciliation.RunOptions{Limit: limit})
			if summary != nil {
				if err := render(cmd.OutOrStdout(), opts.output, summary); err != nil {
					return err
				}
			}
			if runErr != nil {
				return fmt.Errorf("reconciliation aborted: %w", runErr)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "maximum messages per pipeline (default from config)")
	return cmd
}

func newAlertsCmd(opts *rootOptions) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "Evaluate open cases and send due alerts",
		Long: `Alerts runs the insurer-response, custodian, documentation-reminder and
deposit sweeps once. With --dry-run the sweeps report how many cases are due
without creating or sending any notification.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd)
			defer cancel()

			a, err := bootstrap(ctx, opts.configPath)
			if err != nil {
				return err
			}
			defer a.close(ctx)

			evaluator, err := a.evaluator()
			if err != nil {
				return err
			}
			summary, err := evaluator.Run(ctx, alerting.RunOptions{DryRun: dryRun})
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), opts.output, summary)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report due alerts without creating notifications")
	return cmd
}
