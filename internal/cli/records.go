package cli

import (
	"fmt"
	"time"

	"github.com/claimsync/backend/internal/application/casemgmt"
	"github.com/claimsync/backend/internal/domain/claim"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newNotificationsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notifications",
		Short: "Inspect and resend notifications",
	}

	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one notification",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid notification id %q: %w", args[0], err)
			}
			ctx, cancel := signalContext(cmd)
			defer cancel()

			a, err := bootstrap(ctx, opts.configPath)
			if err != nil {
				return err
			}
			defer a.close(ctx)

			n, err := a.dispatcher.Get(ctx, id)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), opts.output, newNotificationView(n))
		},
	}

	resend := &cobra.Command{
		Use:   "resend <id>",
		Short: "Deliver a pending or failed notification again",
		Long: `Resend makes one more delivery attempt for a notification that is
pending or failed. Sent notifications are refused. A failed attempt is
reported in the printed status and does not change the exit code.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid notification id %q: %w", args[0], err)
			}
			ctx, cancel := signalContext(cmd)
			defer cancel()

			a, err := bootstrap(ctx, opts.configPath)
			if err != nil {
				return err
			}
			defer a.close(ctx)

			n, err := a.dispatcher.Resend(ctx, id)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), opts.output, newNotificationView(n))
		},
	}

	cmd.AddCommand(show, resend)
	return cmd
}

// transitionView is the printed result of an operator transition
type transitionView struct {
	CaseNumber    string             `json:"case_number" yaml:"case_number"`
	Transition    string             `json:"transition" yaml:"transition"`
	Previous      claim.State        `json:"previous" yaml:"previous"`
	Current       claim.State        `json:"current" yaml:"current"`
	At            time.Time          `json:"at" yaml:"at"`
	Notifications []notificationView `json:"notifications,omitempty" yaml:"notifications,omitempty"`
}

func newCasesCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cases",
		Short: "Operator actions on cases",
	}

	transition := &cobra.Command{
		Use:       "transition <number> <name>",
		Short:     "Apply a named transition to a case",
		Long:      "Apply one of the operator transitions. Valid names: " + fmt.Sprint(casemgmt.Transitions()),
		Args:      cobra.ExactArgs(2),
		ValidArgs: casemgmt.Transitions(),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd)
			defer cancel()

			a, err := bootstrap(ctx, opts.configPath)
			if err != nil {
				return err
			}
			defer a.close(ctx)

			result, err := a.caseService().Apply(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			view := transitionView{
				CaseNumber: result.Case.Number,
				Transition: args[1],
				Previous:   result.Change.Previous,
				Current:    result.Change.Current,
				At:         result.Change.At,
			}
			for _, n := range result.Notifications {
				view.Notifications = append(view.Notifications, newNotificationView(n))
			}
			return render(cmd.OutOrStdout(), opts.output, view)
		},
	}

	cmd.AddCommand(transition)
	return cmd
}
