package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/claimsync/backend/internal/application/alerting"
	"github.com/claimsync/backend/internal/application/reconciliation"
	"github.com/claimsync/backend/internal/domain/notification"
	"github.com/fatih/color"
	"gopkg.in/yaml.v3"
)

// Output formats
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatText = "text"
)

var (
	okColor   = color.New(color.FgGreen)
	warnColor = color.New(color.FgYellow)
	failColor = color.New(color.FgRed, color.Bold)
	dimColor  = color.New(color.Faint)
)

func validFormat(format string) error {
	switch format {
	case FormatJSON, FormatYAML, FormatText:
		return nil
	}
	return fmt.Errorf("unknown output format %q (want json, yaml or text)", format)
}

// render writes v in format. Text rendering knows the summary and
// notification types and falls back to YAML for anything else.
func render(w io.Writer, format string, v any) error {
	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case FormatText:
		switch t := v.(type) {
		case *reconciliation.Summary:
			renderReconciliationText(w, t)
			return nil
		case *alerting.Summary:
			renderAlertsText(w, t)
			return nil
		case notificationView:
			renderNotificationText(w, t)
			return nil
		}
		return render(w, FormatYAML, v)
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
}

func outcomeColor(o reconciliation.Outcome) *color.Color {
	switch {
	case o == reconciliation.OutcomeApplied:
		return okColor
	case o.IsError():
		return failColor
	default:
		return dimColor
	}
}

func renderReconciliationText(w io.Writer, s *reconciliation.Summary) {
	fmt.Fprintf(w, "Reconciliation %s (%s)\n", s.RunID, s.FinishedAt.Sub(s.StartedAt).Round(time.Millisecond))
	fmt.Fprintf(w, "  processed %d  matched %d  applied %s  errors %s\n",
		s.Processed, s.Matched,
		okColor.Sprint(s.Applied),
		countColor(s.Errors).Sprint(s.Errors))
	for _, d := range s.Details {
		number := d.CaseNumber
		if number == "" {
			number = "-"
		}
		fmt.Fprintf(w, "  %-8s %-15s %-14s %-12s %s\n",
			d.ItemID, d.Kind, outcomeColor(d.Outcome).Sprint(d.Outcome), number, d.Message)
	}
	if s.Fatal != "" {
		fmt.Fprintf(w, "%s %s\n", failColor.Sprint("FATAL"), s.Fatal)
	}
}

func renderAlertsText(w io.Writer, s *alerting.Summary) {
	title := "Alerts " + s.RunID
	if s.DryRun {
		title += " " + warnColor.Sprint("(dry run)")
	}
	fmt.Fprintln(w, title)
	fmt.Fprintf(w, "  insurer_response %d\n  custodian        %d\n  documentation    %d\n  deposit          %d\n",
		s.InsurerResponse, s.Custodian, s.Documentation, s.Deposit)
	fmt.Fprintf(w, "  delivered %s  failed %s\n",
		okColor.Sprint(s.Delivered), countColor(s.DeliveryFailed).Sprint(s.DeliveryFailed))
	for _, e := range s.Errors {
		fmt.Fprintf(w, "  %s %s\n", failColor.Sprint("error"), e)
	}
}

// notificationView is the printed form of a notification
type notificationView struct {
	ID          string                `json:"id" yaml:"id"`
	Category    notification.Category `json:"category" yaml:"category"`
	Channel     string                `json:"channel" yaml:"channel"`
	Recipient   string                `json:"recipient" yaml:"recipient"`
	Subject     string                `json:"subject" yaml:"subject"`
	Status      notification.Status   `json:"status" yaml:"status"`
	ErrorDetail string                `json:"error_detail,omitempty" yaml:"error_detail,omitempty"`
	Attempts    int                   `json:"attempts" yaml:"attempts"`
	SentAt      *time.Time            `json:"sent_at,omitempty" yaml:"sent_at,omitempty"`
}

func newNotificationView(n *notification.Notification) notificationView {
	return notificationView{
		ID:          n.ID.String(),
		Category:    n.Category,
		Channel:     n.Channel,
		Recipient:   n.Recipient,
		Subject:     n.Subject,
		Status:      n.Status,
		ErrorDetail: n.ErrorDetail,
		Attempts:    n.Attempts,
		SentAt:      n.SentAt,
	}
}

func renderNotificationText(w io.Writer, n notificationView) {
	status := okColor.Sprint(n.Status)
	if n.Status != notification.StatusSent {
		status = failColor.Sprint(n.Status)
	}
	fmt.Fprintf(w, "%s %s via %s to %s\n", n.ID, status, n.Channel, n.Recipient)
	fmt.Fprintf(w, "  %s: %s\n", n.Category, n.Subject)
	fmt.Fprintf(w, "  attempts %d\n", n.Attempts)
	if n.ErrorDetail != "" {
		fmt.Fprintf(w, "  %s\n", strings.TrimSpace(n.ErrorDetail))
	}
}

func countColor(n int) *color.Color {
	if n > 0 {
		return failColor
	}
	return okColor
}
