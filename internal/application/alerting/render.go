package alerting

import (
	"fmt"
	"strings"
	"time"

	"github.com/claimsync/backend/internal/domain/claim"
	"github.com/claimsync/backend/internal/domain/notification"
)

const dayLayout = "02/01/2006"

// Render builds the subject and body of a notification. It is pure: the
// same inputs always give the same text. Day counts use now's location.
func Render(category notification.Category, c *claim.Case, p *claim.Policy, now time.Time) notification.RenderedMessage {
	loc := now.Location()
	var b strings.Builder

	switch category {
	case notification.CategoryInsurerResponseAlert:
		days := 0
		if c.SentToInsurerAt != nil {
			days = claim.CalendarDaysBetween(*c.SentToInsurerAt, now, loc)
		}
		fmt.Fprintf(&b, "El siniestro %s fue enviado a la aseguradora", c.Number)
		if c.SentToInsurerAt != nil {
			fmt.Fprintf(&b, " el %s", c.SentToInsurerAt.In(loc).Format(dayLayout))
		}
		fmt.Fprintf(&b, " y no registra respuesta desde hace %d días.\n", days)
		writePolicy(&b, p)
		b.WriteString("Por favor gestione la respuesta de la aseguradora.")
		return notification.RenderedMessage{
			Subject: "ALERTA: Respuesta Pendiente - Siniestro " + c.Number,
			Body:    b.String(),
		}

	case notification.CategoryCustodianNotice:
		fmt.Fprintf(&b, "Estimado/a %s:\n", orDefault(c.CustodianName, "custodio"))
		fmt.Fprintf(&b, "Se registró el siniestro %s el %s y se encuentra en estado %s.\n",
			c.Number, c.RegisteredAt.In(loc).Format(dayLayout), stateLabel(c.State))
		b.WriteString("Le mantendremos informado sobre su avance.")
		return notification.RenderedMessage{
			Subject: "Aviso: Siniestro Pendiente - " + c.Number,
			Body:    b.String(),
		}

	case notification.CategoryDocumentationReminder:
		fmt.Fprintf(&b, "Estimado/a %s:\n", orDefault(c.CustodianName, "custodio"))
		fmt.Fprintf(&b, "Han transcurrido %d días desde el registro del siniestro %s y la documentación sigue pendiente.\n",
			c.DaysSinceRegistration(now, loc), c.Number)
		b.WriteString("Por favor envíe los documentos solicitados a la brevedad.")
		return notification.RenderedMessage{
			Subject: "Recordatorio: Documentación Pendiente - " + c.Number,
			Body:    b.String(),
		}

	case notification.CategoryDepositAlert:
		fmt.Fprintf(&b, "El finiquito del siniestro %s fue firmado", c.Number)
		if c.IndemnitySignedAt != nil {
			fmt.Fprintf(&b, " el %s (hace %d días)", c.IndemnitySignedAt.In(loc).Format(dayLayout),
				claim.CalendarDaysBetween(*c.IndemnitySignedAt, now, loc))
		}
		b.WriteString(" y el depósito de la indemnización sigue pendiente.\n")
		if c.Receipt.NetIndemnification != nil {
			fmt.Fprintf(&b, "Valor a indemnizar: %s\n", c.Receipt.NetIndemnification.StringFixed(2))
		}
		writePolicy(&b, p)
		return notification.RenderedMessage{
			Subject: "ALERTA: Depósito Pendiente - Siniestro " + c.Number,
			Body:    b.String(),
		}

	case notification.CategoryBrokerCaseNotice:
		fmt.Fprintf(&b, "Estimado/a %s:\n", brokerName(p))
		fmt.Fprintf(&b, "Notificamos el siniestro %s registrado el %s.\n", c.Number, c.RegisteredAt.In(loc).Format(dayLayout))
		writePolicy(&b, p)
		fmt.Fprintf(&b, "Por favor responda con el asunto \"RESPUESTA SINIESTRO %s\".", c.Number)
		return notification.RenderedMessage{
			Subject: "Notificación de Siniestro - " + c.Number,
			Body:    b.String(),
		}

	case notification.CategoryCaseClosure:
		if c.State == claim.StateClosed {
			fmt.Fprintf(&b, "El siniestro %s ha sido cerrado.\n", c.Number)
		} else {
			fmt.Fprintf(&b, "La indemnización del siniestro %s ha sido pagada.\n", c.Number)
		}
		if c.Receipt.NetIndemnification != nil {
			fmt.Fprintf(&b, "Valor indemnizado: %s\n", c.Receipt.NetIndemnification.StringFixed(2))
		}
		writePolicy(&b, p)
		return notification.RenderedMessage{
			Subject: "Cierre de Siniestro - " + c.Number,
			Body:    b.String(),
		}
	}

	return notification.RenderedMessage{Subject: string(category) + " - " + c.Number}
}

func writePolicy(b *strings.Builder, p *claim.Policy) {
	if p == nil {
		return
	}
	fmt.Fprintf(b, "Póliza: %s", p.Number)
	if p.InsurerName != "" {
		fmt.Fprintf(b, " (%s)", p.InsurerName)
	}
	b.WriteString("\n")
}

func brokerName(p *claim.Policy) string {
	if p == nil {
		return "corredor"
	}
	return orDefault(p.BrokerName, "corredor")
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

var stateLabels = map[claim.State]string{
	claim.StateRegistered:           "registrado",
	claim.StateDocumentationPending: "documentación pendiente",
	claim.StateNotifiedBroker:       "notificado al corredor",
	claim.StateDocumentationReady:   "documentación completa",
	claim.StateSentToInsurer:        "enviado a la aseguradora",
	claim.StateUnderEvaluation:      "en evaluación",
	claim.StateIndemnitySigned:      "finiquito firmado",
	claim.StateReceiptReceived:      "recibo recibido",
	claim.StateSettled:              "pagado",
	claim.StateClosed:               "cerrado",
}

func stateLabel(s claim.State) string {
	if l, ok := stateLabels[s]; ok {
		return l
	}
	return string(s)
}
