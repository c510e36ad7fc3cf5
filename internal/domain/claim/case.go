package claim

import (
	"fmt"
	"strings"
	"time"

	"github.com/claimsync/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Case is the aggregate root for an insurance claim
type Case struct {
	shared.BaseAggregateRoot
	Number   string
	State    State
	AssetID  *uuid.UUID
	PolicyID *uuid.UUID

	BrokerEmail    string
	BrokerPhone    string
	CustodianName  string
	CustodianEmail string
	CustodianPhone string

	// Per-case switches for the time based alerts
	AlertInsurerResponse bool
	AlertCustodian       bool
	AlertDeposit         bool

	RegisteredAt        time.Time
	BrokerNotifiedAt    *time.Time
	BrokerRespondedAt   *time.Time
	BrokerResponder     string
	SentToInsurerAt     *time.Time
	InsurerRespondedAt  *time.Time
	IndemnitySignedAt   *time.Time
	ReceiptReceivedAt   *time.Time
	PaidAt              *time.Time
	ClosedAt            *time.Time
	CustodianNotifiedAt *time.Time
	LastDocReminderOn   *time.Time

	Receipt Receipt
}

// Receipt holds what was taken from an indemnification receipt
type Receipt struct {
	DocumentKey               string
	Sender                    string
	NetIndemnification        *decimal.Decimal
	GrossLoss                 *decimal.Decimal
	Deductible                *decimal.Decimal
	Depreciation              *decimal.Decimal
	NetLossBeforeDepreciation *decimal.Decimal
}

// StateChange is returned by every named transition
type StateChange struct {
	Previous State
	Current  State
	At       time.Time
}

// NewCase registers a new case with all alerts enabled
func NewCase(number string, registeredAt time.Time) (*Case, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return nil, shared.NewDomainError("INVALID_NUMBER", "Case number cannot be empty")
	}
	if registeredAt.IsZero() {
		return nil, shared.NewDomainError("INVALID_DATE", "Registration time is required")
	}
	return &Case{
		BaseAggregateRoot:    shared.NewBaseAggregateRoot(registeredAt),
		Number:               number,
		State:                StateRegistered,
		AlertInsurerResponse: true,
		AlertCustodian:       true,
		AlertDeposit:         true,
		RegisteredAt:         registeredAt,
	}, nil
}

func wrongState(c *Case, transition string, required ...State) error {
	names := make([]string, len(required))
	for i, s := range required {
		names[i] = string(s)
	}
	return shared.NewDomainError("WRONG_STATE", fmt.Sprintf(
		"cannot %s case %s in state %s (requires %s)",
		transition, c.Number, c.State, strings.Join(names, " or ")))
}

func (c *Case) moveTo(target State, at time.Time) StateChange {
	change := StateChange{Previous: c.State, Current: target, At: at}
	c.State = target
	c.UpdatedAt = at
	return change
}

func (c *Case) transition(name string, from, to State, at time.Time) (StateChange, error) {
	if c.State != from || !from.CanTransitionTo(to) {
		return StateChange{}, wrongState(c, name, from)
	}
	return c.moveTo(to, at), nil
}

// RequestDocumentation asks the custodian for the claim paperwork
func (c *Case) RequestDocumentation(at time.Time) (StateChange, error) {
	return c.transition("request documentation for", StateRegistered, StateDocumentationPending, at)
}

// NotifyBroker records that the claim was reported to the broker
func (c *Case) NotifyBroker(at time.Time) (StateChange, error) {
	change, err := c.transition("notify broker about", StateDocumentationPending, StateNotifiedBroker, at)
	if err != nil {
		return change, err
	}
	c.BrokerNotifiedAt = &at
	return change, nil
}

// ApplyBrokerResponse records the broker's answer to a notified case
func (c *Case) ApplyBrokerResponse(responder string, at time.Time) (StateChange, error) {
	change, err := c.transition("apply broker response to", StateNotifiedBroker, StateDocumentationReady, at)
	if err != nil {
		return change, err
	}
	c.BrokerRespondedAt = &at
	c.BrokerResponder = strings.TrimSpace(responder)
	return change, nil
}

// SendToInsurer records that the complete file went to the insurer
func (c *Case) SendToInsurer(at time.Time) (StateChange, error) {
	change, err := c.transition("send to insurer", StateDocumentationReady, StateSentToInsurer, at)
	if err != nil {
		return change, err
	}
	c.SentToInsurerAt = &at
	return change, nil
}

// StartEvaluation records the insurer's first response
func (c *Case) StartEvaluation(at time.Time) (StateChange, error) {
	change, err := c.transition("start evaluation of", StateSentToInsurer, StateUnderEvaluation, at)
	if err != nil {
		return change, err
	}
	c.InsurerRespondedAt = &at
	return change, nil
}

// SignIndemnity records the signature of the indemnity agreement
func (c *Case) SignIndemnity(at time.Time) (StateChange, error) {
	change, err := c.transition("sign indemnity for", StateUnderEvaluation, StateIndemnitySigned, at)
	if err != nil {
		return change, err
	}
	c.IndemnitySignedAt = &at
	return change, nil
}

// ApplyReceipt attaches an indemnification receipt. It is accepted from any
// state ranked before receipt_received; a second receipt is a wrong-state error.
func (c *Case) ApplyReceipt(r Receipt, at time.Time) (StateChange, error) {
	if !c.State.CanTransitionTo(StateReceiptReceived) {
		return StateChange{}, wrongState(c, "apply receipt to", StatesUpTo(StateIndemnitySigned)...)
	}
	change := c.moveTo(StateReceiptReceived, at)
	c.ReceiptReceivedAt = &at
	c.Receipt = r
	return change, nil
}

// MarkSettled records payment of the indemnity
func (c *Case) MarkSettled(at time.Time) (StateChange, error) {
	change, err := c.transition("settle", StateReceiptReceived, StateSettled, at)
	if err != nil {
		return change, err
	}
	c.PaidAt = &at
	return change, nil
}

// Close ends the case lifecycle
func (c *Case) Close(at time.Time) (StateChange, error) {
	change, err := c.transition("close", StateSettled, StateClosed, at)
	if err != nil {
		return change, err
	}
	c.ClosedAt = &at
	return change, nil
}

// DaysSinceRegistration counts calendar days between registration and now in loc
func (c *Case) DaysSinceRegistration(now time.Time, loc *time.Location) int {
	return CalendarDaysBetween(c.RegisteredAt, now, loc)
}

// AwaitingInsurerResponse reports whether the insurer-response alert applies
func (c *Case) AwaitingInsurerResponse() bool {
	return c.State == StateSentToInsurer &&
		c.SentToInsurerAt != nil &&
		c.InsurerRespondedAt == nil &&
		c.AlertInsurerResponse
}

// NeedsCustodianNotice reports whether the custodian has yet to be told about the case
func (c *Case) NeedsCustodianNotice() bool {
	rank := c.State.Rank()
	return rank >= 0 &&
		rank <= StateUnderEvaluation.Rank() &&
		c.CustodianNotifiedAt == nil &&
		c.AlertCustodian
}

// DocumentationReminderDue reports whether today is a reminder day: every
// 8th day after registration while documentation is pending, once per day.
func (c *Case) DocumentationReminderDue(now time.Time, loc *time.Location) bool {
	if c.State != StateDocumentationPending {
		return false
	}
	days := c.DaysSinceRegistration(now, loc)
	if days <= 0 || days%DocumentationReminderEvery != 0 {
		return false
	}
	if c.LastDocReminderOn != nil {
		last := c.LastDocReminderOn.UTC()
		today := CalendarDay(now, loc)
		if last.Year() == today.Year() && last.YearDay() == today.YearDay() {
			return false
		}
	}
	return true
}

// DepositPending reports whether a signed indemnity is still unpaid
func (c *Case) DepositPending() bool {
	return c.State.IsOpen() &&
		c.IndemnitySignedAt != nil &&
		c.PaidAt == nil &&
		c.AlertDeposit
}

// DocumentationReminderEvery is the reminder cadence in days
const DocumentationReminderEvery = 8

// CalendarDaysBetween counts date boundaries crossed from from to to in loc
func CalendarDaysBetween(from, to time.Time, loc *time.Location) int {
	if loc == nil {
		loc = time.UTC
	}
	f := from.In(loc)
	t := to.In(loc)
	fd := time.Date(f.Year(), f.Month(), f.Day(), 0, 0, 0, 0, time.UTC)
	td := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return int(td.Sub(fd).Hours() / 24)
}

// CalendarDay truncates t to midnight of its date in loc
func CalendarDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	l := t.In(loc)
	return time.Date(l.Year(), l.Month(), l.Day(), 0, 0, 0, 0, time.UTC)
}
