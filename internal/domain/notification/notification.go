package notification

import (
	"strings"
	"time"

	"github.com/claimsync/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Category classifies why a notification was raised
type Category string

const (
	CategoryInsurerResponseAlert  Category = "insurer_response_alert"
	CategoryCustodianNotice       Category = "custodian_notice"
	CategoryDocumentationReminder Category = "documentation_reminder"
	CategoryDepositAlert          Category = "deposit_alert"
	CategoryBrokerCaseNotice      Category = "broker_case_notice"
	CategoryCaseClosure           Category = "case_closure"
)

// IsValid checks if the category is known
func (c Category) IsValid() bool {
	switch c {
	case CategoryInsurerResponseAlert, CategoryCustodianNotice, CategoryDocumentationReminder,
		CategoryDepositAlert, CategoryBrokerCaseNotice, CategoryCaseClosure:
		return true
	}
	return false
}

// IsUrgent reports whether the category warrants the urgent channels (SMS)
func (c Category) IsUrgent() bool {
	return c == CategoryInsurerResponseAlert || c == CategoryDepositAlert
}

// Status is the delivery status of a notification
type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
)

// Notification is a single message to one recipient over one channel.
// Only the delivery fields change after creation.
type Notification struct {
	ID        uuid.UUID
	Category  Category
	Channel   string
	Recipient string
	Subject   string
	Body      string
	CaseID    *uuid.UUID
	PolicyID  *uuid.UUID

	Status      Status
	ErrorDetail string
	Attempts    int
	SentAt      *time.Time
	CreatedAt   time.Time
}

// NewNotification creates a pending notification
func NewNotification(category Category, channel, recipient string, msg RenderedMessage, now time.Time) (*Notification, error) {
	if !category.IsValid() {
		return nil, shared.NewDomainError("INVALID_CATEGORY", "Unknown notification category: "+string(category))
	}
	if strings.TrimSpace(channel) == "" {
		return nil, shared.NewDomainError("INVALID_CHANNEL", "Notification channel cannot be empty")
	}
	if strings.TrimSpace(recipient) == "" {
		return nil, shared.NewDomainError("INVALID_RECIPIENT", "Notification recipient cannot be empty")
	}
	return &Notification{
		ID:        uuid.New(),
		Category:  category,
		Channel:   channel,
		Recipient: strings.TrimSpace(recipient),
		Subject:   msg.Subject,
		Body:      msg.Body,
		Status:    StatusPending,
		CreatedAt: now,
	}, nil
}

// MarkSent records a successful delivery
func (n *Notification) MarkSent(at time.Time) {
	n.Status = StatusSent
	n.ErrorDetail = ""
	n.Attempts++
	n.SentAt = &at
}

// MarkFailed records a failed delivery with the channel's error text
func (n *Notification) MarkFailed(detail string) {
	n.Status = StatusFailed
	n.ErrorDetail = detail
	n.Attempts++
}

// Message converts the notification into what a channel sends
func (n *Notification) Message(caseNumber string) Message {
	return Message{
		Category:   n.Category,
		Recipient:  n.Recipient,
		Subject:    n.Subject,
		Body:       n.Body,
		CaseNumber: caseNumber,
	}
}

// RenderedMessage is the text of a notification before it is addressed
type RenderedMessage struct {
	Subject string
	Body    string
}
