package notification

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChannel struct {
	name string
}

func (f *fakeChannel) Name() string { return f.name }

func (f *fakeChannel) Send(context.Context, Message) error { return nil }

// urgentPhoneChannel only carries urgent categories and addresses by phone
type urgentPhoneChannel struct{ fakeChannel }

func (urgentPhoneChannel) Supports(c Category) bool { return c.IsUrgent() }

func (urgentPhoneChannel) Recipient(c Contact) (string, bool) { return c.Phone, c.Phone != "" }

func TestNewNotification(t *testing.T) {
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	t.Run("creates pending notification", func(t *testing.T) {
		n, err := NewNotification(CategoryDepositAlert, "mail", " broker@example.com ", RenderedMessage{Subject: "s", Body: "b"}, now)
		require.NoError(t, err)
		assert.Equal(t, StatusPending, n.Status)
		assert.Equal(t, "broker@example.com", n.Recipient)
		assert.Equal(t, now, n.CreatedAt)
		assert.Zero(t, n.Attempts)
	})

	t.Run("rejects unknown category", func(t *testing.T) {
		_, err := NewNotification("spam", "mail", "x@y.z", RenderedMessage{}, now)
		assert.Error(t, err)
	})

	t.Run("rejects empty recipient", func(t *testing.T) {
		_, err := NewNotification(CategoryCaseClosure, "mail", " ", RenderedMessage{}, now)
		assert.Error(t, err)
	})
}

func TestNotification_Delivery(t *testing.T) {
	now := time.Now()
	n, err := NewNotification(CategoryCaseClosure, "mail", "x@y.z", RenderedMessage{}, now)
	require.NoError(t, err)

	n.MarkFailed("smtp: 550 mailbox unavailable")
	assert.Equal(t, StatusFailed, n.Status)
	assert.Equal(t, "smtp: 550 mailbox unavailable", n.ErrorDetail)
	assert.Nil(t, n.SentAt)

	n.MarkSent(now)
	assert.Equal(t, StatusSent, n.Status)
	assert.Empty(t, n.ErrorDetail)
	assert.Equal(t, 2, n.Attempts)
	require.NotNil(t, n.SentAt)
}

func TestRegistry_Plan(t *testing.T) {
	reg := NewRegistry(&fakeChannel{name: "mail"}, &urgentPhoneChannel{fakeChannel{name: "sms"}})

	contact := Contact{Email: "c@example.com", Phone: "+59399123456"}

	t.Run("urgent category goes to every channel", func(t *testing.T) {
		plan := reg.Plan(CategoryDepositAlert, contact)
		assert.Equal(t, []Delivery{
			{Channel: "mail", Recipient: "c@example.com"},
			{Channel: "sms", Recipient: "+59399123456"},
		}, plan)
	})

	t.Run("filtered channel skips other categories", func(t *testing.T) {
		plan := reg.Plan(CategoryDocumentationReminder, contact)
		assert.Equal(t, []Delivery{{Channel: "mail", Recipient: "c@example.com"}}, plan)
	})

	t.Run("unreachable contact yields nothing", func(t *testing.T) {
		assert.Empty(t, reg.Plan(CategoryDepositAlert, Contact{}))
	})

	t.Run("lookup by name", func(t *testing.T) {
		ch, ok := reg.Channel("sms")
		require.True(t, ok)
		assert.Equal(t, "sms", ch.Name())
		_, ok = reg.Channel("fax")
		assert.False(t, ok)
		assert.Equal(t, []string{"mail", "sms"}, reg.Names())
	})
}
