package channel

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/claimsync/backend/internal/domain/notification"
	"github.com/claimsync/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

func message() notification.Message {
	return notification.Message{
		Category:   notification.CategoryInsurerResponseAlert,
		Recipient:  "+593991234567",
		Subject:    "ALERTA: Respuesta Pendiente - Siniestro SIN-1",
		Body:       "Han pasado 48 horas.",
		CaseNumber: "SIN-1",
	}
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		raw  string
		want string
		ok   bool
	}{
		{"+593 99 123 4567", "+593991234567", true},
		{"(02) 245-6789", "022456789", true},
		{"1234567", "", false},
		{"1234567890123456", "", false},
		{"099-ABC-1234", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := NormalizePhone(tt.raw)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidEmail(t *testing.T) {
	assert.True(t, ValidEmail("custodio@example.com"))
	assert.False(t, ValidEmail("custodio@localhost"))
	assert.False(t, ValidEmail("custodio.example.com"))
	assert.False(t, ValidEmail("@example.com"))
	assert.False(t, ValidEmail("a b@example.com"))
}

func TestSMS_SendsToGateway(t *testing.T) {
	var got smsPayload
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	sms := NewSMS(config.SMSChannelConfig{Endpoint: srv.URL, APIKey: "key-1", Sender: "CLAIMS"}, NewPoster(0, 0, time.Second))
	require.NoError(t, sms.Send(context.Background(), message()))

	assert.Equal(t, "Bearer key-1", auth)
	assert.Equal(t, "+593991234567", got.To)
	assert.Equal(t, "CLAIMS", got.From)
	assert.Equal(t, "ALERTA: Respuesta Pendiente - Siniestro SIN-1", got.Text)
}

func TestSMS_Capabilities(t *testing.T) {
	sms := NewSMS(config.SMSChannelConfig{}, NewPoster(0, 0, 0))

	assert.True(t, sms.Supports(notification.CategoryInsurerResponseAlert))
	assert.True(t, sms.Supports(notification.CategoryDepositAlert))
	assert.False(t, sms.Supports(notification.CategoryDocumentationReminder))
	assert.False(t, sms.Supports(notification.CategoryCaseClosure))

	_, ok := sms.Recipient(notification.Contact{Email: "a@example.com"})
	assert.False(t, ok)
}

func TestPoster_ErrorCarriesStatusAndBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "invalid destination", http.StatusBadRequest)
	}))
	defer srv.Close()

	sms := NewSMS(config.SMSChannelConfig{Endpoint: srv.URL}, NewPoster(0, 0, time.Second))
	err := sms.Send(context.Background(), message())

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRequestFailed)
	assert.Equal(t, "sms gateway: channel request failed: HTTP 400: invalid destination", err.Error())
}

func TestPoster_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	chat := NewChat(config.ChatChannelConfig{WebhookURL: srv.URL}, NewPoster(0, 0, 50*time.Millisecond))
	err := chat.Send(context.Background(), message())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat webhook")
}

func TestPoster_RateLimitIsShared(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	poster := NewPoster(1, 1, time.Second)
	chat := NewChat(config.ChatChannelConfig{WebhookURL: srv.URL}, poster)
	hook := NewWebhook(config.WebhookChannelConfig{URL: srv.URL}, poster)

	require.NoError(t, chat.Send(context.Background(), message()))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err := hook.Send(ctx, message())

	require.Error(t, err, "second send must wait for the shared bucket")
	assert.Contains(t, err.Error(), "rate limit")
	assert.EqualValues(t, 1, hits.Load())
}

func TestChat_Payload(t *testing.T) {
	var got chatPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}))
	defer srv.Close()

	chat := NewChat(config.ChatChannelConfig{WebhookURL: srv.URL, Channel: "#siniestros"}, NewPoster(0, 0, time.Second))
	recipient, ok := chat.Recipient(notification.Contact{})
	require.True(t, ok)
	assert.Equal(t, "#siniestros", recipient)

	require.NoError(t, chat.Send(context.Background(), message()))
	assert.Equal(t, "#siniestros", got.Channel)
	assert.Equal(t, "*ALERTA: Respuesta Pendiente - Siniestro SIN-1*\nHan pasado 48 horas.", got.Text)
}

func TestWebhook_SignsBody(t *testing.T) {
	var (
		body      []byte
		signature string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		signature = r.Header.Get(SignatureHeader)
		body, _ = io.ReadAll(r.Body)
	}))
	defer srv.Close()

	hook := NewWebhook(config.WebhookChannelConfig{URL: srv.URL, Secret: "s3cret"}, NewPoster(0, 0, time.Second))
	require.NoError(t, hook.Send(context.Background(), message()))

	assert.Equal(t, "sha256="+Sign("s3cret", body), signature)

	var payload WebhookPayload
	require.NoError(t, json.Unmarshal(body, &payload))
	assert.Equal(t, notification.CategoryInsurerResponseAlert, payload.Category)
	assert.Equal(t, "SIN-1", payload.CaseNumber)
}

func TestWebhook_NoSecretNoSignature(t *testing.T) {
	var present bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, present = r.Header[SignatureHeader]
	}))
	defer srv.Close()

	hook := NewWebhook(config.WebhookChannelConfig{URL: srv.URL}, NewPoster(0, 0, time.Second))
	require.NoError(t, hook.Send(context.Background(), message()))
	assert.False(t, present)
}

func TestMail_Compose(t *testing.T) {
	m, err := NewMail(config.MailChannelConfig{Host: "smtp.example.com", Port: 587, From: "siniestros@example.com", TLS: "opportunistic"})
	require.NoError(t, err)

	recipient, ok := m.Recipient(notification.Contact{Email: " custodio@example.com "})
	require.True(t, ok)
	assert.Equal(t, "custodio@example.com", recipient)

	msg := message()
	msg.Recipient = recipient
	out, err := m.compose(msg)
	require.NoError(t, err)

	to, err := out.GetRecipients()
	require.NoError(t, err)
	assert.Equal(t, []string{"custodio@example.com"}, to)
	assert.Equal(t, []string{msg.Subject}, out.GetGenHeader(mail.HeaderSubject))

	msg.Recipient = "not an address"
	_, err = m.compose(msg)
	assert.Error(t, err)
}

func TestTLSPolicy(t *testing.T) {
	assert.Equal(t, mail.NoTLS, tlsPolicy("none"))
	assert.Equal(t, mail.TLSOpportunistic, tlsPolicy("Opportunistic"))
	assert.Equal(t, mail.TLSMandatory, tlsPolicy(""))
}

func TestBuildRegistry(t *testing.T) {
	cfg := config.ChannelsConfig{
		Mail:    config.MailChannelConfig{Enabled: true, Host: "smtp.example.com", Port: 25, From: "a@example.com"},
		SMS:     config.SMSChannelConfig{Enabled: true, Endpoint: "http://sms.invalid"},
		Webhook: config.WebhookChannelConfig{Enabled: false},
	}

	registry, err := BuildRegistry(cfg, zap.NewNop())

	require.NoError(t, err)
	assert.Equal(t, []string{NameMail, NameSMS}, registry.Names())

	plan := registry.Plan(notification.CategoryDocumentationReminder, notification.Contact{
		Email: "custodio@example.com",
		Phone: "+593991234567",
	})
	assert.Equal(t, []notification.Delivery{{Channel: NameMail, Recipient: "custodio@example.com"}}, plan)

	plan = registry.Plan(notification.CategoryDepositAlert, notification.Contact{
		Email: "custodio@example.com",
		Phone: "+593991234567",
	})
	assert.Len(t, plan, 2)
}
