package reconciliation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/claimsync/backend/internal/domain/claim"
	"github.com/claimsync/backend/internal/domain/correspondence"
	"github.com/claimsync/backend/internal/infrastructure/extraction"
	"github.com/claimsync/backend/internal/infrastructure/persistence"
	"github.com/claimsync/backend/internal/infrastructure/persistence/testdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var runAt = time.Date(2026, 5, 4, 14, 0, 0, 0, time.UTC)

type env struct {
	db        *gorm.DB
	cases     *persistence.GormCaseRepository
	mailbox   *fakeMailbox
	documents *memoryDocuments
	leases    *memoryLeases
	lines     []string
	broker    correspondence.Extractor
}

func newEnv(t *testing.T, msgs ...*correspondence.RawMessage) *env {
	db := testdb.New(t)
	return &env{
		db:        db,
		cases:     persistence.NewGormCaseRepository(db),
		mailbox:   newFakeMailbox(msgs...),
		documents: &memoryDocuments{},
		leases:    &memoryLeases{},
		broker:    extraction.NewBrokerResponseExtractor(),
	}
}

func (e *env) service() *Service {
	return NewService(e.mailbox, e.broker,
		extraction.NewReceiptExtractor(linesSource{lines: e.lines}),
		e.cases, e.documents, e.leases, nil,
		Options{
			BrokerKeywords:  []string{"RESPUESTA SINIESTRO"},
			ReceiptKeywords: []string{"recibo"},
		},
		func() time.Time { return runAt }, zap.NewNop())
}

func (e *env) run(t *testing.T) *Summary {
	t.Helper()
	summary, err := e.service().Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	return summary
}

func (e *env) caseIn(t *testing.T, number string, target claim.State, mutate func(*claim.Case)) *claim.Case {
	t.Helper()
	c, err := claim.NewCase(number, runAt.AddDate(0, 0, -20))
	require.NoError(t, err)
	at := c.RegisteredAt
	steps := []func(time.Time) (claim.StateChange, error){
		c.RequestDocumentation,
		c.NotifyBroker,
		func(at time.Time) (claim.StateChange, error) { return c.ApplyBrokerResponse("broker@example.com", at) },
		c.SendToInsurer,
		c.StartEvaluation,
	}
	for _, step := range steps {
		if c.State == target {
			break
		}
		at = at.Add(time.Hour)
		_, err := step(at)
		require.NoError(t, err)
	}
	require.Equal(t, target, c.State)
	if mutate != nil {
		mutate(c)
	}
	require.NoError(t, e.cases.Create(context.Background(), c))
	return c
}

func brokerMessage(uid uint32, subject string) *correspondence.RawMessage {
	return &correspondence.RawMessage{
		UID:       uid,
		MessageID: "<broker-" + subject + ">",
		From:      "broker@example.com",
		Subject:   subject,
		Date:      runAt.Add(-time.Hour),
	}
}

func receiptMessage(uid uint32, subject string) *correspondence.RawMessage {
	return &correspondence.RawMessage{
		UID:       uid,
		MessageID: "<receipt-" + subject + ">",
		From:      "pagos@aseguradora.example",
		Subject:   subject,
		Date:      runAt.Add(-time.Hour),
		Attachments: []correspondence.Attachment{
			{Filename: "recibo.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.4 receipt")},
		},
	}
}

func TestService_BrokerResponseEndToEnd(t *testing.T) {
	e := newEnv(t, brokerMessage(1, "RESPUESTA SINIESTRO SIN-2026-0001"))
	e.caseIn(t, "SIN-2026-0001", claim.StateNotifiedBroker, nil)

	summary := e.run(t)

	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, 1, summary.Matched)
	assert.Equal(t, 1, summary.Applied)
	assert.Equal(t, 0, summary.Errors)
	assert.Empty(t, summary.Fatal)
	require.Len(t, summary.Details, 1)
	assert.Equal(t, OutcomeApplied, summary.Details[0].Outcome)
	assert.Equal(t, "SIN-2026-0001", summary.Details[0].CaseNumber)
	assert.Equal(t, KindBrokerResponse, summary.Details[0].Kind)
	assert.True(t, e.mailbox.seen[1], "applied message is marked read")
	assert.Equal(t, 1, e.mailbox.closed)

	stored, err := e.cases.FindByNumber(context.Background(), "SIN-2026-0001")
	require.NoError(t, err)
	assert.Equal(t, claim.StateDocumentationReady, stored.State)
	assert.Equal(t, "broker@example.com", stored.BrokerResponder)
	require.NotNil(t, stored.BrokerRespondedAt)
	assert.True(t, stored.BrokerRespondedAt.Equal(runAt))
}

func TestService_SecondBrokerResponseIsWrongState(t *testing.T) {
	e := newEnv(t,
		brokerMessage(1, "RESPUESTA SINIESTRO SIN-2026-0001"),
		brokerMessage(2, "RE: RESPUESTA SINIESTRO SIN-2026-0001"),
	)
	e.caseIn(t, "SIN-2026-0001", claim.StateNotifiedBroker, nil)

	summary := e.run(t)

	require.Len(t, summary.Details, 2)
	assert.Equal(t, OutcomeApplied, summary.Details[0].Outcome)
	assert.Equal(t, OutcomeWrongState, summary.Details[1].Outcome)
	assert.Equal(t, 2, summary.Matched)
	assert.Equal(t, 1, summary.Applied)
	assert.Equal(t, 1, summary.Errors)
	assert.False(t, e.mailbox.seen[2], "rejected message stays unread")

	stored, err := e.cases.FindByNumber(context.Background(), "SIN-2026-0001")
	require.NoError(t, err)
	assert.Equal(t, 2, stored.Version, "exactly one transition was written")
}

func TestService_StaleCopyIsWrongState(t *testing.T) {
	e := newEnv(t)
	c := e.caseIn(t, "SIN-2026-0001", claim.StateNotifiedBroker, nil)

	stale := *c
	change, err := c.ApplyBrokerResponse("a@example.com", runAt)
	require.NoError(t, err)
	require.NoError(t, e.cases.SaveTransition(context.Background(), c, change))

	err = e.service().apply(context.Background(), correspondence.BrokerResponseFact{CaseNumber: c.Number}, &stale,
		brokerMessage(9, "RESPUESTA SINIESTRO SIN-2026-0001"))
	assert.Equal(t, OutcomeWrongState, transitionOutcome(err))
}

func TestService_ReceiptEndToEnd(t *testing.T) {
	e := newEnv(t, receiptMessage(7, "Recibo de Indemnización 651147"))
	e.lines = []string{
		"RECIBO DE INDEMNIZACIÓN",
		"Recibí de Seguros Andinos S.A. la suma de US$      1,350.00",
		"Pérdida Bruta                                    1,600.00",
		"Deducible                                          150.00",
		"Depreciación                                       100.00",
	}
	e.caseIn(t, "651147", claim.StateSentToInsurer, nil)

	summary := e.run(t)

	assert.Equal(t, 1, summary.Applied)
	assert.Equal(t, 0, summary.Errors)
	require.Len(t, summary.Details, 1)
	assert.Equal(t, KindReceipt, summary.Details[0].Kind)
	assert.True(t, e.mailbox.seen[7])

	stored, err := e.cases.FindByNumber(context.Background(), "651147")
	require.NoError(t, err)
	assert.Equal(t, claim.StateReceiptReceived, stored.State)
	require.NotNil(t, stored.Receipt.NetIndemnification)
	assert.Equal(t, "1350.00", stored.Receipt.NetIndemnification.StringFixed(2))
	require.NotNil(t, stored.Receipt.GrossLoss)
	assert.Equal(t, "1600.00", stored.Receipt.GrossLoss.StringFixed(2))
	assert.Equal(t, "pagos@aseguradora.example", stored.Receipt.Sender)
	assert.Regexp(t, `^receipts/651147/[0-9a-f]{32}\.pdf$`, stored.Receipt.DocumentKey)
	assert.Equal(t, []byte("%PDF-1.4 receipt"), e.documents.objects[stored.Receipt.DocumentKey])
}

func TestService_ReceiptBySerial(t *testing.T) {
	e := newEnv(t, receiptMessage(3, "Recibo de indemnizacion"))
	e.lines = []string{"SERIE: ABC12345", "LA SUMA DE 980.00"}

	asset := claim.NewAsset("Laptop", "abc12345", "", runAt)
	require.NoError(t, persistence.NewGormAssetRepository(e.db).Create(context.Background(), asset))
	e.caseIn(t, "SIN-2026-0300", claim.StateSentToInsurer, func(c *claim.Case) { c.AssetID = &asset.ID })

	summary := e.run(t)

	require.Len(t, summary.Details, 1)
	assert.Equal(t, OutcomeApplied, summary.Details[0].Outcome)
	assert.Equal(t, "SIN-2026-0300", summary.Details[0].CaseNumber)
}

func TestService_ItemOutcomes(t *testing.T) {
	noPDF := receiptMessage(4, "Recibo de indemnización 700001")
	noPDF.Attachments = nil

	e := newEnv(t,
		brokerMessage(1, "RESPUESTA SINIESTRO SIN-2026-4040"),
		brokerMessage(2, "RESPUESTA SINIESTRO sin número"),
		receiptMessage(3, "Recibo de caja chica"),
		noPDF,
	)

	summary := e.run(t)

	outcomes := map[uint32]Outcome{}
	for _, d := range summary.Details {
		for uid, m := range e.mailbox.messages {
			if m.MessageID == d.ItemID {
				outcomes[uid] = d.Outcome
			}
		}
	}
	assert.Equal(t, OutcomeNotFound, outcomes[1])
	assert.Equal(t, OutcomeMalformed, outcomes[2])
	assert.Equal(t, OutcomeNotApplicable, outcomes[3])
	assert.Equal(t, OutcomeMalformed, outcomes[4])
	assert.Equal(t, 4, summary.Processed)
	assert.Equal(t, 0, summary.Matched)
	assert.Equal(t, 3, summary.Errors)
	assert.Empty(t, e.mailbox.seen)
}

func TestService_LeaseHeldElsewhere(t *testing.T) {
	e := newEnv(t, brokerMessage(1, "RESPUESTA SINIESTRO SIN-2026-0001"))
	e.caseIn(t, "SIN-2026-0001", claim.StateNotifiedBroker, nil)
	e.leases.denied = map[string]bool{"claimsync:lease:broker_response:1": true}

	summary := e.run(t)

	require.Len(t, summary.Details, 1)
	assert.Equal(t, OutcomeInFlight, summary.Details[0].Outcome)
	assert.Equal(t, "uid:1", summary.Details[0].ItemID)
	assert.Zero(t, summary.Errors)
	assert.False(t, e.mailbox.seen[1])
}

func TestService_RecoversPanics(t *testing.T) {
	e := newEnv(t,
		brokerMessage(1, "RESPUESTA SINIESTRO SIN-2026-0001"),
		brokerMessage(2, "RESPUESTA SINIESTRO SIN-2026-0002"),
	)
	e.broker = panickingExtractor{}

	summary := e.run(t)

	require.Len(t, summary.Details, 2)
	for _, d := range summary.Details {
		assert.Equal(t, OutcomeFailed, d.Outcome)
		assert.Contains(t, d.Message, "panic: nil attachment table")
	}
	assert.Empty(t, e.leases.held, "leases are released after a panic")
}

func TestService_ConnectionErrorIsFatal(t *testing.T) {
	t.Run("on connect", func(t *testing.T) {
		e := newEnv(t)
		e.mailbox.connectErr = &correspondence.ConnectionError{Op: "login", Err: errors.New("authentication failed")}

		summary, err := e.service().Run(context.Background(), RunOptions{})

		require.Error(t, err)
		assert.True(t, correspondence.IsConnectionError(err))
		assert.Equal(t, "mailbox login: authentication failed", summary.Fatal)
		assert.Zero(t, summary.Processed)
	})

	t.Run("mid run", func(t *testing.T) {
		e := newEnv(t,
			brokerMessage(1, "RESPUESTA SINIESTRO SIN-2026-0001"),
			brokerMessage(2, "RESPUESTA SINIESTRO SIN-2026-0002"),
		)
		e.mailbox.fetchErr[1] = &correspondence.ConnectionError{Op: "fetch", Err: errors.New("connection reset")}

		summary, err := e.service().Run(context.Background(), RunOptions{})

		require.Error(t, err)
		assert.NotEmpty(t, summary.Fatal)
		assert.Equal(t, 1, summary.Processed, "run stops at the failing item")
		assert.Equal(t, 1, e.mailbox.closed)
	})
}

func TestService_Limit(t *testing.T) {
	e := newEnv(t,
		brokerMessage(1, "RESPUESTA SINIESTRO SIN-2026-0001"),
		brokerMessage(2, "RESPUESTA SINIESTRO SIN-2026-0002"),
		brokerMessage(3, "RESPUESTA SINIESTRO SIN-2026-0003"),
	)

	summary, err := e.service().Run(context.Background(), RunOptions{Limit: 2})

	require.NoError(t, err)
	assert.Equal(t, 2, summary.Processed)
}
