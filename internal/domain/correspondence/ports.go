package correspondence

import (
	"context"
	"io"
	"iter"
	"time"
)

// MailboxSession is a connection to the shared mailbox.
// Read flags only change through MarkRead; Fetch never marks a message seen.
type MailboxSession interface {
	Connect(ctx context.Context) error

	// Search yields matching message UIDs lazily. A yielded error ends the sequence.
	Search(ctx context.Context, criteria Criteria) iter.Seq2[uint32, error]

	// Fetch returns ErrMessageNotFound when the UID no longer exists
	Fetch(ctx context.Context, uid uint32) (*RawMessage, error)

	MarkRead(ctx context.Context, uid uint32) error

	// Disconnect is idempotent and safe after a failed Connect
	Disconnect() error
}

// Extractor turns a raw message into a Fact.
// It returns ErrNotApplicable or a *MalformedError for messages it cannot use.
type Extractor interface {
	Extract(ctx context.Context, msg *RawMessage) (Fact, error)
}

// TextSource turns a document into its physical text lines
type TextSource interface {
	Lines(ctx context.Context, data []byte) ([]string, error)
}

// DocumentStore keeps attached documents such as receipt PDFs
type DocumentStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
}

// LeaseStore grants short exclusive leases on correspondence items so that
// concurrent runs skip a message another run is already handling.
type LeaseStore interface {
	// Acquire returns false when the key is already leased
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}
