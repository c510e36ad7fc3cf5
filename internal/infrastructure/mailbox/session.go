// Package mailbox implements the IMAP session used by reconciliation.
package mailbox

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"iter"
	"net"
	"net/textproto"
	"slices"

	"github.com/claimsync/backend/internal/domain/correspondence"
	"github.com/claimsync/backend/internal/infrastructure/config"
	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"go.uber.org/zap"
)

var _ correspondence.MailboxSession = (*Session)(nil)

var errNotConnected = errors.New("not connected")

// Session is one IMAP connection to the shared mailbox. It is not safe for
// concurrent use; a run owns its session.
type Session struct {
	cfg    config.MailboxConfig
	logger *zap.Logger
	client *client.Client
}

// NewSession creates an unconnected session
func NewSession(cfg config.MailboxConfig, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{cfg: cfg, logger: logger}
}

func connErr(op string, err error) error {
	return &correspondence.ConnectionError{Op: op, Err: err}
}

// Connect dials, logs in and selects the folder read-write
func (s *Session) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return connErr("dial", err)
	}

	dialer := &net.Dialer{Timeout: s.cfg.DialTimeout}
	var (
		c   *client.Client
		err error
	)
	if s.cfg.DisableTLS {
		c, err = client.DialWithDialer(dialer, s.cfg.Addr())
	} else {
		c, err = client.DialWithDialerTLS(dialer, s.cfg.Addr(), &tls.Config{
			ServerName:         s.cfg.Host,
			InsecureSkipVerify: s.cfg.InsecureSkipVerify, //nolint:gosec // opt-in for self-signed test servers
		})
	}
	if err != nil {
		return connErr("dial", err)
	}
	c.Timeout = s.cfg.CommandTimeout
	s.client = c

	if err := c.Login(s.cfg.Username, s.cfg.Password); err != nil {
		return connErr("login", err)
	}
	if _, err := c.Select(s.cfg.Folder, false); err != nil {
		return connErr("select", err)
	}

	s.logger.Debug("Mailbox connected",
		zap.String("addr", s.cfg.Addr()),
		zap.String("folder", s.cfg.Folder),
	)
	return nil
}

// Search runs one UID SEARCH per keyword and yields the union in ascending
// UID order, at most criteria.Limit of them
func (s *Session) Search(ctx context.Context, criteria correspondence.Criteria) iter.Seq2[uint32, error] {
	return func(yield func(uint32, error) bool) {
		if s.client == nil {
			yield(0, connErr("search", errNotConnected))
			return
		}

		seen := make(map[uint32]struct{})
		var uids []uint32
		for _, kw := range searchKeywords(criteria.SubjectKeywords) {
			if err := ctx.Err(); err != nil {
				yield(0, err)
				return
			}
			sc := imap.NewSearchCriteria()
			if criteria.UnreadOnly {
				sc.WithoutFlags = []string{imap.SeenFlag}
			}
			if kw != "" {
				sc.Header = textproto.MIMEHeader{}
				sc.Header.Add("Subject", kw)
			}
			found, err := s.client.UidSearch(sc)
			if err != nil {
				yield(0, connErr("search", err))
				return
			}
			for _, uid := range found {
				if _, dup := seen[uid]; !dup {
					seen[uid] = struct{}{}
					uids = append(uids, uid)
				}
			}
		}

		slices.Sort(uids)
		if criteria.Limit > 0 && len(uids) > criteria.Limit {
			uids = uids[:criteria.Limit]
		}
		for _, uid := range uids {
			if !yield(uid, nil) {
				return
			}
		}
	}
}

func searchKeywords(keywords []string) []string {
	if len(keywords) == 0 {
		return []string{""}
	}
	return keywords
}

// Fetch downloads the full message with BODY.PEEK[] so the \Seen flag is untouched
func (s *Session) Fetch(ctx context.Context, uid uint32) (*correspondence.RawMessage, error) {
	if s.client == nil {
		return nil, connErr("fetch", errNotConnected)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uid)
	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchUid, section.FetchItem()}

	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- s.client.UidFetch(seqset, items, messages)
	}()

	var body []byte
	for m := range messages {
		if m.Uid != uid {
			continue
		}
		if lit := m.GetBody(section); lit != nil {
			if data, err := io.ReadAll(lit); err == nil {
				body = data
			}
		}
	}
	if err := <-done; err != nil {
		return nil, connErr("fetch", err)
	}
	if body == nil {
		return nil, correspondence.ErrMessageNotFound
	}
	return Parse(uid, body)
}

// MarkRead adds the \Seen flag
func (s *Session) MarkRead(ctx context.Context, uid uint32) error {
	if s.client == nil {
		return connErr("store", errNotConnected)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	seqset := new(imap.SeqSet)
	seqset.AddNum(uid)
	item := imap.FormatFlagsOp(imap.AddFlags, true)
	if err := s.client.UidStore(seqset, item, []any{imap.SeenFlag}, nil); err != nil {
		return connErr("store", err)
	}
	return nil
}

// Disconnect logs out and closes the connection
func (s *Session) Disconnect() error {
	if s.client == nil {
		return nil
	}
	c := s.client
	s.client = nil
	if err := c.Logout(); err != nil {
		s.logger.Debug("Mailbox logout failed", zap.Error(err))
		return c.Terminate()
	}
	return nil
}
