package reconciliation

import (
	"bytes"
	"context"
	"io"
	"iter"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/claimsync/backend/internal/domain/correspondence"
)

// fakeMailbox is an in-memory correspondence.MailboxSession
type fakeMailbox struct {
	messages   map[uint32]*correspondence.RawMessage
	seen       map[uint32]bool
	connectErr error
	fetchErr   map[uint32]error
	connected  bool
	closed     int
}

func newFakeMailbox(msgs ...*correspondence.RawMessage) *fakeMailbox {
	mb := &fakeMailbox{
		messages: make(map[uint32]*correspondence.RawMessage),
		seen:     make(map[uint32]bool),
		fetchErr: make(map[uint32]error),
	}
	for _, m := range msgs {
		mb.messages[m.UID] = m
	}
	return mb
}

func (f *fakeMailbox) Connect(context.Context) error {
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	return nil
}

func (f *fakeMailbox) Search(_ context.Context, c correspondence.Criteria) iter.Seq2[uint32, error] {
	uids := make([]uint32, 0, len(f.messages))
	for uid, m := range f.messages {
		if c.UnreadOnly && f.seen[uid] {
			continue
		}
		for _, kw := range c.SubjectKeywords {
			if strings.Contains(strings.ToLower(m.Subject), strings.ToLower(kw)) {
				uids = append(uids, uid)
				break
			}
		}
	}
	sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })
	return func(yield func(uint32, error) bool) {
		for _, uid := range uids {
			if !yield(uid, nil) {
				return
			}
		}
	}
}

func (f *fakeMailbox) Fetch(_ context.Context, uid uint32) (*correspondence.RawMessage, error) {
	if err := f.fetchErr[uid]; err != nil {
		return nil, err
	}
	m, ok := f.messages[uid]
	if !ok {
		return nil, correspondence.ErrMessageNotFound
	}
	return m, nil
}

func (f *fakeMailbox) MarkRead(_ context.Context, uid uint32) error {
	f.seen[uid] = true
	return nil
}

func (f *fakeMailbox) Disconnect() error {
	f.connected = false
	f.closed++
	return nil
}

type memoryDocuments struct {
	objects map[string][]byte
}

func (m *memoryDocuments) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return err
	}
	if m.objects == nil {
		m.objects = make(map[string][]byte)
	}
	m.objects[key] = buf.Bytes()
	return nil
}

func (m *memoryDocuments) Delete(_ context.Context, key string) error {
	delete(m.objects, key)
	return nil
}

type memoryLeases struct {
	mu     sync.Mutex
	held   map[string]bool
	denied map[string]bool
}

func (l *memoryLeases) Acquire(_ context.Context, key string, _ time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held == nil {
		l.held = make(map[string]bool)
	}
	if l.denied[key] || l.held[key] {
		return false, nil
	}
	l.held[key] = true
	return true, nil
}

func (l *memoryLeases) Release(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, key)
	return nil
}

type linesSource struct {
	lines []string
}

func (s linesSource) Lines(context.Context, []byte) ([]string, error) {
	return s.lines, nil
}

type panickingExtractor struct{}

func (panickingExtractor) Extract(context.Context, *correspondence.RawMessage) (correspondence.Fact, error) {
	panic("nil attachment table")
}
