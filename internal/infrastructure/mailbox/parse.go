package mailbox

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/claimsync/backend/internal/domain/correspondence"
	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
)

// maxPartSize bounds a single decoded MIME part
var maxPartSize int64 = 25 << 20

// Parse decodes an RFC 5322 message into a RawMessage. Header words are
// decoded per RFC 2047; text/plain parts become the body and every other
// non-text part with a payload is kept as an attachment.
func Parse(uid uint32, raw []byte) (*correspondence.RawMessage, error) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, correspondence.Malformed("unreadable MIME structure: %v", err)
	}

	msg := &correspondence.RawMessage{UID: uid}
	h := mr.Header
	if subject, err := h.Subject(); err == nil {
		msg.Subject = subject
	} else {
		msg.Subject = h.Get("Subject")
	}
	if id, err := h.MessageID(); err == nil {
		msg.MessageID = id
	}
	if date, err := h.Date(); err == nil {
		msg.Date = date
	}
	if from, err := h.AddressList("From"); err == nil && len(from) > 0 {
		msg.From = from[0].Address
	} else {
		msg.From = strings.TrimSpace(h.Get("From"))
	}

	var html string
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if message.IsUnknownCharset(err) {
				continue
			}
			return nil, correspondence.Malformed("unreadable MIME part: %v", err)
		}

		data, err := io.ReadAll(io.LimitReader(part.Body, maxPartSize+1))
		if err != nil {
			return nil, fmt.Errorf("read MIME part: %w", err)
		}
		if int64(len(data)) > maxPartSize {
			return nil, correspondence.Malformed("MIME part exceeds %d bytes", maxPartSize)
		}

		switch ph := part.Header.(type) {
		case *mail.InlineHeader:
			ct, _, _ := ph.ContentType()
			switch {
			case ct == "text/plain":
				msg.TextBody = joinBody(msg.TextBody, string(data))
			case ct == "text/html":
				html = joinBody(html, string(data))
			case len(data) > 0:
				msg.Attachments = append(msg.Attachments, correspondence.Attachment{ContentType: ct, Data: data})
			}
		case *mail.AttachmentHeader:
			ct, _, _ := ph.ContentType()
			name, _ := ph.Filename()
			msg.Attachments = append(msg.Attachments, correspondence.Attachment{
				Filename:    name,
				ContentType: ct,
				Data:        data,
			})
		}
	}
	if msg.TextBody == "" && html != "" {
		msg.TextBody = html
	}
	return msg, nil
}

func joinBody(existing, next string) string {
	if existing == "" {
		return next
	}
	return existing + "\n" + next
}
