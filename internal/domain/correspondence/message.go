package correspondence

import (
	"path"
	"strings"
	"time"
)

// RawMessage is a mail message as fetched from the mailbox
type RawMessage struct {
	UID         uint32
	MessageID   string
	From        string
	Subject     string
	Date        time.Time
	TextBody    string
	Attachments []Attachment
}

// Attachment is a decoded MIME part carried by a message
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// IsPDF reports whether the attachment is a PDF document, by content type or file extension
func (a Attachment) IsPDF() bool {
	ct := strings.ToLower(strings.TrimSpace(a.ContentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if ct == "application/pdf" {
		return true
	}
	return strings.EqualFold(path.Ext(a.Filename), ".pdf")
}

// FirstPDF returns the first PDF attachment of the message
func (m *RawMessage) FirstPDF() (Attachment, bool) {
	for _, a := range m.Attachments {
		if a.IsPDF() {
			return a, true
		}
	}
	return Attachment{}, false
}

// Criteria selects messages in a mailbox search
type Criteria struct {
	SubjectKeywords []string
	UnreadOnly      bool
	Limit           int
}
