package correspondence

import (
	"errors"
	"fmt"
)

var (
	// ErrNotApplicable means the extractor does not handle this kind of message
	ErrNotApplicable = errors.New("message not applicable to extractor")

	// ErrMessageNotFound means the message disappeared from the mailbox
	ErrMessageNotFound = errors.New("message not found in mailbox")
)

// MalformedError means the message is of the right kind but its content is unusable
type MalformedError struct {
	Reason string
}

func (e *MalformedError) Error() string {
	return "malformed message: " + e.Reason
}

// Malformed builds a MalformedError
func Malformed(format string, args ...any) error {
	return &MalformedError{Reason: fmt.Sprintf(format, args...)}
}

// ConnectionError wraps any network or authentication failure of the mailbox
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("mailbox %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// IsConnectionError reports whether err is or wraps a ConnectionError
func IsConnectionError(err error) bool {
	var ce *ConnectionError
	return errors.As(err, &ce)
}
