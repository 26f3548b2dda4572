package chat

import (
	"fmt"
	"unicode/utf8"
)

const (
	MaxMessageBytes = 4096 // max content size in bytes
	MaxContentChars = 2000 // max character count
)

// ValidationError reports a malformed message rejected at the store boundary.
// Nothing is applied when validation fails.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("chat: invalid %s: %s", e.Field, e.Reason)
}

// validate checks that a message meets content requirements before it is
// assigned an ID and appended.
func validate(msg *Message) error {
	if msg.Content == "" {
		return &ValidationError{Field: "content", Reason: "empty"}
	}
	if msg.Channel == "" {
		return &ValidationError{Field: "channel", Reason: "unset"}
	}
	if msg.Sender == "" {
		return &ValidationError{Field: "sender", Reason: "unset"}
	}
	if len(msg.Content) > MaxMessageBytes {
		return &ValidationError{Field: "content", Reason: fmt.Sprintf("exceeds %d byte limit", MaxMessageBytes)}
	}
	if utf8.RuneCountInString(msg.Content) > MaxContentChars {
		return &ValidationError{Field: "content", Reason: fmt.Sprintf("exceeds %d character limit", MaxContentChars)}
	}
	if !utf8.ValidString(msg.Content) {
		return &ValidationError{Field: "content", Reason: "invalid UTF-8"}
	}
	return nil
}
