// Package email defines the interface for the operator notification email and
// provides an EmailJS-backed implementation.
package email

import (
	"context"
	"errors"
	"time"
)

// ErrInvalidRecord is returned when a contact record is missing its email or
// transcript and therefore cannot produce a well-formed notification. It is
// distinct from a transport failure: the send was never attempted.
var ErrInvalidRecord = errors.New("email: contact record missing email or voice input")

// NotificationParams holds the fields of one stored submission that feed the
// notification template. RecordedAt is the row's creation time, shown in the
// email so the operator can tell a fresh submission from a re-send.
type NotificationParams struct {
	RecordID           string
	Email              string // submitter address — subject + original_email field, never the recipient
	VoiceInput         string
	EnglishTranslation string // optional; empty when the capture language was English
	RecordedAt         time.Time
}

// Sender is the interface the intake and dispatch workflows use to notify the
// operator. Tests inject a stub that records calls without hitting the
// network.
type Sender interface {
	// SendVoiceNotification formats one submission into the fixed-shape
	// template and delivers it to the operator inbox. Implementations never
	// retry; the only retry path is a manual re-send.
	SendVoiceNotification(ctx context.Context, p NotificationParams) error
}
