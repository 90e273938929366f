package intake

import (
	"errors"
	"regexp"
	"strings"

	"github.com/baronlegal/voice-intake-backend/internal/store"
)

// ─── ERRORS ──────────────────────────────────────────────────────────────────

// ErrInvalidEmail is returned when the submitter email is empty or fails the
// syntactic pattern. Never retried; no store call is made.
var ErrInvalidEmail = errors.New("intake: email is empty or malformed")

// ErrEmptyVoiceInput is returned when the transcript is empty or whitespace.
var ErrEmptyVoiceInput = errors.New("intake: voice input is empty")

// emailPattern is the minimal syntactic check: something, an @, something, a
// dot, something, with no whitespace anywhere. Deliverability is not our
// problem — the notification goes to the operator, not the submitter.
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidateEmail reports whether email passes the syntactic pattern.
func ValidateEmail(email string) error {
	if !emailPattern.MatchString(email) {
		return ErrInvalidEmail
	}
	return nil
}

// ValidateSubmission runs the pre-persistence checks for an upsert.
func ValidateSubmission(email, voiceInput string) error {
	if err := ValidateEmail(email); err != nil {
		return err
	}
	if strings.TrimSpace(voiceInput) == "" {
		return ErrEmptyVoiceInput
	}
	return nil
}

// IsValidRecord reports whether a stored row would pass submission validation
// today. Cleanup deletes the rows that do not.
func IsValidRecord(c store.Contact) bool {
	return ValidateSubmission(c.Email, c.VoiceInput) == nil
}
