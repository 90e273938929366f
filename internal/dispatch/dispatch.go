// Package dispatch implements the bulk notification batch: iterate over
// stored contacts, send the operator notification for each, and tally the
// outcomes. It is deliberately sequential — one send in flight at a time,
// with a fixed pause between sends as a courtesy to the email provider's
// rate limit. The pause is a throttle, not a backoff: it applies after
// successes and failures alike.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/baronlegal/voice-intake-backend/internal/email"
	"github.com/baronlegal/voice-intake-backend/internal/store"
)

// ─── DEPENDENCIES ────────────────────────────────────────────────────────────

// ContactLister is the slice of the store the batcher needs: resolving a
// scope to the sequence of contacts to notify.
type ContactLister interface {
	ListAll(ctx context.Context) ([]store.Contact, error)
	ListByEmail(ctx context.Context, email string) ([]store.Contact, error)
}

// ─── TYPES ───────────────────────────────────────────────────────────────────

// Scope selects which contacts a batch covers. The zero value means all.
type Scope struct {
	// Email filters the batch to one submitter's records when non-empty.
	Email string
}

// ContactOutcome is the per-contact result row in a finished batch.
type ContactOutcome struct {
	ContactID uuid.UUID `json:"contact_id"`
	Email     string    `json:"email"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
}

// BatchResult is the full tally of one batch. PerContact has exactly one
// entry per resolved contact, in listing order.
type BatchResult struct {
	Total        int              `json:"total"`
	SuccessCount int              `json:"success_count"`
	ErrorCount   int              `json:"error_count"`
	PerContact   []ContactOutcome `json:"per_contact"`
}

// Batcher runs bulk notification batches. Construct with New.
type Batcher struct {
	lister ContactLister
	mailer email.Sender
	delay  time.Duration
	logger *slog.Logger
}

// New constructs a Batcher. delay is the inter-send pause; zero or negative
// falls back to one second.
func New(lister ContactLister, mailer email.Sender, delay time.Duration, logger *slog.Logger) *Batcher {
	if delay <= 0 {
		delay = time.Second
	}
	return &Batcher{
		lister: lister,
		mailer: mailer,
		delay:  delay,
		logger: logger,
	}
}

// ─── BATCH EXECUTION ─────────────────────────────────────────────────────────

// DispatchAll resolves the scope and sends one notification per contact,
// strictly sequentially. Individual send failures are captured in the result
// and never abort the batch; the only error return is a failure to resolve
// the scope in the first place. Returns early with ctx.Err() if the context
// is cancelled between sends.
func (b *Batcher) DispatchAll(ctx context.Context, scope Scope) (BatchResult, error) {
	contacts, err := b.resolve(ctx, scope)
	if err != nil {
		return BatchResult{}, err
	}

	b.logger.Info("dispatch: batch starting",
		"total", len(contacts),
		"scope_email", scope.Email,
	)

	result := BatchResult{
		Total:      len(contacts),
		PerContact: make([]ContactOutcome, 0, len(contacts)),
	}

	for i, c := range contacts {
		outcome := ContactOutcome{ContactID: c.ID, Email: c.Email}

		err := b.mailer.SendVoiceNotification(ctx, email.NotificationParams{
			RecordID:           c.ID.String(),
			Email:              c.Email,
			VoiceInput:         c.VoiceInput,
			EnglishTranslation: c.EnglishTranslation.String,
			RecordedAt:         c.CreatedAt,
		})
		if err != nil {
			outcome.Error = err.Error()
			result.ErrorCount++
			b.logger.Warn("dispatch: send failed",
				"contact_id", c.ID,
				"email", c.Email,
				"error", err,
			)
		} else {
			outcome.Success = true
			result.SuccessCount++
		}

		result.PerContact = append(result.PerContact, outcome)

		// Throttle between sends, not after the last one.
		if i < len(contacts)-1 {
			select {
			case <-ctx.Done():
				return result, ctx.Err()
			case <-time.After(b.delay):
			}
		}
	}

	b.logger.Info("dispatch: batch finished",
		"total", result.Total,
		"success", result.SuccessCount,
		"errors", result.ErrorCount,
	)

	return result, nil
}

func (b *Batcher) resolve(ctx context.Context, scope Scope) ([]store.Contact, error) {
	if scope.Email != "" {
		contacts, err := b.lister.ListByEmail(ctx, scope.Email)
		if err != nil {
			return nil, fmt.Errorf("dispatch: list by email: %w", err)
		}
		return contacts, nil
	}

	contacts, err := b.lister.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("dispatch: list all: %w", err)
	}
	return contacts, nil
}
