// Package intake implements the contact upsert workflow: validate the
// submission, decide insert vs update by the email natural key, persist,
// verify the write, then notify the operator.
//
// Persistence and notification are two independent effects. A failed
// notification never rolls back the saved row and a verification failure is
// diagnostic only — the caller still sees a successful save.
package intake

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/baronlegal/voice-intake-backend/internal/email"
	"github.com/baronlegal/voice-intake-backend/internal/store"
	"github.com/baronlegal/voice-intake-backend/internal/translate"
)

// ─── DEPENDENCIES ────────────────────────────────────────────────────────────

// ContactStore is the slice of the store the workflows use. The concrete
// implementation is *store.Store; tests inject a stub that records calls.
type ContactStore interface {
	FindByEmail(ctx context.Context, email string) (store.Contact, error)
	FindByID(ctx context.Context, id uuid.UUID) (store.Contact, error)
	Insert(ctx context.Context, p store.InsertContactParams) (store.Contact, error)
	Update(ctx context.Context, p store.UpdateContactParams) (store.Contact, error)
	ListAll(ctx context.Context) ([]store.Contact, error)
	DeleteByIDs(ctx context.Context, ids []uuid.UUID) (int64, error)
}

// ─── TYPES ───────────────────────────────────────────────────────────────────

// Operation tags which branch the upsert took.
type Operation string

const (
	OperationInsert Operation = "insert"
	OperationUpdate Operation = "update"
)

// UpsertParams is one captured submission.
type UpsertParams struct {
	Email      string
	VoiceInput string

	// Language is the capture language tag, e.g. "en-US" or "es-MX". When it
	// is non-English and no translation was supplied, the workflow asks the
	// translator for one.
	Language string

	// EnglishTranslation is the browser-side translation, when the capture UI
	// already produced one. Takes precedence over server-side translation.
	EnglishTranslation string
}

// UpsertResult is the saved record plus the branch taken.
type UpsertResult struct {
	Contact   store.Contact
	Operation Operation
}

// CleanupResult reports one validation sweep over the stored rows.
type CleanupResult struct {
	Examined   int
	Deleted    int64
	DeletedIDs []uuid.UUID
}

// Service orchestrates the store, translator, and notification sender.
// Construct it with New; the zero value is not usable.
type Service struct {
	store      ContactStore
	mailer     email.Sender
	translator translate.Translator // nil when no API key is configured
	logger     *slog.Logger

	// emailLocks serializes concurrent upserts for the same email so two
	// near-simultaneous submissions cannot both observe "not found" and both
	// insert. Striped rather than per-key so the lock table stays bounded.
	emailLocks [64]sync.Mutex
}

// New constructs the intake Service. translator may be nil to disable
// server-side translation.
func New(st ContactStore, mailer email.Sender, translator translate.Translator, logger *slog.Logger) *Service {
	return &Service{
		store:      st,
		mailer:     mailer,
		translator: translator,
		logger:     logger,
	}
}

// ─── UPSERT WORKFLOW ─────────────────────────────────────────────────────────

// Upsert persists one submission, keyed by email: an existing row is
// overwritten in place, otherwise a new row is created. On success the
// operator notification is sent; its failure (and the post-write verification
// read's) is logged but does not fail the save.
//
// Validation failures return ErrInvalidEmail or ErrEmptyVoiceInput before any
// store call. A lookup failure other than "not found" aborts without guessing
// between insert and update.
func (s *Service) Upsert(ctx context.Context, p UpsertParams) (UpsertResult, error) {
	if err := ValidateSubmission(p.Email, p.VoiceInput); err != nil {
		return UpsertResult{}, err
	}

	lock := s.lockFor(p.Email)
	lock.Lock()
	defer lock.Unlock()

	translation := s.resolveTranslation(ctx, p)

	saved, op, err := s.persist(ctx, p, translation)
	if err != nil {
		return UpsertResult{}, err
	}

	log := s.logger.With("contact_id", saved.ID, "email", saved.Email, "operation", op)
	log.Info("intake: submission saved")

	// Verification read. Failure here means the row is not readable through
	// the normal path — worth an alert, not worth failing a durable save.
	if _, err := s.store.FindByID(ctx, saved.ID); err != nil {
		log.Error("intake: post-save verification read failed", "error", err)
	}

	if err := s.mailer.SendVoiceNotification(ctx, email.NotificationParams{
		RecordID:           saved.ID.String(),
		Email:              saved.Email,
		VoiceInput:         saved.VoiceInput,
		EnglishTranslation: saved.EnglishTranslation.String,
		RecordedAt:         saved.CreatedAt,
	}); err != nil {
		log.Error("intake: notification send failed", "error", err)
	}

	return UpsertResult{Contact: saved, Operation: op}, nil
}

// persist runs the lookup-then-branch write and returns the row as stored.
func (s *Service) persist(ctx context.Context, p UpsertParams, translation string) (store.Contact, Operation, error) {
	existing, err := s.store.FindByEmail(ctx, p.Email)
	switch {
	case err == nil:
		updated, err := s.store.Update(ctx, store.UpdateContactParams{
			ID:                 existing.ID,
			VoiceInput:         p.VoiceInput,
			EnglishTranslation: nullString(translation),
		})
		if err != nil {
			return store.Contact{}, "", fmt.Errorf("intake: update contact: %w", err)
		}
		return updated, OperationUpdate, nil

	case errors.Is(err, store.ErrNotFound):
		inserted, err := s.store.Insert(ctx, store.InsertContactParams{
			Email:              p.Email,
			VoiceInput:         p.VoiceInput,
			EnglishTranslation: nullString(translation),
		})
		if err != nil {
			return store.Contact{}, "", fmt.Errorf("intake: insert contact: %w", err)
		}
		return inserted, OperationInsert, nil

	default:
		// The backend itself failed — abort rather than guess which branch
		// would have been right.
		return store.Contact{}, "", fmt.Errorf("intake: lookup by email: %w", err)
	}
}

// resolveTranslation returns the English translation to store, or "" when the
// capture was already English or translation is unavailable. A translator
// failure degrades to no translation; the original transcript is what matters.
func (s *Service) resolveTranslation(ctx context.Context, p UpsertParams) string {
	if p.EnglishTranslation != "" {
		return p.EnglishTranslation
	}
	if s.translator == nil || p.Language == "" || isEnglish(p.Language) {
		return ""
	}

	translated, err := s.translator.Translate(ctx, p.VoiceInput, "en")
	if err != nil {
		s.logger.Warn("intake: translation failed, storing original only",
			"language", p.Language,
			"error", err,
		)
		return ""
	}
	return translated
}

// ─── CLEANUP ─────────────────────────────────────────────────────────────────

// Cleanup deletes every stored row that fails submission validation (empty
// transcript, empty or malformed email) and reports what went away. Rows that
// validate are untouched.
func (s *Service) Cleanup(ctx context.Context) (CleanupResult, error) {
	contacts, err := s.store.ListAll(ctx)
	if err != nil {
		return CleanupResult{}, fmt.Errorf("intake: cleanup listing: %w", err)
	}

	var invalid []uuid.UUID
	for _, c := range contacts {
		if !IsValidRecord(c) {
			invalid = append(invalid, c.ID)
		}
	}

	deleted, err := s.store.DeleteByIDs(ctx, invalid)
	if err != nil {
		return CleanupResult{}, fmt.Errorf("intake: cleanup delete: %w", err)
	}

	s.logger.Info("intake: cleanup completed",
		"examined", len(contacts),
		"deleted", deleted,
	)

	return CleanupResult{
		Examined:   len(contacts),
		Deleted:    deleted,
		DeletedIDs: invalid,
	}, nil
}

// ─── HELPERS ─────────────────────────────────────────────────────────────────

func (s *Service) lockFor(emailAddr string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(emailAddr))
	return &s.emailLocks[h.Sum32()%uint32(len(s.emailLocks))]
}

func isEnglish(lang string) bool {
	return strings.HasPrefix(strings.ToLower(lang), "en")
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
