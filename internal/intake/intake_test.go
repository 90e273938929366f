package intake_test

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/baronlegal/voice-intake-backend/internal/email"
	"github.com/baronlegal/voice-intake-backend/internal/intake"
	"github.com/baronlegal/voice-intake-backend/internal/store"
)

// ─── STUBS ────────────────────────────────────────────────────────────────────

// stubStore satisfies intake.ContactStore with in-memory state. Per-method
// call counters back the "zero store calls on validation failure" assertions;
// error fields may be set per-test to force failures.
type stubStore struct {
	contacts map[uuid.UUID]store.Contact

	findByEmailCalls int
	findByIDCalls    int
	insertCalls      int
	updateCalls      int
	listAllCalls     int
	deleteCalls      int

	findByEmailErr error
	findByIDErr    error
	insertErr      error
	updateErr      error
	listAllErr     error
	deleteErr      error

	deletedIDs []uuid.UUID
}

func newStubStore() *stubStore {
	return &stubStore{contacts: make(map[uuid.UUID]store.Contact)}
}

func (s *stubStore) add(c store.Contact) store.Contact {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	s.contacts[c.ID] = c
	return c
}

func (s *stubStore) totalCalls() int {
	return s.findByEmailCalls + s.findByIDCalls + s.insertCalls +
		s.updateCalls + s.listAllCalls + s.deleteCalls
}

func (s *stubStore) FindByEmail(_ context.Context, emailAddr string) (store.Contact, error) {
	s.findByEmailCalls++
	if s.findByEmailErr != nil {
		return store.Contact{}, s.findByEmailErr
	}
	for _, c := range s.contacts {
		if c.Email == emailAddr {
			return c, nil
		}
	}
	return store.Contact{}, store.ErrNotFound
}

func (s *stubStore) FindByID(_ context.Context, id uuid.UUID) (store.Contact, error) {
	s.findByIDCalls++
	if s.findByIDErr != nil {
		return store.Contact{}, s.findByIDErr
	}
	c, ok := s.contacts[id]
	if !ok {
		return store.Contact{}, store.ErrNotFound
	}
	return c, nil
}

func (s *stubStore) Insert(_ context.Context, p store.InsertContactParams) (store.Contact, error) {
	s.insertCalls++
	if s.insertErr != nil {
		return store.Contact{}, s.insertErr
	}
	now := time.Now()
	c := store.Contact{
		ID:                 uuid.New(),
		Email:              p.Email,
		VoiceInput:         p.VoiceInput,
		EnglishTranslation: p.EnglishTranslation,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	s.contacts[c.ID] = c
	return c, nil
}

func (s *stubStore) Update(_ context.Context, p store.UpdateContactParams) (store.Contact, error) {
	s.updateCalls++
	if s.updateErr != nil {
		return store.Contact{}, s.updateErr
	}
	c, ok := s.contacts[p.ID]
	if !ok {
		return store.Contact{}, store.ErrNotFound
	}
	c.VoiceInput = p.VoiceInput
	c.EnglishTranslation = p.EnglishTranslation
	c.UpdatedAt = time.Now()
	s.contacts[p.ID] = c
	return c, nil
}

func (s *stubStore) ListAll(_ context.Context) ([]store.Contact, error) {
	s.listAllCalls++
	if s.listAllErr != nil {
		return nil, s.listAllErr
	}
	var out []store.Contact
	for _, c := range s.contacts {
		out = append(out, c)
	}
	return out, nil
}

func (s *stubStore) DeleteByIDs(_ context.Context, ids []uuid.UUID) (int64, error) {
	s.deleteCalls++
	if s.deleteErr != nil {
		return 0, s.deleteErr
	}
	var deleted int64
	for _, id := range ids {
		if _, ok := s.contacts[id]; ok {
			delete(s.contacts, id)
			deleted++
		}
	}
	s.deletedIDs = append(s.deletedIDs, ids...)
	return deleted, nil
}

// stubMailer captures sent notifications.
type stubMailer struct {
	sent []email.NotificationParams
	err  error
}

func (m *stubMailer) SendVoiceNotification(_ context.Context, p email.NotificationParams) error {
	m.sent = append(m.sent, p)
	return m.err
}

// stubTranslator returns a canned translation or a forced error.
type stubTranslator struct {
	result string
	err    error
	calls  int
}

func (t *stubTranslator) Translate(_ context.Context, text, _ string) (string, error) {
	t.calls++
	if t.err != nil {
		return "", t.err
	}
	if t.result != "" {
		return t.result, nil
	}
	return text, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ─── VALIDATION SHORT-CIRCUIT ─────────────────────────────────────────────────

func TestUpsert_MalformedEmailMakesNoStoreCall(t *testing.T) {
	st := newStubStore()
	ml := &stubMailer{}
	svc := intake.New(st, ml, nil, discardLogger())

	_, err := svc.Upsert(context.Background(), intake.UpsertParams{
		Email:      "not-an-email",
		VoiceInput: "hello",
	})
	if !errors.Is(err, intake.ErrInvalidEmail) {
		t.Fatalf("expected ErrInvalidEmail, got: %v", err)
	}
	if st.totalCalls() != 0 {
		t.Errorf("expected zero store calls, got %d", st.totalCalls())
	}
	if len(ml.sent) != 0 {
		t.Errorf("expected no notification, got %d", len(ml.sent))
	}
}

func TestUpsert_EmptyVoiceInputMakesNoStoreCall(t *testing.T) {
	st := newStubStore()
	svc := intake.New(st, &stubMailer{}, nil, discardLogger())

	_, err := svc.Upsert(context.Background(), intake.UpsertParams{
		Email:      "a@x.com",
		VoiceInput: "",
	})
	if !errors.Is(err, intake.ErrEmptyVoiceInput) {
		t.Fatalf("expected ErrEmptyVoiceInput, got: %v", err)
	}
	if st.totalCalls() != 0 {
		t.Errorf("expected zero store calls, got %d", st.totalCalls())
	}
}

// ─── INSERT / UPDATE BRANCHING ────────────────────────────────────────────────

func TestUpsert_NewEmailInserts(t *testing.T) {
	st := newStubStore()
	ml := &stubMailer{}
	svc := intake.New(st, ml, nil, discardLogger())

	result, err := svc.Upsert(context.Background(), intake.UpsertParams{
		Email:      "a@x.com",
		VoiceInput: "hello",
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if result.Operation != intake.OperationInsert {
		t.Errorf("expected operation=insert, got %s", result.Operation)
	}
	if result.Contact.VoiceInput != "hello" {
		t.Errorf("voice input: got %q", result.Contact.VoiceInput)
	}
	if st.insertCalls != 1 || st.updateCalls != 0 {
		t.Errorf("calls: insert=%d update=%d", st.insertCalls, st.updateCalls)
	}
}

func TestUpsert_ExistingEmailUpdatesSameRow(t *testing.T) {
	st := newStubStore()
	ml := &stubMailer{}
	svc := intake.New(st, ml, nil, discardLogger())

	first, err := svc.Upsert(context.Background(), intake.UpsertParams{
		Email:      "a@x.com",
		VoiceInput: "hello",
	})
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	second, err := svc.Upsert(context.Background(), intake.UpsertParams{
		Email:      "a@x.com",
		VoiceInput: "goodbye",
	})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	if second.Operation != intake.OperationUpdate {
		t.Errorf("expected operation=update, got %s", second.Operation)
	}
	if second.Contact.ID != first.Contact.ID {
		t.Errorf("row id changed across upserts: %s vs %s", first.Contact.ID, second.Contact.ID)
	}
	if second.Contact.VoiceInput != "goodbye" {
		t.Errorf("voice input: got %q", second.Contact.VoiceInput)
	}

	// Idempotent convergence: still exactly one row for the email.
	if len(st.contacts) != 1 {
		t.Errorf("expected exactly one stored row, got %d", len(st.contacts))
	}
}

func TestUpsert_LookupBackendFailureAborts(t *testing.T) {
	st := newStubStore()
	st.findByEmailErr = errors.New("connection refused")
	svc := intake.New(st, &stubMailer{}, nil, discardLogger())

	_, err := svc.Upsert(context.Background(), intake.UpsertParams{
		Email:      "a@x.com",
		VoiceInput: "hello",
	})
	if err == nil {
		t.Fatal("expected error from failed lookup")
	}
	// Must not guess insert vs update when the lookup itself failed.
	if st.insertCalls != 0 || st.updateCalls != 0 {
		t.Errorf("expected no write after failed lookup, got insert=%d update=%d",
			st.insertCalls, st.updateCalls)
	}
}

// ─── NOTIFICATION ─────────────────────────────────────────────────────────────

func TestUpsert_SendsExactlyOneNotification(t *testing.T) {
	st := newStubStore()
	ml := &stubMailer{}
	svc := intake.New(st, ml, nil, discardLogger())

	result, err := svc.Upsert(context.Background(), intake.UpsertParams{
		Email:      "a@x.com",
		VoiceInput: "hello there",
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	if len(ml.sent) != 1 {
		t.Fatalf("expected exactly one notification, got %d", len(ml.sent))
	}
	sent := ml.sent[0]
	if sent.Email != "a@x.com" {
		t.Errorf("notification email: got %q", sent.Email)
	}
	if sent.VoiceInput != "hello there" {
		t.Errorf("notification transcript: got %q", sent.VoiceInput)
	}
	if sent.RecordID != result.Contact.ID.String() {
		t.Errorf("notification record id: got %q, want %q", sent.RecordID, result.Contact.ID)
	}
}

func TestUpsert_NotificationFailureDoesNotFailSave(t *testing.T) {
	st := newStubStore()
	ml := &stubMailer{err: errors.New("provider down")}
	svc := intake.New(st, ml, nil, discardLogger())

	result, err := svc.Upsert(context.Background(), intake.UpsertParams{
		Email:      "a@x.com",
		VoiceInput: "hello",
	})
	if err != nil {
		t.Fatalf("save should succeed despite mailer failure: %v", err)
	}
	if _, ok := st.contacts[result.Contact.ID]; !ok {
		t.Error("row should be persisted")
	}
}

func TestUpsert_VerificationFailureDoesNotFailSave(t *testing.T) {
	st := newStubStore()
	st.findByIDErr = errors.New("read replica lagging")
	ml := &stubMailer{}
	svc := intake.New(st, ml, nil, discardLogger())

	_, err := svc.Upsert(context.Background(), intake.UpsertParams{
		Email:      "a@x.com",
		VoiceInput: "hello",
	})
	if err != nil {
		t.Fatalf("save should succeed despite verification failure: %v", err)
	}
	if st.findByIDCalls != 1 {
		t.Errorf("expected one verification read, got %d", st.findByIDCalls)
	}
	// Notification still goes out — verification is diagnostic only.
	if len(ml.sent) != 1 {
		t.Errorf("expected notification despite verification failure, got %d", len(ml.sent))
	}
}

// ─── TRANSLATION ──────────────────────────────────────────────────────────────

func TestUpsert_NonEnglishCaptureGetsTranslated(t *testing.T) {
	st := newStubStore()
	tr := &stubTranslator{result: "where is my hearing date"}
	svc := intake.New(st, &stubMailer{}, tr, discardLogger())

	result, err := svc.Upsert(context.Background(), intake.UpsertParams{
		Email:      "a@x.com",
		VoiceInput: "dónde está mi fecha de audiencia",
		Language:   "es-MX",
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if tr.calls != 1 {
		t.Errorf("expected one translate call, got %d", tr.calls)
	}
	if result.Contact.EnglishTranslation.String != "where is my hearing date" {
		t.Errorf("translation: got %q", result.Contact.EnglishTranslation.String)
	}
}

func TestUpsert_EnglishCaptureSkipsTranslator(t *testing.T) {
	st := newStubStore()
	tr := &stubTranslator{}
	svc := intake.New(st, &stubMailer{}, tr, discardLogger())

	result, err := svc.Upsert(context.Background(), intake.UpsertParams{
		Email:      "a@x.com",
		VoiceInput: "hello",
		Language:   "en-US",
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if tr.calls != 0 {
		t.Errorf("expected no translate call, got %d", tr.calls)
	}
	if result.Contact.EnglishTranslation.Valid {
		t.Errorf("expected no stored translation, got %q", result.Contact.EnglishTranslation.String)
	}
}

func TestUpsert_TranslationFailureStoresOriginalOnly(t *testing.T) {
	st := newStubStore()
	tr := &stubTranslator{err: errors.New("quota exceeded")}
	svc := intake.New(st, &stubMailer{}, tr, discardLogger())

	result, err := svc.Upsert(context.Background(), intake.UpsertParams{
		Email:      "a@x.com",
		VoiceInput: "bonjour",
		Language:   "fr-FR",
	})
	if err != nil {
		t.Fatalf("translation failure must not fail the save: %v", err)
	}
	if result.Contact.VoiceInput != "bonjour" {
		t.Errorf("original transcript: got %q", result.Contact.VoiceInput)
	}
	if result.Contact.EnglishTranslation.Valid {
		t.Errorf("expected no translation after failure, got %q", result.Contact.EnglishTranslation.String)
	}
}

func TestUpsert_BrowserTranslationWinsOverTranslator(t *testing.T) {
	st := newStubStore()
	tr := &stubTranslator{result: "server translation"}
	svc := intake.New(st, &stubMailer{}, tr, discardLogger())

	result, err := svc.Upsert(context.Background(), intake.UpsertParams{
		Email:              "a@x.com",
		VoiceInput:         "hola",
		Language:           "es-ES",
		EnglishTranslation: "hello from the browser",
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if tr.calls != 0 {
		t.Errorf("translator should not be called when a translation was supplied, got %d calls", tr.calls)
	}
	if result.Contact.EnglishTranslation.String != "hello from the browser" {
		t.Errorf("translation: got %q", result.Contact.EnglishTranslation.String)
	}
}

// ─── CLEANUP ──────────────────────────────────────────────────────────────────

func TestCleanup_DeletesInvalidRetainsValid(t *testing.T) {
	st := newStubStore()
	emptyTranscript := st.add(store.Contact{Email: "no-voice@x.com", VoiceInput: ""})
	badEmail := st.add(store.Contact{Email: "bad", VoiceInput: "something"})
	valid := st.add(store.Contact{Email: "ok@x.com", VoiceInput: "fine"})

	svc := intake.New(st, &stubMailer{}, nil, discardLogger())

	result, err := svc.Cleanup(context.Background())
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}

	if result.Examined != 3 {
		t.Errorf("examined: got %d, want 3", result.Examined)
	}
	if result.Deleted != 2 {
		t.Errorf("deleted: got %d, want 2", result.Deleted)
	}
	if _, ok := st.contacts[valid.ID]; !ok {
		t.Error("valid row must be retained")
	}
	for _, id := range []uuid.UUID{emptyTranscript.ID, badEmail.ID} {
		if _, ok := st.contacts[id]; ok {
			t.Errorf("invalid row %s must be deleted", id)
		}
	}
}

func TestCleanup_ListingFailureRaises(t *testing.T) {
	st := newStubStore()
	st.listAllErr = errors.New("connection reset")
	svc := intake.New(st, &stubMailer{}, nil, discardLogger())

	_, err := svc.Cleanup(context.Background())
	if err == nil || !strings.Contains(err.Error(), "cleanup listing") {
		t.Fatalf("expected listing error, got: %v", err)
	}
	if st.deleteCalls != 0 {
		t.Errorf("expected no delete after failed listing, got %d", st.deleteCalls)
	}
}

func TestCleanup_NothingInvalidDeletesNothing(t *testing.T) {
	st := newStubStore()
	st.add(store.Contact{Email: "ok@x.com", VoiceInput: "fine"})
	svc := intake.New(st, &stubMailer{}, nil, discardLogger())

	result, err := svc.Cleanup(context.Background())
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if result.Deleted != 0 {
		t.Errorf("deleted: got %d, want 0", result.Deleted)
	}
	if len(st.contacts) != 1 {
		t.Errorf("contacts remaining: got %d, want 1", len(st.contacts))
	}
}

// Translation stored via sql.NullString round-trips through the update branch
// the same as the insert branch.
func TestUpsert_UpdateReplacesTranslation(t *testing.T) {
	st := newStubStore()
	svc := intake.New(st, &stubMailer{}, nil, discardLogger())

	if _, err := svc.Upsert(context.Background(), intake.UpsertParams{
		Email:              "a@x.com",
		VoiceInput:         "hola",
		EnglishTranslation: "hello",
	}); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	second, err := svc.Upsert(context.Background(), intake.UpsertParams{
		Email:      "a@x.com",
		VoiceInput: "hello directly in english",
	})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if second.Contact.EnglishTranslation != (sql.NullString{}) {
		t.Errorf("stale translation must be cleared on update, got %+v", second.Contact.EnglishTranslation)
	}
}
