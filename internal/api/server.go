// Package api implements the HTTP layer for the voice intake backend.
// Handlers are methods on *Server. Each handler file is responsible for one
// resource group and only imports the dependencies it actually uses.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/baronlegal/voice-intake-backend/internal/dispatch"
	"github.com/baronlegal/voice-intake-backend/internal/email"
	"github.com/baronlegal/voice-intake-backend/internal/intake"
	"github.com/baronlegal/voice-intake-backend/internal/store"
)

// Config holds values read from environment variables at startup.
type Config struct {
	// AllowedOrigin is the frontend origin allowed by CORS in production.
	AllowedOrigin string

	// Env is "production", "staging", or "development".
	Env string
}

// ─── DEPENDENCY INTERFACES ───────────────────────────────────────────────────
//
// Each is the narrow slice of a workflow or the store that the handlers use.
// The concrete implementations are *intake.Service, *dispatch.Batcher, and
// *store.Store; tests inject stubs.

// IntakeService runs the single-record upsert workflow and the validation
// cleanup sweep.
type IntakeService interface {
	Upsert(ctx context.Context, p intake.UpsertParams) (intake.UpsertResult, error)
	Cleanup(ctx context.Context) (intake.CleanupResult, error)
}

// BatchDispatcher runs a bulk notification batch.
type BatchDispatcher interface {
	DispatchAll(ctx context.Context, scope dispatch.Scope) (dispatch.BatchResult, error)
}

// ContactStore is the read/audit slice of the store the handlers use
// directly: admin listings, the point lookup behind a single re-send, and
// the dispatch-run audit log.
type ContactStore interface {
	ListAll(ctx context.Context) ([]store.Contact, error)
	ListByEmail(ctx context.Context, email string) ([]store.Contact, error)
	FindByID(ctx context.Context, id uuid.UUID) (store.Contact, error)
	RecordDispatchRun(ctx context.Context, p store.RecordDispatchRunParams) (store.DispatchRun, error)
	ListDispatchRuns(ctx context.Context, limit int) ([]store.DispatchRun, error)
}

// Server holds all shared dependencies. Each handler file attaches methods to
// this type and uses only the fields it needs.
type Server struct {
	intake   IntakeService
	batcher  BatchDispatcher
	contacts ContactStore
	mailer   email.Sender

	cfg    Config
	logger *slog.Logger
}

// NewServer constructs the Server and wires the chi router. The returned
// http.Handler is ready to pass to http.ListenAndServe.
func NewServer(
	intakeSvc IntakeService,
	batcher BatchDispatcher,
	contacts ContactStore,
	mailer email.Sender,
	cfg Config,
	logger *slog.Logger,
) http.Handler {
	s := &Server{
		intake:   intakeSvc,
		batcher:  batcher,
		contacts: contacts,
		mailer:   mailer,
		cfg:      cfg,
		logger:   logger,
	}

	return s.routes()
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	// ── Global middleware ─────────────────────────────────────────────────────
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggerMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(s.corsMiddleware)

	// ── Health ────────────────────────────────────────────────────────────────
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// ── API ───────────────────────────────────────────────────────────────────
	r.Route("/api", func(r chi.Router) {

		// Interactive routes get a normal request timeout.
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(30 * time.Second))

			r.Post("/intake", s.handleIntake)
			r.Get("/contacts", s.handleListContacts)
			r.Post("/contacts/cleanup", s.handleCleanup)
			r.Post("/contacts/{contactID}/send", s.handleResendContact)
			r.Get("/dispatch/runs", s.handleListDispatchRuns)
		})

		// A bulk dispatch holds the request open for the whole throttled
		// batch, so it gets its own generous deadline.
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(15 * time.Minute))

			r.Post("/dispatch", s.handleDispatch)
		})
	})

	return r
}
