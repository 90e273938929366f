package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/baronlegal/voice-intake-backend/internal/email"
	"github.com/baronlegal/voice-intake-backend/internal/store"
)

// ─── GET /api/contacts ───────────────────────────────────────────────────────

type listContactsResponse struct {
	Contacts []contactResponse `json:"contacts"`
	Total    int               `json:"total"`
}

// handleListContacts serves the admin listing, newest first. An optional
// ?email= query narrows it to one submitter's records.
func (s *Server) handleListContacts(w http.ResponseWriter, r *http.Request) {
	var (
		contacts []store.Contact
		err      error
	)

	if emailAddr := r.URL.Query().Get("email"); emailAddr != "" {
		contacts, err = s.contacts.ListByEmail(r.Context(), emailAddr)
	} else {
		contacts, err = s.contacts.ListAll(r.Context())
	}
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("list contacts: %w", err))
		return
	}

	resp := listContactsResponse{
		Contacts: make([]contactResponse, len(contacts)),
		Total:    len(contacts),
	}
	for i, c := range contacts {
		resp.Contacts[i] = toContactResponse(c)
	}

	respond(w, http.StatusOK, resp)
}

// ─── POST /api/contacts/{contactID}/send ─────────────────────────────────────

// handleResendContact re-sends the operator notification for one stored
// record. This is the manual retry path — nothing in the system retries
// automatically.
func (s *Server) handleResendContact(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUID(chi.URLParam(r, "contactID"))
	if err != nil {
		respondErr(w, http.StatusBadRequest, "invalid contact id")
		return
	}

	contact, err := s.contacts.FindByID(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		respondErr(w, http.StatusNotFound, "contact not found")
		return
	}
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("find contact: %w", err))
		return
	}

	err = s.mailer.SendVoiceNotification(r.Context(), email.NotificationParams{
		RecordID:           contact.ID.String(),
		Email:              contact.Email,
		VoiceInput:         contact.VoiceInput,
		EnglishTranslation: contact.EnglishTranslation.String,
		RecordedAt:         contact.CreatedAt,
	})
	switch {
	case errors.Is(err, email.ErrInvalidRecord):
		// The row itself is malformed for notification purposes. The stored
		// data is untouched — cleanup is the tool for getting rid of it.
		respondErr(w, http.StatusUnprocessableEntity, err.Error())
		return
	case err != nil:
		s.logger.Error("resend: delivery failed",
			"contact_id", contact.ID,
			"error", err,
		)
		respondErr(w, http.StatusBadGateway, "notification delivery failed: "+err.Error())
		return
	}

	respond(w, http.StatusOK, map[string]string{
		"contact_id": contact.ID.String(),
		"status":     "sent",
	})
}

// ─── POST /api/contacts/cleanup ──────────────────────────────────────────────

type cleanupResponse struct {
	Examined   int      `json:"examined"`
	Deleted    int64    `json:"deleted"`
	DeletedIDs []string `json:"deleted_ids"`
}

// handleCleanup deletes every stored row that fails submission validation.
func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	result, err := s.intake.Cleanup(r.Context())
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("cleanup: %w", err))
		return
	}

	ids := make([]string, len(result.DeletedIDs))
	for i, id := range result.DeletedIDs {
		ids[i] = id.String()
	}

	respond(w, http.StatusOK, cleanupResponse{
		Examined:   result.Examined,
		Deleted:    result.Deleted,
		DeletedIDs: ids,
	})
}
