package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/baronlegal/voice-intake-backend/internal/intake"
	"github.com/baronlegal/voice-intake-backend/internal/store"
)

// ─── POST /api/intake ────────────────────────────────────────────────────────

type intakeRequest struct {
	Email      string `json:"email"`
	VoiceInput string `json:"voice_input"`

	// Language is the capture language tag from the browser's speech
	// recognition, e.g. "en-US". Optional; defaults to English behaviour.
	Language string `json:"language,omitempty"`

	// EnglishTranslation is set when the browser already translated the
	// transcript. Optional.
	EnglishTranslation string `json:"english_translation,omitempty"`
}

type contactResponse struct {
	ID                 string `json:"id"`
	Email              string `json:"email"`
	VoiceInput         string `json:"voice_input"`
	EnglishTranslation string `json:"english_translation,omitempty"`
	CreatedAt          string `json:"created_at"`
	UpdatedAt          string `json:"updated_at"`
}

type intakeResponse struct {
	Contact   contactResponse `json:"contact"`
	Operation string          `json:"operation"`
}

// handleIntake persists one captured transcript, keyed by the submitter's
// email. 201 when a new row was created, 200 when an existing row was
// overwritten. The operator notification is fired inside the workflow; its
// outcome does not change the response.
func (s *Server) handleIntake(w http.ResponseWriter, r *http.Request) {
	var req intakeRequest
	if !decode(w, r, &req) {
		return
	}

	result, err := s.intake.Upsert(r.Context(), intake.UpsertParams{
		Email:              req.Email,
		VoiceInput:         req.VoiceInput,
		Language:           req.Language,
		EnglishTranslation: req.EnglishTranslation,
	})
	switch {
	case errors.Is(err, intake.ErrInvalidEmail), errors.Is(err, intake.ErrEmptyVoiceInput):
		respondErr(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		s.respondInternalErr(w, r, fmt.Errorf("intake upsert: %w", err))
		return
	}

	status := http.StatusOK
	if result.Operation == intake.OperationInsert {
		status = http.StatusCreated
	}

	respond(w, status, intakeResponse{
		Contact:   toContactResponse(result.Contact),
		Operation: string(result.Operation),
	})
}

func toContactResponse(c store.Contact) contactResponse {
	return contactResponse{
		ID:                 c.ID.String(),
		Email:              c.Email,
		VoiceInput:         c.VoiceInput,
		EnglishTranslation: c.EnglishTranslation.String,
		CreatedAt:          c.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:          c.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
