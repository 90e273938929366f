package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultEndpoint = "https://api.emailjs.com/api/v1.0/email/send"

// emailJSClient is the concrete Sender backed by the EmailJS REST API.
type emailJSClient struct {
	serviceID  string
	templateID string
	publicKey  string
	toAddr     string // operator inbox, e.g. "intake@baronfamilylaw.ca"
	fromName   string // e.g. "Family Law Assistant"
	endpoint   string
	httpClient *http.Client
}

// NewEmailJSClient returns a Sender that delivers notifications through an
// EmailJS service/template pair. The template is expected to reference the
// fields of templateParams below.
func NewEmailJSClient(serviceID, templateID, publicKey, toAddr, fromName string) Sender {
	return &emailJSClient{
		serviceID:  serviceID,
		templateID: templateID,
		publicKey:  publicKey,
		toAddr:     toAddr,
		fromName:   fromName,
		endpoint:   defaultEndpoint,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// ─── EMAILJS API SHAPES ──────────────────────────────────────────────────────

type emailJSRequest struct {
	ServiceID      string         `json:"service_id"`
	TemplateID     string         `json:"template_id"`
	UserID         string         `json:"user_id"`
	TemplateParams templateParams `json:"template_params"`
}

type templateParams struct {
	ToEmail       string `json:"to_email"`
	FromName      string `json:"from_name"`
	Question      string `json:"question"`
	Answer        string `json:"answer"`
	Timestamp     string `json:"timestamp"`
	RecordID      string `json:"record_id,omitempty"`
	OriginalEmail string `json:"original_email,omitempty"`
}

// ─── SENDER IMPLEMENTATION ───────────────────────────────────────────────────

// SendVoiceNotification builds the fixed-shape template message and posts it
// to EmailJS. A record missing email or voice input fails fast with
// ErrInvalidRecord before any network traffic.
func (c *emailJSClient) SendVoiceNotification(ctx context.Context, p NotificationParams) error {
	if p.Email == "" || p.VoiceInput == "" {
		return fmt.Errorf("%w (record_id=%s)", ErrInvalidRecord, p.RecordID)
	}

	answer := p.VoiceInput
	if p.EnglishTranslation != "" {
		answer = fmt.Sprintf("Original:\n%s\n\nEnglish translation:\n%s",
			p.VoiceInput, p.EnglishTranslation)
	}

	recordedAt := p.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = time.Now()
	}

	reqBody := emailJSRequest{
		ServiceID:  c.serviceID,
		TemplateID: c.templateID,
		UserID:     c.publicKey,
		TemplateParams: templateParams{
			ToEmail:       c.toAddr,
			FromName:      c.fromName,
			Question:      "Voice Recording from " + p.Email,
			Answer:        answer,
			Timestamp:     recordedAt.Format("1/2/2006, 3:04:05 PM"),
			RecordID:      p.RecordID,
			OriginalEmail: p.Email,
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("email: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint,
		bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("email: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("email: http request: %w", err)
	}
	defer resp.Body.Close()

	// EmailJS answers with a plain-text body ("OK" on success, the provider
	// message on failure) rather than JSON.
	respBytes, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return fmt.Errorf("email: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("email: EmailJS status %d: %.200s", resp.StatusCode, string(respBytes))
	}

	return nil
}
