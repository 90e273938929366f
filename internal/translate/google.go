package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultEndpoint = "https://translation.googleapis.com/language/translate/v2"

// googleClient is the concrete Translator backed by the Google Translate v2
// REST API.
type googleClient struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
}

// NewGoogleClient returns a Translator that calls the Google Translate API.
func NewGoogleClient(apiKey string) Translator {
	return &googleClient{
		apiKey:   apiKey,
		endpoint: defaultEndpoint,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// ─── GOOGLE API SHAPES ───────────────────────────────────────────────────────

type googleRequest struct {
	Q      string `json:"q"`
	Target string `json:"target"`
}

type googleResponse struct {
	Data struct {
		Translations []struct {
			TranslatedText string `json:"translatedText"`
		} `json:"translations"`
	} `json:"data"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ─── IMPLEMENTATION ──────────────────────────────────────────────────────────

// Translate posts the text to the v2 endpoint and returns the first
// translation in the response.
func (c *googleClient) Translate(ctx context.Context, text, targetLang string) (string, error) {
	bodyBytes, err := json.Marshal(googleRequest{Q: text, Target: targetLang})
	if err != nil {
		return "", fmt.Errorf("translate: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.endpoint+"?key="+c.apiKey, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("translate: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("translate: http request: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("translate: read response: %w", err)
	}

	var parsed googleResponse
	if err := json.Unmarshal(respBytes, &parsed); err != nil {
		return "", fmt.Errorf("translate: unmarshal response (status %d): %w", resp.StatusCode, err)
	}

	if parsed.Error != nil {
		return "", fmt.Errorf("translate: Google error %d: %s", parsed.Error.Code, parsed.Error.Message)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("translate: unexpected status %d: %.200s", resp.StatusCode, string(respBytes))
	}

	if len(parsed.Data.Translations) == 0 {
		return "", fmt.Errorf("translate: empty translations in response")
	}

	return parsed.Data.Translations[0].TranslatedText, nil
}
