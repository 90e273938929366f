// Package translate defines the interface for transcript translation and
// provides a Google Translate v2 implementation.
package translate

import "context"

// Translator turns a transcript in the capture language into English.
// The intake workflow treats a translation failure as non-fatal and stores
// the original text without a translation.
type Translator interface {
	// Translate returns text rendered in the target language code (e.g. "en").
	Translate(ctx context.Context, text, targetLang string) (string, error)
}
