// Package ocr defines the plate-reading capability and the sequential model
// fallback used by the plate resolver. Backends are tried in priority order,
// each at most once per call; exhausting the chain yields the "error"
// sentinel rather than an error, so an unreadable image is a terminal
// outcome, not a pipeline fault.
package ocr

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// SentinelError is returned as plate text when every backend fails.
const SentinelError = "error"

// Reader reads plate text off an image file using one named model.
type Reader interface {
	// Model identifies the backend (e.g. "gemini-2.0-flash", "tesseract").
	Model() string
	ReadPlate(ctx context.Context, imagePath string) (string, error)
}

// AttemptError is the typed failure of a single backend attempt.
type AttemptError struct {
	Model string
	Err   error
}

func (e *AttemptError) Error() string {
	return fmt.Sprintf("ocr model %s: %v", e.Model, e.Err)
}

func (e *AttemptError) Unwrap() error { return e.Err }

// Chain tries each reader in order and stops at the first usable response.
type Chain struct {
	readers []Reader
	log     zerolog.Logger
}

func NewChain(log zerolog.Logger, readers ...Reader) *Chain {
	return &Chain{readers: readers, log: log}
}

// Models lists the configured backends in priority order.
func (c *Chain) Models() []string {
	models := make([]string, len(c.readers))
	for i, r := range c.readers {
		models[i] = r.Model()
	}
	return models
}

// ReadPlate returns the sanitized plate text and the model that produced it.
// Each backend is attempted once; failures are logged and the next backend
// is tried. Exhaustion returns (SentinelError, "").
func (c *Chain) ReadPlate(ctx context.Context, imagePath string) (string, string) {
	for _, r := range c.readers {
		text, err := r.ReadPlate(ctx, imagePath)
		if err != nil {
			attempt := &AttemptError{Model: r.Model(), Err: err}
			c.log.Warn().Err(attempt).Str("image", imagePath).Msg("ocr attempt failed")
			continue
		}
		c.log.Debug().Str("model", r.Model()).Str("image", imagePath).Msg("ocr attempt succeeded")
		return sanitize(text), r.Model()
	}
	c.log.Error().Str("image", imagePath).Msg("all ocr models failed")
	return SentinelError, ""
}

// sanitize reduces a raw model response to plate text: the first line longer
// than three characters, or "unreadable" when the response has none or says
// so itself.
func sanitize(response string) string {
	response = strings.TrimSpace(response)
	if strings.Contains(strings.ToLower(response), "unreadable") {
		return "unreadable"
	}
	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		if len(line) > 3 {
			return line
		}
	}
	return "unreadable"
}
