package ocr

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

type fakeReader struct {
	model string
	text  string
	err   error
	calls int
}

func (f *fakeReader) Model() string { return f.model }

func (f *fakeReader) ReadPlate(context.Context, string) (string, error) {
	f.calls++
	return f.text, f.err
}

func TestChainFirstSuccessWins(t *testing.T) {
	primary := &fakeReader{model: "gemini-2.0-flash", text: "KA01AB1234"}
	backup := &fakeReader{model: "tesseract", text: "never"}
	chain := NewChain(zerolog.Nop(), primary, backup)

	text, model := chain.ReadPlate(context.Background(), "x.jpg")
	if text != "KA01AB1234" || model != "gemini-2.0-flash" {
		t.Fatalf("got (%q, %q)", text, model)
	}
	if backup.calls != 0 {
		t.Errorf("backup called %d times, want 0", backup.calls)
	}
}

func TestChainFallsThroughOnFailure(t *testing.T) {
	broken := &fakeReader{model: "gemini-2.0-flash", err: errors.New("quota exceeded")}
	backup := &fakeReader{model: "gemini-1.5-flash", text: "MH12AB1234"}
	chain := NewChain(zerolog.Nop(), broken, backup)

	text, model := chain.ReadPlate(context.Background(), "x.jpg")
	if text != "MH12AB1234" || model != "gemini-1.5-flash" {
		t.Fatalf("got (%q, %q)", text, model)
	}
	if broken.calls != 1 {
		t.Errorf("failed model retried within one call: %d calls", broken.calls)
	}
}

func TestChainExhaustionYieldsSentinel(t *testing.T) {
	a := &fakeReader{model: "a", err: errors.New("down")}
	b := &fakeReader{model: "b", err: errors.New("down")}
	chain := NewChain(zerolog.Nop(), a, b)

	text, model := chain.ReadPlate(context.Background(), "x.jpg")
	if text != SentinelError || model != "" {
		t.Fatalf("got (%q, %q), want (%q, \"\")", text, model, SentinelError)
	}
	if a.calls != 1 || b.calls != 1 {
		t.Errorf("attempt counts = %d,%d, want 1,1", a.calls, b.calls)
	}
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		response string
		want     string
	}{
		{"KA01AB1234", "KA01AB1234"},
		{"  KA01AB1234  \n", "KA01AB1234"},
		{"The plate is unreadable in this image", "unreadable"},
		{"ok\nKA01AB1234\nextra", "KA01AB1234"},
		{"no\nab", "unreadable"},
		{"", "unreadable"},
	}
	for _, tt := range tests {
		if got := sanitize(tt.response); got != tt.want {
			t.Errorf("sanitize(%q) = %q, want %q", tt.response, got, tt.want)
		}
	}
}
