package ocr

import (
	"context"
	"fmt"

	"github.com/otiai10/gosseract/v2"
)

// TesseractReader is a local OCR backend, usually the last entry of the
// chain behind the remote generative models.
type TesseractReader struct {
	client *gosseract.Client
}

// NewTesseractReader creates a reader bound to one Tesseract client. The
// client is not safe for concurrent use; the resolver loop is sequential.
func NewTesseractReader(language string) (*TesseractReader, error) {
	client := gosseract.NewClient()
	if language == "" {
		language = "eng"
	}
	if err := client.SetLanguage(language); err != nil {
		client.Close()
		return nil, fmt.Errorf("set ocr language: %w", err)
	}
	if err := client.SetPageSegMode(gosseract.PSM_SINGLE_LINE); err != nil {
		client.Close()
		return nil, fmt.Errorf("set page segmentation mode: %w", err)
	}
	// Plates are alphanumeric only; constraining the charset cuts the
	// usual O/0 and I/1 confusions.
	if err := client.SetWhitelist("ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"); err != nil {
		client.Close()
		return nil, fmt.Errorf("set ocr whitelist: %w", err)
	}
	return &TesseractReader{client: client}, nil
}

func (t *TesseractReader) Model() string { return "tesseract" }

func (t *TesseractReader) ReadPlate(_ context.Context, imagePath string) (string, error) {
	if err := t.client.SetImage(imagePath); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}
	text, err := t.client.Text()
	if err != nil {
		return "", fmt.Errorf("recognize: %w", err)
	}
	return text, nil
}

func (t *TesseractReader) Close() error {
	return t.client.Close()
}
