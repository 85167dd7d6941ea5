//go:build gosseract

package converters

import (
	"context"
	"fmt"

	"github.com/otiai10/gosseract/v2"
)

func init() {
	RegisterEngine("gosseract", func() Recognizer { return NewGosseractRecognizer() })
}

// GosseractRecognizer runs libtesseract in-process through cgo. It needs no
// executable on PATH, only the tessdata files.
type GosseractRecognizer struct {
	clientFactory func() *gosseract.Client
}

func NewGosseractRecognizer() *GosseractRecognizer {
	return &GosseractRecognizer{clientFactory: gosseract.NewClient}
}

func (g *GosseractRecognizer) Name() string { return "gosseract" }

func (g *GosseractRecognizer) Executables() []string { return nil }

func (g *GosseractRecognizer) Languages(ctx context.Context) ([]string, error) {
	langs, err := gosseract.GetAvailableLanguages()
	if err != nil {
		return nil, fmt.Errorf("list tessdata languages: %w", err)
	}
	return langs, nil
}

// Recognize uses a fresh client per page so one bad image cannot poison the
// engine state for the next.
func (g *GosseractRecognizer) Recognize(ctx context.Context, page PageImage, lang string) PageResult {
	if err := ctx.Err(); err != nil {
		return withDiagnostics(Failed(page.Index, RecognitionFailedReason), err)
	}

	c := g.clientFactory()
	defer c.Close()

	if err := c.SetLanguage(lang); err != nil {
		return withDiagnostics(Failed(page.Index, RecognitionFailedReason), fmt.Errorf("set language: %w", err))
	}
	if err := c.SetImage(page.Path); err != nil {
		return withDiagnostics(Failed(page.Index, RecognitionFailedReason), fmt.Errorf("set image: %w", err))
	}
	text, err := c.Text()
	if err != nil {
		return withDiagnostics(Failed(page.Index, RecognitionFailedReason), fmt.Errorf("recognize text: %w", err))
	}
	return Recognized(page.Index, text)
}

func withDiagnostics(r PageResult, err error) PageResult {
	r.Diagnostics = err.Error()
	return r
}
