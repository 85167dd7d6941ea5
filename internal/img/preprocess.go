// internal/img/preprocess.go
package img

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"

	"github.com/tendant/simple-ocr/internal/converters"
)

// Options controls page normalisation ahead of recognition.
type Options struct {
	Contrast float64 // percentage, -100..100
	Sharpen  float64 // gaussian sigma, 0 disables
	TempDir  string  // "" means os.TempDir()
}

// DefaultOptions suit scanned text pages.
func DefaultOptions() Options {
	return Options{Contrast: 20, Sharpen: 0.8}
}

// Normalize loads a page image, converts it to grayscale, boosts contrast,
// sharpens it and writes the result to dstPath. The source is not modified.
func Normalize(srcPath, dstPath string, opts Options) error {
	src, err := imaging.Open(srcPath, imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}

	out := imaging.Grayscale(src)
	if opts.Contrast != 0 {
		out = imaging.AdjustContrast(out, opts.Contrast)
	}
	if opts.Sharpen > 0 {
		out = imaging.Sharpen(out, opts.Sharpen)
	}

	if err := os.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	if err := imaging.Save(out, dstPath); err != nil {
		return fmt.Errorf("save: %w", err)
	}
	return nil
}

// Preprocessor wraps a Recognizer and feeds it a normalised copy of each page.
type Preprocessor struct {
	converters.Recognizer
	opts Options
}

func NewPreprocessor(next converters.Recognizer, opts Options) *Preprocessor {
	return &Preprocessor{Recognizer: next, opts: opts}
}

// Recognize normalises the page into a temporary file, recognizes that copy
// and removes it. If normalisation fails the original image is used and the
// error is reported in the diagnostics.
func (p *Preprocessor) Recognize(ctx context.Context, page converters.PageImage, lang string) converters.PageResult {
	tmp, err := os.CreateTemp(p.opts.TempDir, fmt.Sprintf("ocr-page-%d-*.png", page.Index))
	if err != nil {
		return p.fallback(ctx, page, lang, fmt.Errorf("create temp file: %w", err))
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()
	defer os.Remove(tmpPath)

	if err := Normalize(page.Path, tmpPath, p.opts); err != nil {
		return p.fallback(ctx, page, lang, fmt.Errorf("normalize page %d: %w", page.Index, err))
	}

	res := p.Recognizer.Recognize(ctx, converters.PageImage{Index: page.Index, Path: tmpPath}, lang)
	res.Index = page.Index
	return res
}

func (p *Preprocessor) fallback(ctx context.Context, page converters.PageImage, lang string, cause error) converters.PageResult {
	res := p.Recognizer.Recognize(ctx, page, lang)
	if res.Diagnostics != "" {
		res.Diagnostics = cause.Error() + "\n" + res.Diagnostics
	} else {
		res.Diagnostics = cause.Error()
	}
	return res
}
