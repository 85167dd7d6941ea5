// Package converters wraps the external programs that turn a PDF into page
// images and page images into text.
package converters

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/tendant/simple-ocr/pkg/schema"
)

// PageImage is one rasterized page. Index is 1-based.
type PageImage struct {
	Index int
	Path  string
}

// PageResult is the outcome of recognizing one page.
type PageResult struct {
	Index       int
	Status      schema.PageStatus
	Text        string
	Reason      string
	Diagnostics string // engine stderr, appended to the run log
}

func (r PageResult) Failed() bool { return r.Status == schema.PageFailed }

// Recognized builds a successful page result.
func Recognized(index int, text string) PageResult {
	return PageResult{Index: index, Status: schema.PageRecognized, Text: text}
}

// Failed builds a recoverable per-page failure.
func Failed(index int, reason string) PageResult {
	return PageResult{Index: index, Status: schema.PageFailed, Reason: reason}
}

// Rasterizer turns one PDF into an ordered sequence of page images.
type Rasterizer interface {
	// Name returns the rasterizer name (e.g., "poppler")
	Name() string

	// Executables lists the programs that must be on PATH
	Executables() []string

	// Rasterize renders every page of pdfPath into imageDir, creating the
	// directory if needed. Pages are returned in ascending index order.
	Rasterize(ctx context.Context, pdfPath, imageDir string) ([]PageImage, error)
}

// Recognizer extracts text from one page image.
type Recognizer interface {
	// Name returns the engine name (e.g., "tesseract")
	Name() string

	// Executables lists the programs that must be on PATH
	Executables() []string

	// Languages returns the installed recognition languages
	Languages(ctx context.Context) ([]string, error)

	// Recognize performs exactly one recognition attempt
	Recognize(ctx context.Context, page PageImage, lang string) PageResult
}

// RasterizationError is fatal: without page images there is nothing to
// recognize.
type RasterizationError struct {
	Reason string
	Output string
	Err    error
}

func (e *RasterizationError) Error() string {
	msg := "rasterization failed: " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += "\nOutput: " + out
	}
	return msg
}

func (e *RasterizationError) Unwrap() error { return e.Err }

var (
	enginesMu sync.RWMutex
	engines   = map[string]func() Recognizer{}
)

// RegisterEngine makes a recognition engine selectable by name. Engines
// compiled behind build tags register themselves from init.
func RegisterEngine(name string, factory func() Recognizer) {
	enginesMu.Lock()
	defer enginesMu.Unlock()
	engines[strings.ToLower(name)] = factory
}

// GetEngine returns the recognition engine registered under name.
func GetEngine(name string) (Recognizer, error) {
	enginesMu.RLock()
	factory, ok := engines[strings.ToLower(name)]
	enginesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported recognition engine: %s (available: %s)", name, strings.Join(Engines(), ", "))
	}
	return factory(), nil
}

// Engines returns the registered engine names, sorted.
func Engines() []string {
	enginesMu.RLock()
	defer enginesMu.RUnlock()
	names := make([]string, 0, len(engines))
	for name := range engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func init() {
	RegisterEngine("tesseract", func() Recognizer { return NewTesseractRecognizer() })
}
