// Package pipelinetest provides scripted rasterizer and recognizer doubles
// for driving the pipeline without poppler or tesseract installed.
package pipelinetest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/tendant/simple-ocr/internal/converters"
)

// Rasterizer writes Pages placeholder images into the image directory.
type Rasterizer struct {
	Pages int
	Err   error

	mu    sync.Mutex
	calls int
}

func (r *Rasterizer) Name() string          { return "fake-rasterizer" }
func (r *Rasterizer) Executables() []string { return nil }

func (r *Rasterizer) Rasterize(ctx context.Context, pdfPath, imageDir string) ([]converters.PageImage, error) {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()

	if r.Err != nil {
		return nil, r.Err
	}
	if err := os.MkdirAll(imageDir, 0o755); err != nil {
		return nil, err
	}
	pages := make([]converters.PageImage, 0, r.Pages)
	for i := 1; i <= r.Pages; i++ {
		path := filepath.Join(imageDir, fmt.Sprintf("%s-%d.png", converters.PagePrefix, i))
		if err := os.WriteFile(path, []byte("fake png"), 0o644); err != nil {
			return nil, err
		}
		pages = append(pages, converters.PageImage{Index: i, Path: path})
	}
	return pages, nil
}

func (r *Rasterizer) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

// Recognizer returns "text of page N\n" for every page not listed in Fail.
type Recognizer struct {
	Langs       []string
	LangsErr    error
	Texts       map[int]string
	Fail        map[int]bool
	Diagnostics map[int]string

	// OnRecognize runs before each page is answered.
	OnRecognize func(page converters.PageImage)

	mu    sync.Mutex
	calls []int
}

func (r *Recognizer) Name() string          { return "fake-recognizer" }
func (r *Recognizer) Executables() []string { return nil }

func (r *Recognizer) Languages(ctx context.Context) ([]string, error) {
	if r.LangsErr != nil {
		return nil, r.LangsErr
	}
	if r.Langs == nil {
		return []string{"eng", "osd"}, nil
	}
	return r.Langs, nil
}

func (r *Recognizer) Recognize(ctx context.Context, page converters.PageImage, lang string) converters.PageResult {
	r.mu.Lock()
	r.calls = append(r.calls, page.Index)
	r.mu.Unlock()

	if r.OnRecognize != nil {
		r.OnRecognize(page)
	}

	var res converters.PageResult
	if r.Fail[page.Index] {
		res = converters.Failed(page.Index, converters.RecognitionFailedReason)
	} else {
		text, ok := r.Texts[page.Index]
		if !ok {
			text = fmt.Sprintf("text of page %d\n", page.Index)
		}
		res = converters.Recognized(page.Index, text)
	}
	res.Diagnostics = r.Diagnostics[page.Index]
	return res
}

// Calls returns the page indices recognized so far, in call order.
func (r *Recognizer) Calls() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.calls...)
}
