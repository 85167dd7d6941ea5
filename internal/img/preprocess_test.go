package img

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"

	"github.com/tendant/simple-ocr/internal/converters"
)

func TestNormalizeCreatesGrayscaleOutput(t *testing.T) {
	tmp := t.TempDir()
	srcPath := filepath.Join(tmp, "page-1.png")
	createTestImage(t, srcPath, 40, 20)

	dstPath := filepath.Join(tmp, "nested", "page-1.norm.png")
	if err := Normalize(srcPath, dstPath, DefaultOptions()); err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}

	out, err := imaging.Open(dstPath)
	if err != nil {
		t.Fatalf("normalized file not readable: %v", err)
	}
	if b := out.Bounds(); b.Dx() != 40 || b.Dy() != 20 {
		t.Fatalf("unexpected size: %dx%d", b.Dx(), b.Dy())
	}
	r, g, b, _ := out.At(5, 5).RGBA()
	if r != g || g != b {
		t.Fatalf("pixel not grayscale: %d %d %d", r, g, b)
	}

	// the source is left untouched
	src, err := imaging.Open(srcPath)
	if err != nil {
		t.Fatalf("source not readable: %v", err)
	}
	if sr, sg, _, _ := src.At(5, 5).RGBA(); sr == sg {
		t.Fatal("source image was modified")
	}
}

func TestNormalizeMissingSource(t *testing.T) {
	tmp := t.TempDir()
	err := Normalize(filepath.Join(tmp, "missing.png"), filepath.Join(tmp, "out.png"), DefaultOptions())
	if err == nil {
		t.Fatalf("expected error for missing source image")
	}
	if !strings.Contains(err.Error(), "open") {
		t.Fatalf("unexpected error message: %v", err)
	}
}

type recordingRecognizer struct {
	seen []string
}

func (r *recordingRecognizer) Name() string          { return "recording" }
func (r *recordingRecognizer) Executables() []string { return nil }
func (r *recordingRecognizer) Languages(ctx context.Context) ([]string, error) {
	return []string{"eng"}, nil
}
func (r *recordingRecognizer) Recognize(ctx context.Context, page converters.PageImage, lang string) converters.PageResult {
	r.seen = append(r.seen, page.Path)
	if _, err := os.Stat(page.Path); err != nil {
		return converters.Failed(page.Index, "missing input")
	}
	return converters.Recognized(page.Index, "text")
}

func TestPreprocessorRecognizesTemporaryCopy(t *testing.T) {
	tmp := t.TempDir()
	srcPath := filepath.Join(tmp, "page-3.png")
	createTestImage(t, srcPath, 30, 30)

	next := &recordingRecognizer{}
	opts := DefaultOptions()
	opts.TempDir = t.TempDir()
	p := NewPreprocessor(next, opts)

	res := p.Recognize(context.Background(), converters.PageImage{Index: 3, Path: srcPath}, "eng")
	if res.Failed() || res.Index != 3 || res.Text != "text" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(next.seen) != 1 || next.seen[0] == srcPath {
		t.Fatalf("wrapped recognizer did not get a copy: %v", next.seen)
	}
	if _, err := os.Stat(next.seen[0]); !os.IsNotExist(err) {
		t.Fatalf("temporary copy not removed: %v", err)
	}
	if p.Name() != "recording" {
		t.Fatalf("name not delegated: %s", p.Name())
	}
}

func TestPreprocessorFallsBackOnUnreadableImage(t *testing.T) {
	tmp := t.TempDir()
	srcPath := filepath.Join(tmp, "page-1.png")
	if err := os.WriteFile(srcPath, []byte("not a png"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	next := &recordingRecognizer{}
	res := NewPreprocessor(next, DefaultOptions()).Recognize(context.Background(), converters.PageImage{Index: 1, Path: srcPath}, "eng")

	if len(next.seen) != 1 || next.seen[0] != srcPath {
		t.Fatalf("expected fallback to original image, saw %v", next.seen)
	}
	if !strings.Contains(res.Diagnostics, "normalize page 1") {
		t.Fatalf("fallback cause not reported: %q", res.Diagnostics)
	}
}

func createTestImage(t *testing.T, path string, w, h int) {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: 100, B: 50, A: 255})
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("create dir: %v", err)
	}

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create file: %v", err)
	}
	t.Cleanup(func() { _ = os.Remove(path) })

	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		t.Fatalf("encode png: %v", err)
	}

	if err := f.Close(); err != nil {
		t.Fatalf("close file: %v", err)
	}
}
