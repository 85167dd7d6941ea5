// cmd/ocr-page recognizes a single page image, or one page of a PDF, without
// writing a run log or an output file. It is meant for trying languages and
// preprocessing on a problem page.
//
// Usage:
//
//	./ocr-page -input page-3.png -lang deu
//	./ocr-page -input scan.pdf -page 3 -preprocess
//	./ocr-page -input scan.pdf -probe  # Show page count only
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tendant/simple-ocr/internal/converters"
	"github.com/tendant/simple-ocr/internal/img"
)

type options struct {
	input      string
	page       int
	lang       string
	engine     string
	preprocess bool
	dpi        int
	probe      bool
	timeout    time.Duration
	verbose    bool
}

func main() {
	var opts options
	flag.StringVar(&opts.input, "input", "", "Input PNG/JPEG page or PDF (required)")
	flag.IntVar(&opts.page, "page", 1, "Page to recognize when the input is a PDF")
	flag.StringVar(&opts.lang, "lang", "eng", "OCR language code")
	flag.StringVar(&opts.engine, "engine", "tesseract", "Recognition engine ("+strings.Join(converters.Engines(), ", ")+")")
	flag.BoolVar(&opts.preprocess, "preprocess", false, "Grayscale, contrast and sharpen before recognition")
	flag.IntVar(&opts.dpi, "dpi", 0, "Rasterization resolution for PDF input")
	flag.BoolVar(&opts.probe, "probe", false, "Show document metadata only (don't recognize)")
	timeout := flag.Int("timeout", 120, "Timeout in seconds")
	flag.BoolVar(&opts.verbose, "v", false, "Verbose output")

	flag.Parse()
	opts.timeout = time.Duration(*timeout) * time.Second

	if opts.input == "" {
		fmt.Println("Error: -input flag is required")
		flag.Usage()
		os.Exit(1)
	}

	// run owns every temporary file, so it must return before the process
	// exits.
	if err := run(opts, os.Stdout, os.Stderr); err != nil {
		log.Fatal(err)
	}
}

func run(opts options, stdout, stderr io.Writer) error {
	if _, err := os.Stat(opts.input); os.IsNotExist(err) {
		return fmt.Errorf("input file not found: %s", opts.input)
	}

	mimeType, err := detectMIMEType(opts.input)
	if err != nil {
		return fmt.Errorf("failed to detect file type: %w", err)
	}
	if opts.verbose {
		fmt.Fprintf(stderr, "Input: %s\n", opts.input)
		fmt.Fprintf(stderr, "MIME type: %s\n", mimeType)
	}

	if opts.probe {
		if mimeType != "application/pdf" {
			return fmt.Errorf("-probe needs a PDF, got %s", mimeType)
		}
		n, err := converters.ProbePageCount(opts.input)
		if err != nil {
			return fmt.Errorf("failed to probe PDF: %w", err)
		}
		fmt.Fprintf(stdout, "Pages: %d\n", n)
		return nil
	}

	rec, err := converters.GetEngine(opts.engine)
	if err != nil {
		return err
	}
	if opts.preprocess {
		rec = img.NewPreprocessor(rec, img.DefaultOptions())
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()

	target := converters.PageImage{Index: opts.page, Path: opts.input}
	if mimeType == "application/pdf" {
		dir, err := os.MkdirTemp("", "ocr-page-*")
		if err != nil {
			return fmt.Errorf("failed to create temp dir: %w", err)
		}
		defer os.RemoveAll(dir)

		target, err = rasterizePage(ctx, opts.input, dir, opts.page, opts.dpi)
		if err != nil {
			return fmt.Errorf("rasterization failed: %w", err)
		}
		if opts.verbose {
			fmt.Fprintf(stderr, "Rendered page %d to %s\n", opts.page, filepath.Base(target.Path))
		}
	}

	start := time.Now()
	res := rec.Recognize(ctx, target, opts.lang)
	duration := time.Since(start)

	if res.Diagnostics != "" && (opts.verbose || res.Failed()) {
		fmt.Fprintln(stderr, res.Diagnostics)
	}
	if res.Failed() {
		return fmt.Errorf("page %d: %s", target.Index, res.Reason)
	}

	fmt.Fprint(stdout, res.Text)
	if opts.verbose {
		fmt.Fprintf(stderr, "\nEngine: %s, language: %s, characters: %d, time: %v\n",
			rec.Name(), opts.lang, len([]rune(res.Text)), duration.Round(time.Millisecond))
	}
	return nil
}

// rasterizePage renders only the requested page.
func rasterizePage(ctx context.Context, pdfPath, dir string, page, dpi int) (converters.PageImage, error) {
	if page < 1 {
		return converters.PageImage{}, fmt.Errorf("page must be at least 1, got %d", page)
	}
	r := converters.NewPopplerRasterizer()
	if dpi > 0 {
		r.SetDPI(dpi)
	}
	r.SetPageRange(page, page)
	pages, err := r.Rasterize(ctx, pdfPath, dir)
	if err != nil {
		return converters.PageImage{}, err
	}
	for _, p := range pages {
		if p.Index == page {
			return p, nil
		}
	}
	return converters.PageImage{}, fmt.Errorf("page %d was not rendered", page)
}

// detectMIMEType sniffs the first 512 bytes of path
func detectMIMEType(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	buffer := make([]byte, 512)
	n, err := file.Read(buffer)
	if err != nil && n == 0 {
		return "", err
	}

	// http.DetectContentType doesn't detect PDFs well, check magic bytes
	if n >= 4 && string(buffer[:4]) == "%PDF" {
		return "application/pdf", nil
	}
	return http.DetectContentType(buffer[:n]), nil
}
