package pipeline

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/tendant/simple-ocr/internal/converters"
)

// Marker is the page-boundary line written before every page body.
func Marker(index int) string {
	return fmt.Sprintf("--- Page %d ---", index)
}

// Assemble writes results in the order given. Every page gets a marker; only
// recognized pages get a body.
func Assemble(w io.Writer, results []converters.PageResult) error {
	bw := bufio.NewWriter(w)
	for _, res := range results {
		if _, err := fmt.Fprintf(bw, "\n\n%s\n", Marker(res.Index)); err != nil {
			return err
		}
		if res.Failed() {
			continue
		}
		if _, err := bw.WriteString(res.Text); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// writeOutput assembles into a temporary sibling of path and renames it into
// place, so the output is either complete or untouched.
func writeOutput(path string, results []converters.PageResult) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp output: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if err := Assemble(tmp, results); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write output: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod output: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("move output into place: %w", err)
	}
	return nil
}
