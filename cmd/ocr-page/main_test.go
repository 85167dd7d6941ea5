package main

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

// installTools puts fake pdftoppm and tesseract scripts first on PATH and
// points TMPDIR at a fresh directory.
func installTools(t *testing.T, pdftoppm, tesseract string) (tmp, argsFile string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fakes need a POSIX shell")
	}
	bin := t.TempDir()
	argsFile = filepath.Join(bin, "pdftoppm.args")
	scripts := map[string]string{
		"pdftoppm":  "printf '%s\\n' \"$@\" > \"" + argsFile + "\"\n" + pdftoppm,
		"tesseract": tesseract,
	}
	for name, body := range scripts {
		if err := os.WriteFile(filepath.Join(bin, name), []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
			t.Fatalf("write fake %s: %v", name, err)
		}
	}
	t.Setenv("PATH", bin+string(os.PathListSeparator)+os.Getenv("PATH"))

	tmp = t.TempDir()
	t.Setenv("TMPDIR", tmp)
	return tmp, argsFile
}

func samplePDF(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scan.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.4\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func assertNoLeftovers(t *testing.T, tmp string) {
	t.Helper()
	entries, err := os.ReadDir(tmp)
	if err != nil {
		t.Fatalf("read temp dir: %v", err)
	}
	for _, e := range entries {
		t.Errorf("temporary file left behind: %s", e.Name())
	}
}

const renderLast = `for last; do :; done
printf 'page three' > "$last-3.png"`

func TestRunRecognizesRequestedPage(t *testing.T) {
	tmp, argsFile := installTools(t, renderLast, `cat "$1"`)
	var stdout, stderr bytes.Buffer

	err := run(options{input: samplePDF(t), page: 3, lang: "eng", engine: "tesseract", timeout: time.Minute}, &stdout, &stderr)
	if err != nil {
		t.Fatalf("run returned error: %v (stderr: %s)", err, stderr.String())
	}
	if stdout.String() != "page three" {
		t.Fatalf("unexpected text: %q", stdout.String())
	}

	data, err := os.ReadFile(argsFile)
	if err != nil {
		t.Fatalf("read args: %v", err)
	}
	if args := strings.Join(strings.Fields(string(data)), " "); !strings.HasPrefix(args, "-png -f 3 -l 3 ") {
		t.Fatalf("only the requested page should be rendered, got args %q", args)
	}
	assertNoLeftovers(t, tmp)
}

func TestRunCleansUpOnFailure(t *testing.T) {
	tests := []struct {
		name      string
		pdftoppm  string
		tesseract string
		want      string
	}{
		{"rasterization fails", renderLast + "\nexit 1", `cat "$1"`, "rasterization failed"},
		{"recognition fails", renderLast, `echo "Error in pixReadStream" >&2; exit 1`, "page 3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmp, _ := installTools(t, tt.pdftoppm, tt.tesseract)
			var stdout, stderr bytes.Buffer

			err := run(options{input: samplePDF(t), page: 3, lang: "eng", engine: "tesseract", timeout: time.Minute}, &stdout, &stderr)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
			assertNoLeftovers(t, tmp)
		})
	}
}

func TestRunRejectsBadPage(t *testing.T) {
	tmp, _ := installTools(t, renderLast, `cat "$1"`)

	err := run(options{input: samplePDF(t), page: 0, lang: "eng", engine: "tesseract", timeout: time.Minute}, &bytes.Buffer{}, &bytes.Buffer{})
	if err == nil {
		t.Fatal("expected error for page 0")
	}
	assertNoLeftovers(t, tmp)
}

func TestRunMissingInput(t *testing.T) {
	err := run(options{input: filepath.Join(t.TempDir(), "missing.pdf"), timeout: time.Minute}, &bytes.Buffer{}, &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected not found error, got %v", err)
	}
}
