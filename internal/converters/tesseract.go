package converters

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// RecognitionFailedReason is the reason recorded for a page whose engine run
// exited non-zero.
const RecognitionFailedReason = "recognition engine returned non-zero status"

// TesseractRecognizer runs the tesseract CLI once per page
type TesseractRecognizer struct {
	binary string
}

// NewTesseractRecognizer creates a recognizer backed by the tesseract binary
func NewTesseractRecognizer() *TesseractRecognizer {
	return &TesseractRecognizer{binary: "tesseract"}
}

func (t *TesseractRecognizer) Name() string {
	return "tesseract"
}

func (t *TesseractRecognizer) Executables() []string {
	return []string{t.binary}
}

// Languages runs `tesseract --list-langs`. The first line is a header
// ("List of available languages in ...") and is skipped.
func (t *TesseractRecognizer) Languages(ctx context.Context) ([]string, error) {
	cmd := exec.CommandContext(ctx, t.binary, "--list-langs")

	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("tesseract --list-langs failed: %w\nOutput: %s", err, string(output))
	}
	return ParseLanguageList(string(output)), nil
}

// Recognize writes the recognized text to stdout ("stdout" output base) and
// keeps stderr as diagnostics.
func (t *TesseractRecognizer) Recognize(ctx context.Context, page PageImage, lang string) PageResult {
	cmd := exec.CommandContext(ctx, t.binary, page.Path, "stdout", "-l", lang)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		result := Failed(page.Index, RecognitionFailedReason)
		result.Diagnostics = strings.TrimSpace(stderr.String())
		if result.Diagnostics == "" {
			result.Diagnostics = err.Error()
		}
		return result
	}

	result := Recognized(page.Index, stdout.String())
	result.Diagnostics = strings.TrimSpace(stderr.String())
	return result
}

// ParseLanguageList parses the language query output: one code per line
// after a one-line header.
func ParseLanguageList(output string) []string {
	lines := strings.Split(strings.ReplaceAll(output, "\r\n", "\n"), "\n")
	if len(lines) > 0 {
		lines = lines[1:]
	}

	var langs []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		langs = append(langs, line)
	}
	return langs
}
