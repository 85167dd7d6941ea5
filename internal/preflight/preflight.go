// Package preflight verifies a job can run before any work starts. Checks
// only inspect the filesystem, PATH and the engine's language list.
package preflight

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

type Kind string

const (
	KindMissingExecutable   Kind = "missing_executable"
	KindLanguageQuery       Kind = "language_query"
	KindUnsupportedLanguage Kind = "unsupported_language"
	KindMissingPDF          Kind = "missing_pdf"
	KindOutputIsDirectory   Kind = "output_is_directory"
)

// Failure stops a job at the validation stage.
type Failure struct {
	Kind   Kind
	Detail string
	Err    error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %s: %v", f.Kind, f.Detail, f.Err)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Detail)
}

func (f *Failure) Unwrap() error { return f.Err }

// IsFailure reports whether err is a preflight failure of the given kind.
// An empty kind matches any failure.
func IsFailure(err error, kind Kind) bool {
	var f *Failure
	if !errors.As(err, &f) {
		return false
	}
	return kind == "" || f.Kind == kind
}

// LanguageLister is the recognition engine's capability query.
type LanguageLister interface {
	Languages(ctx context.Context) ([]string, error)
}

// Request is what a check needs to know about a job.
type Request struct {
	PDFPath    string
	OutputPath string
	Language   string
}

type Checker struct {
	executables []string
	languages   LanguageLister
	lookPath    func(string) (string, error)
}

func NewChecker(executables []string, languages LanguageLister) *Checker {
	return &Checker{
		executables: dedupe(executables),
		languages:   languages,
		lookPath:    exec.LookPath,
	}
}

// Check runs every check in order and returns the first *Failure.
func (c *Checker) Check(ctx context.Context, req Request) error {
	if err := c.checkExecutables(); err != nil {
		return err
	}
	if err := c.checkLanguage(ctx, req.Language); err != nil {
		return err
	}
	if err := CheckPDF(req.PDFPath); err != nil {
		return err
	}
	return CheckOutput(req.OutputPath)
}

func (c *Checker) checkExecutables() error {
	var missing []string
	for _, name := range c.executables {
		if _, err := c.lookPath(name); err != nil {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return &Failure{
			Kind:   KindMissingExecutable,
			Detail: fmt.Sprintf("required tools not installed: %s", strings.Join(missing, ", ")),
		}
	}
	return nil
}

// checkLanguage requires an exact, case-sensitive match against one entry of
// the engine's list.
func (c *Checker) checkLanguage(ctx context.Context, lang string) error {
	if c.languages == nil {
		return nil
	}
	langs, err := c.languages.Languages(ctx)
	if err != nil {
		return &Failure{Kind: KindLanguageQuery, Detail: "could not list installed languages", Err: err}
	}
	for _, l := range langs {
		if l == lang {
			return nil
		}
	}
	return &Failure{
		Kind:   KindUnsupportedLanguage,
		Detail: fmt.Sprintf("language %q is not installed (available: %s)", lang, strings.Join(langs, ", ")),
	}
}

// CheckPDF requires path to be an existing regular file.
func CheckPDF(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return &Failure{Kind: KindMissingPDF, Detail: fmt.Sprintf("PDF file %s does not exist", path), Err: err}
	}
	if !info.Mode().IsRegular() {
		return &Failure{Kind: KindMissingPDF, Detail: fmt.Sprintf("PDF path %s is not a regular file", path)}
	}
	return nil
}

// CheckOutput rejects an output path that is an existing directory.
func CheckOutput(path string) error {
	info, err := os.Stat(path)
	if err == nil && info.IsDir() {
		return &Failure{Kind: KindOutputIsDirectory, Detail: fmt.Sprintf("output path %s is a directory", path)}
	}
	return nil
}

func dedupe(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
