package pipeline

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/tendant/simple-ocr/pkg/schema"
)

const (
	DefaultLanguage = "eng"
	DefaultLogPath  = "ocr_log.txt"
)

// Job is the unit of work for one invocation. It is built once by a front
// end and passed to the driver by value.
type Job struct {
	PDFPath    string
	ImageDir   string
	OutputPath string
	Language   string
	Cleanup    bool
	LogPath    string
	Preprocess bool
}

// Resolve returns a copy of the job with every path made absolute and the
// language and log path defaulted.
func (j Job) Resolve() (Job, error) {
	if j.Language == "" {
		j.Language = DefaultLanguage
	}
	if j.LogPath == "" {
		j.LogPath = DefaultLogPath
	}

	for _, p := range []struct {
		name string
		ref  *string
	}{
		{"PDF path", &j.PDFPath},
		{"image directory", &j.ImageDir},
		{"output path", &j.OutputPath},
		{"log path", &j.LogPath},
	} {
		if strings.TrimSpace(*p.ref) == "" {
			return Job{}, fmt.Errorf("%s is required", p.name)
		}
		abs, err := filepath.Abs(*p.ref)
		if err != nil {
			return Job{}, fmt.Errorf("resolve %s %q: %w", p.name, *p.ref, err)
		}
		*p.ref = abs
	}
	return j, nil
}

// Outcome is the terminal status of a run.
type Outcome struct {
	Kind        schema.OutcomeKind
	FailedPages []int
	Stage       schema.ProcessingStage // set for fatal outcomes
	Err         error                  // set for fatal outcomes
}

func Success() Outcome { return Outcome{Kind: schema.OutcomeSuccess} }

func SuccessWithWarnings(failed []int) Outcome {
	return Outcome{Kind: schema.OutcomeSuccessWithWarnings, FailedPages: failed}
}

func Fatal(stage schema.ProcessingStage, err error) Outcome {
	return Outcome{Kind: schema.OutcomeFatal, Stage: stage, Err: err}
}

func (o Outcome) IsFatal() bool { return o.Kind == schema.OutcomeFatal }

// ExitCode is 1 for fatal outcomes and 0 otherwise.
func (o Outcome) ExitCode() int {
	if o.IsFatal() {
		return 1
	}
	return 0
}

func (o Outcome) String() string {
	switch o.Kind {
	case schema.OutcomeFatal:
		return fmt.Sprintf("fatal at %s: %v", o.Stage, o.Err)
	case schema.OutcomeSuccessWithWarnings:
		return fmt.Sprintf("success with warnings (failed pages: %s)", joinPages(o.FailedPages))
	default:
		return string(o.Kind)
	}
}

func joinPages(pages []int) string {
	parts := make([]string, len(pages))
	for i, p := range pages {
		parts[i] = fmt.Sprint(p)
	}
	return strings.Join(parts, ", ")
}
