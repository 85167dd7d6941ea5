// Package pipeline drives one PDF through validation, rasterization,
// per-page recognition, assembly and cleanup.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tendant/simple-ocr/internal/converters"
	"github.com/tendant/simple-ocr/internal/preflight"
	"github.com/tendant/simple-ocr/internal/process"
	"github.com/tendant/simple-ocr/internal/progress"
	"github.com/tendant/simple-ocr/internal/runlog"
	"github.com/tendant/simple-ocr/pkg/schema"
)

// Checker validates a job before any external process runs.
type Checker interface {
	Check(ctx context.Context, req preflight.Request) error
}

// Result is what a run hands back to its front end.
type Result struct {
	Outcome Outcome
	Report  schema.RunDone
}

type Option func(*Driver)

// WithChecker replaces the default preflight checker.
func WithChecker(c Checker) Option { return func(d *Driver) { d.checker = c } }

func WithReporter(r progress.Reporter) Option { return func(d *Driver) { d.reporter = r } }

// WithEvents publishes lifecycle events on subject+".lifecycle" and the
// final RunDone on subject.
func WithEvents(pub progress.Publisher, subject string) Option {
	return func(d *Driver) {
		d.events = pub
		d.subject = subject
	}
}

func WithLogger(l *slog.Logger) Option { return func(d *Driver) { d.logger = l } }

// WithRunID fixes the run identifier instead of generating one.
func WithRunID(id string) Option { return func(d *Driver) { d.newID = func() string { return id } } }

// WithPageCountProbe sets the function used to cross-check the number of
// rasterized pages. nil disables the check.
func WithPageCountProbe(probe func(path string) (int, error)) Option {
	return func(d *Driver) { d.probe = probe }
}

// OnDone registers a hook that sees the result before the terminal log
// entry is written. Under a fatal-error log policy that entry ends the
// process, so hooks are the only place to persist a report.
func OnDone(fn func(Result)) Option {
	return func(d *Driver) { d.onDone = append(d.onDone, fn) }
}

type Driver struct {
	rasterizer converters.Rasterizer
	recognizer converters.Recognizer
	log        *runlog.Logger

	checker  Checker
	reporter progress.Reporter
	events   progress.Publisher
	subject  string
	logger   *slog.Logger
	newID    func() string
	probe    func(string) (int, error)
	onDone   []func(Result)
	now      func() time.Time
}

// New builds a driver. The default checker requires the executables of both
// adapters and validates the language against the recognizer.
func New(r converters.Rasterizer, rec converters.Recognizer, log *runlog.Logger, opts ...Option) *Driver {
	d := &Driver{
		rasterizer: r,
		recognizer: rec,
		log:        log,
		reporter:   progress.Nop{},
		logger:     slog.Default(),
		newID:      func() string { return uuid.NewString() },
		probe:      converters.ProbePageCount,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.checker == nil {
		executables := append(append([]string{}, r.Executables()...), rec.Executables()...)
		d.checker = preflight.NewChecker(executables, rec)
	}
	return d
}

// runState carries everything a run accumulates between steps.
type runState struct {
	job     Job
	run     *process.Run
	logger  *slog.Logger
	pages   []converters.PageImage
	results []converters.PageResult
	reports []schema.PageReport
	failed  []int
}

// Run executes the job to completion. It never panics on engine failures;
// every problem ends up in the returned Outcome.
func (d *Driver) Run(ctx context.Context, job Job) Result {
	st := &runState{run: process.NewRun(d.newID())}
	st.logger = d.logger.With("run_id", st.run.ID)

	resolved, err := job.Resolve()
	if err != nil {
		return d.fail(st, schema.FailureTypeArgument, err, "Invalid job: "+err.Error())
	}
	st.job = resolved
	st.logger.Info("run starting", "pdf", st.job.PDFPath, "image_dir", st.job.ImageDir,
		"output", st.job.OutputPath, "lang", st.job.Language, "cleanup", st.job.Cleanup,
		"rasterizer", d.rasterizer.Name(), "recognizer", d.recognizer.Name())

	if res, ok := d.validateStep(ctx, st); !ok {
		return res
	}
	if res, ok := d.rasterizeStep(ctx, st); !ok {
		return res
	}
	if res, ok := d.recognizeStep(ctx, st); !ok {
		return res
	}
	if res, ok := d.assembleStep(st); !ok {
		return res
	}
	if st.job.Cleanup {
		if res, ok := d.cleanupStep(st); !ok {
			return res
		}
	}
	return d.succeed(st)
}

func (d *Driver) validateStep(ctx context.Context, st *runState) (Result, bool) {
	if err := d.advance(st, process.StateValidating); err != nil {
		return d.fail(st, schema.FailureTypePreflight, err, "Internal error: "+err.Error()), false
	}
	d.log.Info("Starting OCR processing...")
	d.log.Infof("Input PDF: %s", st.job.PDFPath)
	d.log.Infof("Language: %s", st.job.Language)

	req := preflight.Request{PDFPath: st.job.PDFPath, OutputPath: st.job.OutputPath, Language: st.job.Language}
	if err := d.checker.Check(ctx, req); err != nil {
		return d.fail(st, schema.FailureTypePreflight, err, preflightMessage(err)), false
	}
	return Result{}, true
}

func (d *Driver) rasterizeStep(ctx context.Context, st *runState) (Result, bool) {
	if err := d.advance(st, process.StateRasterizing); err != nil {
		return d.fail(st, schema.FailureTypeRasterization, err, "Internal error: "+err.Error()), false
	}
	d.log.Info("Converting PDF to images...")

	expected := 0
	if d.probe != nil {
		n, err := d.probe(st.job.PDFPath)
		if err != nil {
			st.logger.Debug("page count probe failed", "err", err)
		} else {
			expected = n
		}
	}

	pages, err := d.rasterizer.Rasterize(ctx, st.job.PDFPath, st.job.ImageDir)
	if err == nil && len(pages) == 0 {
		err = &converters.RasterizationError{Reason: "no images generated from PDF"}
	}
	if err != nil {
		var rerr *converters.RasterizationError
		if errors.As(err, &rerr) && strings.TrimSpace(rerr.Output) != "" {
			d.log.Info(d.rasterizer.Name() + " output:\n" + strings.TrimSpace(rerr.Output))
		}
		return d.fail(st, schema.FailureTypeRasterization, err, "PDF conversion failed: "+err.Error()), false
	}

	sort.SliceStable(pages, func(i, j int) bool { return pages[i].Index < pages[j].Index })
	st.pages = pages
	st.run.TotalPages = len(pages)
	d.log.Infof("Generated %d images from PDF", len(pages))
	if expected > 0 && expected != len(pages) {
		d.log.Infof("Document reports %d pages but %d images were generated", expected, len(pages))
	}
	return Result{}, true
}

// recognizeStep attempts every page exactly once. Page failures are recorded
// and never stop the loop; only cancellation does, including cancellation
// during the last page.
func (d *Driver) recognizeStep(ctx context.Context, st *runState) (Result, bool) {
	total := len(st.pages)
	st.results = make([]converters.PageResult, 0, total)
	st.reports = make([]schema.PageReport, 0, total)

	for i, page := range st.pages {
		if err := ctx.Err(); err != nil {
			d.reporter.Finish()
			return d.fail(st, schema.FailureTypeRecognition, err, "OCR interrupted: "+err.Error()), false
		}
		if err := d.advance(st, process.StateRecognizingPages); err != nil {
			d.reporter.Finish()
			return d.fail(st, schema.FailureTypeRecognition, err, "Internal error: "+err.Error()), false
		}

		start := d.now()
		res := d.recognizer.Recognize(ctx, page, st.job.Language)
		res.Index = page.Index
		elapsed := d.now().Sub(start)

		// A result produced under a cancelled context is a killed engine, not
		// a page failure.
		if err := ctx.Err(); err != nil {
			d.reporter.Finish()
			return d.fail(st, schema.FailureTypeRecognition, err, "OCR interrupted: "+err.Error()), false
		}

		if diag := strings.TrimSpace(res.Diagnostics); diag != "" {
			for _, line := range strings.Split(diag, "\n") {
				d.log.Infof("Page %d engine: %s", page.Index, strings.TrimRight(line, "\r"))
			}
		}

		report := schema.PageReport{Page: page.Index, ProcessingTimeMs: elapsed.Milliseconds()}
		if res.Failed() {
			st.failed = append(st.failed, page.Index)
			report.Status = schema.PageFailed
			report.Reason = res.Reason
			d.log.Warningf("OCR failed for page %d: %s", page.Index, res.Reason)
		} else {
			report.Status = schema.PageRecognized
			report.Characters = len([]rune(res.Text))
			d.log.Infof("Processed page %d of %d", page.Index, total)
		}
		st.logger.Debug("page done", "page", page.Index, "status", report.Status, "elapsed", elapsed)

		st.results = append(st.results, res)
		st.reports = append(st.reports, report)
		d.reporter.Report(i+1, total)
	}
	d.reporter.Finish()
	return Result{}, true
}

func (d *Driver) assembleStep(st *runState) (Result, bool) {
	if err := d.advance(st, process.StateAssembling); err != nil {
		return d.fail(st, schema.FailureTypeAssembly, err, "Internal error: "+err.Error()), false
	}
	if err := writeOutput(st.job.OutputPath, st.results); err != nil {
		return d.fail(st, schema.FailureTypeAssembly, err, "Could not write output: "+err.Error()), false
	}
	d.log.Infof("Text written to %s", st.job.OutputPath)
	return Result{}, true
}

// cleanupStep never produces a fatal outcome from filesystem errors.
func (d *Driver) cleanupStep(st *runState) (Result, bool) {
	if err := d.advance(st, process.StateCleaningUp); err != nil {
		return d.fail(st, schema.FailureTypeAssembly, err, "Internal error: "+err.Error()), false
	}
	d.log.Info("Cleaning up temporary image files...")

	res := Cleanup(st.pages, st.job.ImageDir)
	for _, err := range res.FileErrs {
		d.log.Infof("Could not remove image: %v", err)
	}
	if res.DirErr != nil {
		d.log.Infof("Image directory %s was not removed: %v", st.job.ImageDir, res.DirErr)
	}
	st.logger.Debug("cleanup done", "removed", res.Removed, "dir_kept", res.DirExists)
	return Result{}, true
}

func (d *Driver) succeed(st *runState) Result {
	if err := d.advance(st, process.StateDone); err != nil {
		return d.fail(st, schema.FailureTypeAssembly, err, "Internal error: "+err.Error())
	}

	outcome := Success()
	if len(st.failed) > 0 {
		outcome = SuccessWithWarnings(st.failed)
	}
	result := d.finish(st, outcome, nil, "")

	if outcome.Kind == schema.OutcomeSuccess {
		d.log.Successf("OCR processing completed successfully! Output saved to: %s", st.job.OutputPath)
	} else {
		d.log.Infof("OCR processing completed with %d of %d pages failed (pages %s). Output saved to: %s",
			len(st.failed), len(st.pages), joinPages(st.failed), st.job.OutputPath)
	}
	return result
}

// fail ends the run at its current stage. The ERROR entry is written last
// because a fatal-error log policy exits the process inside that call.
func (d *Driver) fail(st *runState, failureType schema.FailureType, err error, msg string) Result {
	stage := st.run.State.Stage()
	process.Fail(st.run, err, failureType)
	d.publishLifecycle(st)

	result := d.finish(st, Fatal(stage, err), err, failureType)
	st.logger.Error("run failed", "stage", stage, "failure_type", failureType, "err", err)
	d.log.Error(firstLine(msg))
	return result
}

func (d *Driver) finish(st *runState, outcome Outcome, cause error, failureType schema.FailureType) Result {
	done := schema.RunDone{
		RunID:            st.run.ID,
		SourcePath:       st.job.PDFPath,
		ImageDir:         st.job.ImageDir,
		OutputPath:       st.job.OutputPath,
		Language:         st.job.Language,
		Outcome:          outcome.Kind,
		TotalPages:       len(st.pages),
		FailedPages:      outcome.FailedPages,
		Pages:            st.reports,
		ProcessingTimeMs: st.run.Duration().Milliseconds(),
		Lifecycle:        st.run.Lifecycle,
		HappenedAt:       d.now().Unix(),
	}
	if cause != nil {
		done.Stage = outcome.Stage
		done.Error = cause.Error()
		done.FailureType = failureType
	}

	if d.events != nil {
		if err := d.events.PublishJSON(d.subject, done); err != nil {
			st.logger.Warn("publish result failed", "subject", d.subject, "err", err)
		}
	}

	result := Result{Outcome: outcome, Report: done}
	for _, fn := range d.onDone {
		fn(result)
	}
	st.logger.Info("run finished", "outcome", outcome.Kind, "pages", len(st.pages), "failed", len(st.failed))
	return result
}

func (d *Driver) advance(st *runState, to process.State) error {
	if err := st.run.Advance(to); err != nil {
		return err
	}
	d.publishLifecycle(st)
	return nil
}

func (d *Driver) publishLifecycle(st *runState) {
	if d.events == nil {
		return
	}
	subject := d.subject + ".lifecycle"
	if err := d.events.PublishJSON(subject, st.run.Last()); err != nil {
		st.logger.Warn("publish lifecycle failed", "subject", subject, "err", err)
	}
}

// firstLine keeps a fatal error to a single ERROR entry; multi-line detail
// is logged at INFO before it.
func firstLine(msg string) string {
	line, _, _ := strings.Cut(msg, "\n")
	return line
}

func preflightMessage(err error) string {
	var f *preflight.Failure
	if !errors.As(err, &f) {
		return "Preflight check failed: " + err.Error()
	}
	switch f.Kind {
	case preflight.KindMissingExecutable:
		return "Missing dependencies: " + f.Detail
	case preflight.KindUnsupportedLanguage:
		return "Unsupported language: " + f.Detail
	case preflight.KindMissingPDF:
		return f.Detail
	default:
		return fmt.Sprintf("Preflight check failed: %v", f)
	}
}
