package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/tendant/simple-ocr/internal/bus"
	"github.com/tendant/simple-ocr/internal/converters"
	"github.com/tendant/simple-ocr/internal/dialog"
	"github.com/tendant/simple-ocr/internal/img"
	"github.com/tendant/simple-ocr/internal/pipeline"
	"github.com/tendant/simple-ocr/internal/progress"
	"github.com/tendant/simple-ocr/internal/runlog"
)

// IO is the process surface a front end writes to.
type IO struct {
	Stdout io.Writer
	Stderr io.Writer

	// Exit ends the process when an ERROR entry is logged by the
	// non-interactive front end. Defaults to os.Exit.
	Exit func(code int)
}

// factories build the collaborators of a run; tests swap them for fakes.
type factories struct {
	rasterizer func(Options) converters.Rasterizer
	recognizer func(Options) (converters.Recognizer, error)
	host       func() dialog.Host
	open       func(ctx context.Context, path string) error
	connect    func(url, name string, logger *slog.Logger) (progress.Publisher, func(), error)
}

func defaultFactories() factories {
	return factories{
		rasterizer: func(o Options) converters.Rasterizer {
			r := converters.NewPopplerRasterizer()
			if o.DPI > 0 {
				r.SetDPI(o.DPI)
			}
			return r
		},
		recognizer: func(o Options) (converters.Recognizer, error) {
			rec, err := converters.GetEngine(o.Engine)
			if err != nil {
				return nil, &ArgumentError{Err: err}
			}
			if o.Preprocess {
				return img.NewPreprocessor(rec, img.DefaultOptions()), nil
			}
			return rec, nil
		},
		host: func() dialog.Host { return dialog.NewZenity() },
		open: openFile,
		connect: func(url, name string, logger *slog.Logger) (progress.Publisher, func(), error) {
			c, err := bus.Connect(url, name, logger)
			if err != nil {
				return nil, nil, err
			}
			return c, c.Close, nil
		},
	}
}

type app struct {
	io IO
	f  factories
}

func newApp(streams IO) *app {
	if streams.Stdout == nil {
		streams.Stdout = os.Stdout
	}
	if streams.Stderr == nil {
		streams.Stderr = os.Stderr
	}
	if streams.Exit == nil {
		streams.Exit = os.Exit
	}
	return &app{io: streams, f: defaultFactories()}
}

// execute runs cmd and maps its result onto an exit status. --help exits 1
// like any run that did not produce output.
func (a *app) execute(ctx context.Context, cmd *cobra.Command, args []string, code *int) int {
	helped := false
	defaultHelp := cmd.HelpFunc()
	cmd.SetHelpFunc(func(c *cobra.Command, s []string) {
		helped = true
		defaultHelp(c, s)
	})
	cmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		return &ArgumentError{Err: err}
	})
	cmd.SetArgs(args)
	cmd.SetOut(a.io.Stdout)
	cmd.SetErr(a.io.Stderr)
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	err := cmd.ExecuteContext(ctx)
	if helped {
		return 1
	}
	if err != nil {
		_, _ = fmt.Fprintf(a.io.Stderr, "Error: %v\n", err)
		var argErr *ArgumentError
		if errors.As(err, &argErr) {
			_, _ = fmt.Fprint(a.io.Stderr, cmd.UsageString())
		}
		return 1
	}
	return *code
}

// session is what differs between the two front ends for one run.
type session struct {
	reporter     progress.Reporter
	console      io.Writer
	errorIsFatal bool
}

// runJob opens the log sink, wires events and hooks, and drives the job.
func (a *app) runJob(ctx context.Context, job pipeline.Job, opts Options, rec converters.Recognizer, s session, logger *slog.Logger) (pipeline.Result, error) {
	runID := uuid.NewString()
	logger = logger.With("run_id", runID)

	var (
		pub      progress.Publisher
		closeBus = func() {}
	)
	if opts.NATSURL != "" {
		p, closer, err := a.f.connect(opts.NATSURL, "pdf2text", logger)
		if err != nil {
			logger.Warn("connect to NATS failed, events disabled", "nats_url", opts.NATSURL, "err", err)
		} else {
			pub = p
			closed := false
			closeBus = func() {
				if !closed {
					closed = true
					closer()
				}
			}
			logger.Debug("connected to NATS", "nats_url", opts.NATSURL, "subject", opts.NATSSubject)
		}
	}
	defer closeBus()

	log, err := runlog.Open(job.LogPath, runlog.Options{
		Console:      s.console,
		ErrorIsFatal: s.errorIsFatal,
		Exit: func(code int) {
			closeBus()
			a.io.Exit(code)
		},
	})
	if err != nil {
		return pipeline.Result{}, err
	}
	defer log.Close()

	reporters := progress.Multi{s.reporter}
	driverOpts := []pipeline.Option{
		pipeline.WithRunID(runID),
		pipeline.WithLogger(logger),
	}
	if pub != nil {
		reporters = append(reporters, progress.NewEvents(pub, opts.NATSSubject+".progress", runID, logger))
		driverOpts = append(driverOpts, pipeline.WithEvents(pub, opts.NATSSubject))
	}
	driverOpts = append(driverOpts, pipeline.WithReporter(reporters))

	if opts.Report != "" {
		driverOpts = append(driverOpts, pipeline.OnDone(func(r pipeline.Result) {
			if err := WriteReport(opts.Report, r.Report); err != nil {
				logger.Warn("write report failed", "path", opts.Report, "err", err)
				_, _ = fmt.Fprintf(a.io.Stderr, "Could not write report: %v\n", err)
			}
		}))
	}
	if opts.Summary {
		driverOpts = append(driverOpts, pipeline.OnDone(func(r pipeline.Result) {
			PrintSummary(a.io.Stdout, r.Report)
		}))
	}

	driver := pipeline.New(a.f.rasterizer(opts), rec, log, driverOpts...)
	result := driver.Run(ctx, job)
	logger.Debug("run log written", "path", job.LogPath,
		"warnings", log.Count(runlog.SeverityWarning), "errors", log.Count(runlog.SeverityError))
	return result, nil
}

// newLogger writes diagnostic logs to stderr. Without --debug only warnings
// reach the terminal; the run log is the operator-facing record.
func newLogger(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelWarn
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
		NoColor:    !isTerminal(w),
	}))
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
