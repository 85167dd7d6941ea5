package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tendant/simple-ocr/internal/converters"
	"github.com/tendant/simple-ocr/internal/dialog"
	"github.com/tendant/simple-ocr/internal/pipeline"
	"github.com/tendant/simple-ocr/internal/progress"
	"github.com/tendant/simple-ocr/pkg/schema"
)

const dialogTitle = "PDF to Text"

// ExecuteDialog runs the interactive front end. With --no-gui it behaves
// exactly like Execute.
func ExecuteDialog(ctx context.Context, args []string, streams IO) int {
	a := newApp(streams)
	code := 0
	return a.execute(ctx, a.dialogCommand(&code), args, &code)
}

func (a *app) dialogCommand(code *int) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pdf2text-dialog [--no-gui <PDF_PATH> <IMG_DIR> <OUTPUT_TEXT_PATH>]",
		Short: "Extract text from a scanned PDF, asking for input in dialogs",
		Long:  batchLong + "\n\nWithout --no-gui every input is collected through zenity dialogs.",
		Args: func(cmd *cobra.Command, args []string) error {
			noGUI, _ := cmd.Flags().GetBool("no-gui")
			if noGUI || len(args) > 0 {
				return positionalPaths(cmd, args)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := loadOptions(viper.New(), cmd)
			if err != nil {
				return err
			}
			if opts.NoGUI {
				if err := positionalPaths(cmd, args); err != nil {
					return err
				}
				*code, err = a.runBatch(cmd.Context(), args, opts)
				return err
			}
			*code, err = a.runInteractive(cmd.Context(), args, opts)
			return err
		},
	}
	registerFlags(cmd)
	cmd.Flags().Bool("no-gui", false, "use the non-interactive command line instead of dialogs")
	return cmd
}

// runInteractive prompts for a job, runs it, and reports through dialogs.
// After a fatal error the operator may start over.
func (a *app) runInteractive(ctx context.Context, args []string, opts Options) (int, error) {
	logger := newLogger(a.io.Stderr, opts.Debug)
	host := a.f.host()
	if h, ok := host.(interface{ Available() bool }); ok && !h.Available() {
		return 1, errors.New("zenity is not installed; install it or run with --no-gui")
	}
	rec, err := a.f.recognizer(opts)
	if err != nil {
		return 1, err
	}

	for {
		job, err := promptJob(ctx, host, rec, args, opts)
		if errors.Is(err, dialog.ErrCancelled) {
			logger.Info("cancelled by operator")
			return 1, nil
		}
		if err != nil {
			return 1, err
		}

		s := a.dialogSession(ctx, host, logger)
		result, err := a.runJob(ctx, job, opts, rec, s, logger)
		// Runs that stop before the page loop never close the window.
		s.reporter.Finish()
		if err != nil {
			_ = host.Error(ctx, dialogTitle, err.Error())
			return 1, err
		}

		if result.Outcome.IsFatal() {
			_ = host.Error(ctx, dialogTitle, fmt.Sprintf("OCR failed while %s:\n%v", result.Outcome.Stage, result.Outcome.Err))
			again, err := host.Question(ctx, dialogTitle, "Try again?")
			if err != nil || !again {
				return 1, nil
			}
			args = nil
			continue
		}

		if result.Outcome.Kind == schema.OutcomeSuccessWithWarnings {
			_ = host.Warning(ctx, dialogTitle, fmt.Sprintf("%d page(s) could not be recognized: %s",
				len(result.Outcome.FailedPages), pageList(result.Outcome.FailedPages)))
		}
		open, err := host.Question(ctx, dialogTitle,
			fmt.Sprintf("OCR processing completed.\n\nText saved to:\n%s\n\nOpen it now?", result.Report.OutputPath))
		if err == nil && open {
			if err := a.f.open(ctx, result.Report.OutputPath); err != nil {
				_ = host.Error(ctx, dialogTitle, fmt.Sprintf("Could not open file:\n%v", err))
			}
		}
		return 0, nil
	}
}

func (a *app) dialogSession(ctx context.Context, host dialog.Host, logger *slog.Logger) session {
	s := session{reporter: progress.Nop{}, console: a.io.Stdout}
	w, err := host.Progress(ctx, dialogTitle, "Extracting text...")
	if err != nil {
		logger.Warn("progress dialog unavailable", "err", err)
		return s
	}
	s.reporter = progress.NewDialogStream(w)
	return s
}

// promptJob collects every input of a job. Positional paths, when given,
// replace the three path prompts.
func promptJob(ctx context.Context, host dialog.Host, rec converters.Recognizer, args []string, opts Options) (pipeline.Job, error) {
	var pdfPath, imageDir, outputPath string
	if len(args) == 3 {
		pdfPath, imageDir, outputPath = args[0], args[1], args[2]
	} else {
		var err error
		pdfPath, err = host.SelectFile(ctx, "Select PDF File",
			dialog.Filter{Name: "PDF files", Patterns: []string{"*.pdf", "*.PDF"}},
			dialog.Filter{Name: "All files", Patterns: []string{"*"}})
		if err != nil {
			return pipeline.Job{}, err
		}
		if imageDir, err = host.SelectDirectory(ctx, "Select Image Working Directory"); err != nil {
			return pipeline.Job{}, err
		}
		if outputPath, err = host.SaveFile(ctx, "Save Extracted Text As", DefaultOutputPath(pdfPath)); err != nil {
			return pipeline.Job{}, err
		}
	}

	langs, err := rec.Languages(ctx)
	if err != nil || len(langs) == 0 {
		langs = []string{opts.Language}
	}
	rows := make([][]string, 0, len(langs))
	for _, code := range langs {
		rows = append(rows, []string{code, LanguageName(code)})
	}
	lang, err := host.List(ctx, "OCR Language", "Choose the document language", []string{"Code", "Language"}, rows)
	if err != nil {
		return pipeline.Job{}, err
	}
	if lang = strings.TrimSpace(lang); lang != "" {
		opts.Language = lang
	}

	cleanup, err := host.Question(ctx, "Cleanup", "Delete the page images when finished?")
	if err != nil {
		return pipeline.Job{}, err
	}
	opts.Cleanup = cleanup

	logPath, err := host.Entry(ctx, "Log File", "Log file path", opts.LogPath)
	if err != nil {
		return pipeline.Job{}, err
	}
	if logPath = strings.TrimSpace(logPath); logPath != "" {
		opts.LogPath = logPath
	}

	return opts.job(pdfPath, imageDir, outputPath), nil
}

// DefaultOutputPath places <stem>_extracted.txt beside the PDF.
func DefaultOutputPath(pdfPath string) string {
	stem := strings.TrimSuffix(filepath.Base(pdfPath), filepath.Ext(pdfPath))
	return filepath.Join(filepath.Dir(pdfPath), stem+"_extracted.txt")
}

func pageList(pages []int) string {
	parts := make([]string, len(pages))
	for i, p := range pages {
		parts[i] = fmt.Sprint(p)
	}
	return strings.Join(parts, ", ")
}
