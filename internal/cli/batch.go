package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tendant/simple-ocr/internal/progress"
)

const batchLong = `Extract text from a scanned PDF with OCR.

Each page is rendered to PNG with pdftoppm, recognized with tesseract and
appended to OUTPUT_TEXT_PATH under a "--- Page N ---" marker. Pages that
fail recognition keep their marker with an empty body.

Every option can also be set as PDF2TEXT_<OPTION> (e.g. PDF2TEXT_LANG=deu)
or in the file given with --config.`

// Execute runs the non-interactive front end and returns the exit status.
func Execute(ctx context.Context, args []string, streams IO) int {
	a := newApp(streams)
	code := 0
	return a.execute(ctx, a.batchCommand("pdf2text", &code), args, &code)
}

func (a *app) batchCommand(name string, code *int) *cobra.Command {
	cmd := &cobra.Command{
		Use:   name + " <PDF_PATH> <IMG_DIR> <OUTPUT_TEXT_PATH>",
		Short: "Extract text from a scanned PDF with OCR",
		Long:  batchLong,
		Args:  positionalPaths,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := loadOptions(viper.New(), cmd)
			if err != nil {
				return err
			}
			*code, err = a.runBatch(cmd.Context(), args, opts)
			return err
		},
	}
	registerFlags(cmd)
	return cmd
}

func positionalPaths(cmd *cobra.Command, args []string) error {
	if len(args) != 3 {
		return &ArgumentError{Msg: fmt.Sprintf("expected PDF_PATH IMG_DIR OUTPUT_TEXT_PATH, got %d argument(s)", len(args))}
	}
	return nil
}

// runBatch drives one job with the log policy that exits on the first ERROR.
func (a *app) runBatch(ctx context.Context, args []string, opts Options) (int, error) {
	logger := newLogger(a.io.Stderr, opts.Debug)
	rec, err := a.f.recognizer(opts)
	if err != nil {
		return 1, err
	}

	var (
		reporter progress.Reporter = progress.Nop{}
		console  io.Writer         = a.io.Stdout
	)
	if isTerminal(a.io.Stdout) {
		bar := progress.NewBar(a.io.Stdout, 0)
		reporter = bar
		console = bar.Writer()
	}

	job := opts.job(args[0], args[1], args[2])
	result, err := a.runJob(ctx, job, opts, rec, session{reporter: reporter, console: console, errorIsFatal: true}, logger)
	if err != nil {
		return 1, err
	}
	return result.Outcome.ExitCode(), nil
}
