// Package cli builds the pdf2text command line and dialog front ends.
package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tendant/simple-ocr/internal/pipeline"
)

// EnvPrefix namespaces environment overrides, e.g. PDF2TEXT_LANG=deu.
const EnvPrefix = "PDF2TEXT"

const (
	DefaultEngine      = "tesseract"
	DefaultNATSSubject = "ocr.runs"
)

// Options are the resolved settings shared by both front ends. Positional
// paths are not part of it; they go straight into a pipeline.Job.
type Options struct {
	Language    string
	Cleanup     bool
	LogPath     string
	Engine      string
	Preprocess  bool
	DPI         int
	Report      string
	Summary     bool
	NATSURL     string
	NATSSubject string
	ConfigFile  string
	Debug       bool
	NoGUI       bool
}

// ArgumentError is a command line problem found before any file is touched.
type ArgumentError struct {
	Msg string
	Err error
}

func (e *ArgumentError) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	case e.Err != nil:
		return e.Err.Error()
	default:
		return e.Msg
	}
}

func (e *ArgumentError) Unwrap() error { return e.Err }

func registerFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("lang", pipeline.DefaultLanguage, "OCR language code")
	f.Bool("cleanup", false, "delete page images when finished")
	f.String("log", pipeline.DefaultLogPath, "log file path")
	f.String("engine", DefaultEngine, "recognition engine")
	f.Bool("preprocess", false, "grayscale, contrast and sharpen pages before recognition")
	f.Int("dpi", 0, "rasterization resolution (0 keeps the pdftoppm default)")
	f.String("report", "", "write a run report (.yaml, .yml or .json)")
	f.Bool("summary", false, "print a per-page summary table")
	f.String("nats-url", "", "publish run events to this NATS server")
	f.String("nats-subject", DefaultNATSSubject, "subject for run events")
	f.String("config", "", "config file (yaml)")
	f.Bool("debug", false, "enable debug output")
}

// loadOptions merges flags, PDF2TEXT_* variables and the optional config
// file. An explicitly set flag wins over the environment, which wins over
// the file.
func loadOptions(v *viper.Viper, cmd *cobra.Command) (Options, error) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return Options{}, fmt.Errorf("bind flags: %w", err)
	}

	if cfgFile := v.GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Options{}, fmt.Errorf("read config %s: %w", cfgFile, err)
		}
	}

	opts := Options{
		Language:    strings.TrimSpace(v.GetString("lang")),
		Cleanup:     v.GetBool("cleanup"),
		LogPath:     v.GetString("log"),
		Engine:      v.GetString("engine"),
		Preprocess:  v.GetBool("preprocess"),
		DPI:         v.GetInt("dpi"),
		Report:      v.GetString("report"),
		Summary:     v.GetBool("summary"),
		NATSURL:     v.GetString("nats-url"),
		NATSSubject: v.GetString("nats-subject"),
		ConfigFile:  v.GetString("config"),
		Debug:       v.GetBool("debug"),
		NoGUI:       v.GetBool("no-gui"),
	}

	if opts.Language == "" {
		return Options{}, &ArgumentError{Msg: "--lang must not be empty"}
	}
	if opts.DPI < 0 {
		return Options{}, &ArgumentError{Msg: fmt.Sprintf("--dpi must not be negative, got %d", opts.DPI)}
	}
	if opts.LogPath == "" {
		opts.LogPath = pipeline.DefaultLogPath
	}
	if opts.Engine == "" {
		opts.Engine = DefaultEngine
	}
	if opts.NATSSubject == "" {
		opts.NATSSubject = DefaultNATSSubject
	}
	return opts, nil
}

// job builds the immutable unit of work from positional paths and options.
func (o Options) job(pdfPath, imageDir, outputPath string) pipeline.Job {
	return pipeline.Job{
		PDFPath:    pdfPath,
		ImageDir:   imageDir,
		OutputPath: outputPath,
		Language:   o.Language,
		Cleanup:    o.Cleanup,
		LogPath:    o.LogPath,
		Preprocess: o.Preprocess,
	}
}
