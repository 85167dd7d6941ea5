// Package runlog writes the operator-facing run log: one timestamped,
// severity-tagged line per entry, mirrored in colour to the console.
package runlog

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

type Severity string

const (
	SeverityInfo    Severity = "INFO"
	SeveritySuccess Severity = "SUCCESS"
	SeverityWarning Severity = "WARNING"
	SeverityError   Severity = "ERROR"
)

const TimestampLayout = "2006-01-02 15:04:05"

var colors = map[Severity]string{
	SeverityInfo:    "\033[34m",
	SeveritySuccess: "\033[32m",
	SeverityWarning: "\033[33m",
	SeverityError:   "\033[31m",
}

const colorReset = "\033[0m"

// Entry is one line of the run log.
type Entry struct {
	Time     time.Time
	Severity Severity
	Message  string
}

// String renders the entry in sink format without a trailing newline.
func (e Entry) String() string {
	return fmt.Sprintf("[%s] [%s] %s", e.Time.Format(TimestampLayout), e.Severity, e.Message)
}

type Options struct {
	// Console receives the mirrored rendering. nil disables mirroring.
	Console io.Writer

	// Color forces colour on or off; nil detects a terminal.
	Color *bool

	// ErrorIsFatal makes every ERROR entry close the log and exit with
	// status 1. The non-interactive front end sets it.
	ErrorIsFatal bool

	// Exit defaults to os.Exit.
	Exit func(code int)

	// Now defaults to time.Now.
	Now func() time.Time
}

// Logger appends entries to a sink. It is safe for a single writer; the
// mutex only keeps sink and console lines paired.
type Logger struct {
	mu      sync.Mutex
	sink    io.Writer
	closer  io.Closer
	console io.Writer
	color   bool
	opts    Options
	counts  map[Severity]int
}

// Open truncates the log file at path and returns a Logger appending to it.
func Open(path string, opts Options) (*Logger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log %s: %w", path, err)
	}
	l := New(f, opts)
	l.closer = f
	return l, nil
}

// New returns a Logger writing to sink.
func New(sink io.Writer, opts Options) *Logger {
	if opts.Exit == nil {
		opts.Exit = os.Exit
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	l := &Logger{
		sink:    sink,
		console: opts.Console,
		opts:    opts,
		counts:  make(map[Severity]int),
	}
	if opts.Color != nil {
		l.color = *opts.Color
	} else {
		l.color = detectColor(opts.Console)
	}
	return l
}

func (l *Logger) Info(msg string)    { l.Log(SeverityInfo, msg) }
func (l *Logger) Success(msg string) { l.Log(SeveritySuccess, msg) }
func (l *Logger) Warning(msg string) { l.Log(SeverityWarning, msg) }
func (l *Logger) Error(msg string)   { l.Log(SeverityError, msg) }

func (l *Logger) Infof(format string, args ...any)    { l.Log(SeverityInfo, fmt.Sprintf(format, args...)) }
func (l *Logger) Successf(format string, args ...any) { l.Log(SeveritySuccess, fmt.Sprintf(format, args...)) }
func (l *Logger) Warningf(format string, args ...any) { l.Log(SeverityWarning, fmt.Sprintf(format, args...)) }

// Log appends one entry per line of msg. Write errors are ignored: losing a
// log line must not change the run's outcome.
func (l *Logger) Log(sev Severity, msg string) {
	l.mu.Lock()
	now := l.opts.Now()
	for _, line := range splitLines(msg) {
		entry := Entry{Time: now, Severity: sev, Message: line}
		if l.sink != nil {
			_, _ = io.WriteString(l.sink, entry.String()+"\n")
		}
		if l.console != nil {
			_, _ = io.WriteString(l.console, l.render(entry)+"\n")
		}
	}
	l.counts[sev]++
	fatal := sev == SeverityError && l.opts.ErrorIsFatal
	l.mu.Unlock()

	if fatal {
		_ = l.Close()
		l.opts.Exit(1)
	}
}

// Count reports how many Log calls used sev.
func (l *Logger) Count(sev Severity) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.counts[sev]
}

func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closer == nil {
		return nil
	}
	err := l.closer.Close()
	l.closer = nil
	l.sink = nil
	return err
}

func (l *Logger) render(e Entry) string {
	if !l.color {
		return e.String()
	}
	return fmt.Sprintf("[%s] %s[%s]%s %s", e.Time.Format(TimestampLayout), colors[e.Severity], e.Severity, colorReset, e.Message)
}

// splitLines keeps the one-entry-per-line format for multi-line messages
// such as engine stderr.
func splitLines(msg string) []string {
	msg = strings.TrimRight(strings.ReplaceAll(msg, "\r\n", "\n"), "\n")
	if msg == "" {
		return []string{""}
	}
	return strings.Split(msg, "\n")
}

func detectColor(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
