// Package progress renders page progress. Reporters only observe the
// pipeline; a lost or failed write changes what is displayed, never the run.
package progress

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/tendant/simple-ocr/pkg/schema"
)

// Reporter consumes (current, total) page events.
type Reporter interface {
	Report(current, total int)
	Finish()
}

// Percent returns current/total as a whole percentage clamped to 0..100.
func Percent(current, total int) int {
	if total <= 0 || current <= 0 {
		return 0
	}
	if current >= total {
		return 100
	}
	return current * 100 / total
}

// Nop discards every event.
type Nop struct{}

func (Nop) Report(current, total int) {}
func (Nop) Finish()                   {}

// Multi fans events out to several reporters.
type Multi []Reporter

func (m Multi) Report(current, total int) {
	for _, r := range m {
		r.Report(current, total)
	}
}

func (m Multi) Finish() {
	for _, r := range m {
		r.Finish()
	}
}

// Bar draws a fixed-width bar rewritten in place with a carriage return.
type Bar struct {
	w     io.Writer
	width int
	drawn bool
	last  string
	fill  string
	empty string
}

const DefaultBarWidth = 40

func NewBar(w io.Writer, width int) *Bar {
	if width <= 0 {
		width = DefaultBarWidth
	}
	return &Bar{w: w, width: width, fill: "#", empty: "-"}
}

func (b *Bar) Report(current, total int) {
	if total <= 0 {
		return
	}
	pct := Percent(current, total)
	filled := b.width * pct / 100
	b.last = fmt.Sprintf("[%s%s] %3d%% (%d/%d)",
		strings.Repeat(b.fill, filled), strings.Repeat(b.empty, b.width-filled), pct, current, total)
	_, _ = io.WriteString(b.w, "\r"+b.last)
	b.drawn = true
}

// Writer returns a writer for text that shares the bar's terminal. Each write
// blanks the bar line, prints the text, then redraws the bar below it.
func (b *Bar) Writer() io.Writer { return barWriter{b} }

type barWriter struct{ b *Bar }

func (w barWriter) Write(p []byte) (int, error) {
	b := w.b
	if b.drawn {
		_, _ = io.WriteString(b.w, "\r"+strings.Repeat(" ", len(b.last))+"\r")
	}
	n, err := b.w.Write(p)
	if b.drawn {
		_, _ = io.WriteString(b.w, "\r"+b.last)
	}
	return n, err
}

// Finish moves past the bar line so later output starts on a fresh line.
func (b *Bar) Finish() {
	if b.drawn {
		_, _ = fmt.Fprintln(b.w)
		b.drawn = false
	}
}

// DialogStream feeds a dialog host's progress window: a percentage line
// followed by a "# "-prefixed status line per event.
type DialogStream struct {
	w io.Writer
}

func NewDialogStream(w io.Writer) *DialogStream {
	return &DialogStream{w: w}
}

func (d *DialogStream) Report(current, total int) {
	if total <= 0 {
		return
	}
	_, _ = fmt.Fprintf(d.w, "%d\n# Processing page %d of %d\n", Percent(current, total), current, total)
}

// Finish closes the stream when it owns a closer, which lets the dialog
// window close itself.
func (d *DialogStream) Finish() {
	if c, ok := d.w.(io.Closer); ok {
		_ = c.Close()
	}
}

// Publisher is satisfied by bus.Client.
type Publisher interface {
	PublishJSON(subject string, v any) error
}

// Events publishes each page event as schema.PageProgress.
type Events struct {
	pub     Publisher
	subject string
	runID   string
	logger  *slog.Logger
	now     func() time.Time
}

func NewEvents(pub Publisher, subject, runID string, logger *slog.Logger) *Events {
	if logger == nil {
		logger = slog.Default()
	}
	return &Events{pub: pub, subject: subject, runID: runID, logger: logger, now: time.Now}
}

func (e *Events) Report(current, total int) {
	msg := schema.PageProgress{
		RunID:      e.runID,
		Page:       current,
		TotalPages: total,
		Percent:    Percent(current, total),
		HappenedAt: e.now().Unix(),
	}
	if err := e.pub.PublishJSON(e.subject, msg); err != nil {
		e.logger.Warn("publish progress failed", "subject", e.subject, "page", current, "err", err)
	}
}

func (e *Events) Finish() {}
