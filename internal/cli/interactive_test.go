package cli

import (
	"bytes"
	"context"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-ocr/internal/dialog"
)

// scriptedHost answers prompts from queues. An empty queue behaves like the
// operator pressing Cancel.
type scriptedHost struct {
	files     []string
	dirs      []string
	saves     []string
	lists     []string
	questions []bool
	entries   []string

	saveDefaults []string
	listRows     [][][]string
	asked        []string
	infos        []string
	warnings     []string
	errors       []string
	progress     bytes.Buffer
	closes       int
}

func pop[T any](q *[]T) (T, error) {
	var zero T
	if len(*q) == 0 {
		return zero, dialog.ErrCancelled
	}
	v := (*q)[0]
	*q = (*q)[1:]
	return v, nil
}

func (h *scriptedHost) Info(ctx context.Context, title, text string) error {
	h.infos = append(h.infos, text)
	return nil
}

func (h *scriptedHost) Warning(ctx context.Context, title, text string) error {
	h.warnings = append(h.warnings, text)
	return nil
}

func (h *scriptedHost) Error(ctx context.Context, title, text string) error {
	h.errors = append(h.errors, text)
	return nil
}

func (h *scriptedHost) Question(ctx context.Context, title, text string) (bool, error) {
	h.asked = append(h.asked, text)
	v, err := pop(&h.questions)
	if err != nil {
		return false, nil
	}
	return v, nil
}

func (h *scriptedHost) SelectFile(ctx context.Context, title string, filters ...dialog.Filter) (string, error) {
	return pop(&h.files)
}

func (h *scriptedHost) SelectDirectory(ctx context.Context, title string) (string, error) {
	return pop(&h.dirs)
}

func (h *scriptedHost) SaveFile(ctx context.Context, title, defaultPath string) (string, error) {
	h.saveDefaults = append(h.saveDefaults, defaultPath)
	return pop(&h.saves)
}

func (h *scriptedHost) List(ctx context.Context, title, text string, columns []string, rows [][]string) (string, error) {
	h.listRows = append(h.listRows, rows)
	return pop(&h.lists)
}

func (h *scriptedHost) Entry(ctx context.Context, title, text, defaultValue string) (string, error) {
	return pop(&h.entries)
}

func (h *scriptedHost) Progress(ctx context.Context, title, text string) (io.WriteCloser, error) {
	return &progressCloser{h: h}, nil
}

type progressCloser struct{ h *scriptedHost }

func (p *progressCloser) Write(b []byte) (int, error) { return p.h.progress.Write(b) }

func (p *progressCloser) Close() error {
	p.h.closes++
	return nil
}

func (h *harness) withHost(host *scriptedHost) *scriptedHost {
	h.app.f.host = func() dialog.Host { return host }
	return host
}

func (h *harness) interactive(args ...string) int {
	code := 0
	return h.app.execute(context.Background(), h.app.dialogCommand(&code), args, &code)
}

func TestInteractiveSuccess(t *testing.T) {
	h := newHarness(t)
	var opened []string
	h.app.f.open = func(ctx context.Context, path string) error {
		opened = append(opened, path)
		return nil
	}
	host := h.withHost(&scriptedHost{
		files:     []string{h.pdf},
		dirs:      []string{h.path("images")},
		saves:     []string{h.path("out.txt")},
		lists:     []string{"eng"},
		questions: []bool{true, true},
		entries:   []string{h.path("run.log")},
	})

	require.Equal(t, 0, h.interactive(), h.stderr.String())

	assert.Equal(t, []string{h.path("scan_extracted.txt")}, host.saveDefaults)
	assert.Contains(t, host.listRows[0], []string{"eng", "English"})
	assert.Contains(t, host.progress.String(), "100\n# Processing page 2 of 2\n")
	assert.GreaterOrEqual(t, host.closes, 1)
	assert.Empty(t, host.errors)
	assert.Equal(t, []string{h.path("out.txt")}, opened)

	_, err := os.Stat(h.path("images"))
	assert.True(t, os.IsNotExist(err), "cleanup was accepted")
	_, err = os.Stat(h.path("run.log"))
	assert.NoError(t, err)
}

func TestInteractiveWarnsAboutFailedPages(t *testing.T) {
	h := newHarness(t)
	h.rec.Fail = map[int]bool{2: true}
	host := h.withHost(&scriptedHost{
		files:     []string{h.pdf},
		dirs:      []string{h.path("images")},
		saves:     []string{h.path("out.txt")},
		lists:     []string{"eng"},
		questions: []bool{false, false},
		entries:   []string{h.path("run.log")},
	})

	assert.Equal(t, 0, h.interactive())
	require.Len(t, host.warnings, 1)
	assert.Contains(t, host.warnings[0], "2")
}

func TestInteractiveFatalOffersRetry(t *testing.T) {
	h := newHarness(t)
	host := h.withHost(&scriptedHost{
		files:     []string{h.pdf, h.pdf},
		dirs:      []string{h.path("images"), h.path("images")},
		saves:     []string{h.path("out.txt"), h.path("out.txt")},
		lists:     []string{"xyz", "eng"},
		questions: []bool{false, true, false, false},
		entries:   []string{h.path("run.log"), h.path("run.log")},
	})

	assert.Equal(t, 0, h.interactive())
	require.Len(t, host.errors, 1)
	assert.Contains(t, host.errors[0], "validating")
	assert.Contains(t, host.asked, "Try again?")
	assert.Empty(t, h.exits, "the interactive log does not exit on errors")
	_, err := os.Stat(h.path("out.txt"))
	assert.NoError(t, err)
}

func TestInteractiveFatalWithoutRetry(t *testing.T) {
	h := newHarness(t)
	h.rast.Pages = 0
	host := h.withHost(&scriptedHost{
		files:     []string{h.pdf},
		dirs:      []string{h.path("images")},
		saves:     []string{h.path("out.txt")},
		lists:     []string{"eng"},
		questions: []bool{false, false},
		entries:   []string{h.path("run.log")},
	})

	assert.Equal(t, 1, h.interactive())
	require.Len(t, host.errors, 1)
	assert.Contains(t, host.errors[0], "rasterizing")
}

func TestInteractiveCancel(t *testing.T) {
	h := newHarness(t)
	chdir(t, h.dir)
	h.withHost(&scriptedHost{})

	assert.Equal(t, 1, h.interactive())
	assert.Equal(t, 0, h.rast.Calls())
	_, err := os.Stat(h.path("ocr_log.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestInteractiveNoGUIUsesBatch(t *testing.T) {
	h := newHarness(t)

	require.Equal(t, 0, h.interactive(append([]string{"--no-gui"}, h.paths()...)...))
	_, err := os.Stat(h.path("out.txt"))
	assert.NoError(t, err)
}

func TestInteractiveNoGUIRequiresPaths(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, 1, h.interactive("--no-gui"))
	assert.Contains(t, h.stderr.String(), "expected PDF_PATH IMG_DIR OUTPUT_TEXT_PATH")
}

// missingHost reports that its dialog program is not installed.
type missingHost struct{ scriptedHost }

func (missingHost) Available() bool { return false }

func TestInteractiveWithoutZenity(t *testing.T) {
	h := newHarness(t)
	h.app.f.host = func() dialog.Host { return &missingHost{} }

	assert.Equal(t, 1, h.interactive())
	assert.Contains(t, h.stderr.String(), "zenity is not installed")
	assert.Equal(t, 0, h.rast.Calls())
}
