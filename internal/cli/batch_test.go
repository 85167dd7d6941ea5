package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/tendant/simple-ocr/internal/converters"
	"github.com/tendant/simple-ocr/internal/dialog"
	"github.com/tendant/simple-ocr/internal/pipeline/pipelinetest"
	"github.com/tendant/simple-ocr/internal/progress"
	"github.com/tendant/simple-ocr/pkg/schema"
)

type harness struct {
	app    *app
	stdout *bytes.Buffer
	stderr *bytes.Buffer
	exits  []int
	rast   *pipelinetest.Rasterizer
	rec    *pipelinetest.Recognizer
	dir    string
	pdf    string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		stdout: &bytes.Buffer{},
		stderr: &bytes.Buffer{},
		rast:   &pipelinetest.Rasterizer{Pages: 2},
		rec:    &pipelinetest.Recognizer{},
		dir:    t.TempDir(),
	}
	h.pdf = filepath.Join(h.dir, "scan.pdf")
	require.NoError(t, os.WriteFile(h.pdf, []byte("%PDF-1.4\n"), 0o644))

	h.app = newApp(IO{Stdout: h.stdout, Stderr: h.stderr, Exit: func(code int) { h.exits = append(h.exits, code) }})
	h.app.f.rasterizer = func(Options) converters.Rasterizer { return h.rast }
	h.app.f.recognizer = func(Options) (converters.Recognizer, error) { return h.rec, nil }
	h.app.f.host = func() dialog.Host {
		t.Fatal("dialog host must not be used")
		return nil
	}
	return h
}

func (h *harness) path(name string) string { return filepath.Join(h.dir, name) }

// chdir changes the working directory for the duration of the test
// (equivalent of testing.T.Chdir, which needs Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

func (h *harness) batch(args ...string) int {
	code := 0
	return h.app.execute(context.Background(), h.app.batchCommand("pdf2text", &code), args, &code)
}

func (h *harness) paths() []string {
	return []string{h.pdf, h.path("images"), h.path("out.txt"), "--log=" + h.path("run.log")}
}

func TestBatchHelpExitsOne(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, 1, h.batch("--help"))
	assert.Contains(t, h.stdout.String(), "Usage:")
	assert.Contains(t, h.stdout.String(), "--cleanup")
	assert.Equal(t, 0, h.rast.Calls())
}

func TestBatchArgumentErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"too few", []string{"scan.pdf", "images"}, "expected PDF_PATH IMG_DIR OUTPUT_TEXT_PATH"},
		{"too many", []string{"a", "b", "c", "d"}, "got 4 argument(s)"},
		{"unknown flag", []string{"--bogus", "a", "b", "c"}, "unknown flag: --bogus"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			chdir(t, h.dir)

			assert.Equal(t, 1, h.batch(tt.args...))
			assert.Contains(t, h.stderr.String(), tt.want)
			assert.Contains(t, h.stderr.String(), "Usage:")
			assert.Equal(t, 0, h.rast.Calls())
			_, err := os.Stat(h.path("ocr_log.txt"))
			assert.True(t, os.IsNotExist(err), "no log sink before arguments are valid")
		})
	}
}

func TestBatchSuccess(t *testing.T) {
	h := newHarness(t)

	require.Equal(t, 0, h.batch(h.paths()...), h.stderr.String())

	out, err := os.ReadFile(h.path("out.txt"))
	require.NoError(t, err)
	assert.Equal(t, "\n\n--- Page 1 ---\ntext of page 1\n\n\n--- Page 2 ---\ntext of page 2\n", string(out))

	log, err := os.ReadFile(h.path("run.log"))
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(log), "[SUCCESS]"))
	assert.Contains(t, h.stdout.String(), "[SUCCESS]", "log entries are mirrored to the console")
	assert.Empty(t, h.exits)
}

func TestBatchUnsupportedLanguageExits(t *testing.T) {
	h := newHarness(t)

	code := h.batch(append(h.paths(), "--lang=xyz")...)

	assert.Equal(t, 1, code)
	assert.Equal(t, []int{1}, h.exits)
	log, err := os.ReadFile(h.path("run.log"))
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(log), "[ERROR]"))
	_, err = os.Stat(h.path("images"))
	assert.True(t, os.IsNotExist(err))
}

func TestBatchPageFailureExitsZero(t *testing.T) {
	h := newHarness(t)
	h.rec.Fail = map[int]bool{2: true}

	assert.Equal(t, 0, h.batch(h.paths()...))
	log, err := os.ReadFile(h.path("run.log"))
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(log), "[WARNING]"))
}

func TestBatchUnknownEngine(t *testing.T) {
	h := newHarness(t)
	h.app.f.recognizer = defaultFactories().recognizer

	assert.Equal(t, 1, h.batch(append(h.paths(), "--engine=nope")...))
	assert.Contains(t, h.stderr.String(), "unsupported recognition engine: nope")
	assert.Equal(t, 0, h.rast.Calls())
}

func TestBatchReport(t *testing.T) {
	for _, ext := range []string{".json", ".yaml"} {
		t.Run(ext, func(t *testing.T) {
			h := newHarness(t)
			h.rec.Fail = map[int]bool{1: true}
			report := h.path("report" + ext)

			require.Equal(t, 0, h.batch(append(h.paths(), "--report="+report)...))

			data, err := os.ReadFile(report)
			require.NoError(t, err)
			var done schema.RunDone
			if ext == ".json" {
				require.NoError(t, json.Unmarshal(data, &done))
			} else {
				require.NoError(t, yaml.Unmarshal(data, &done))
			}
			assert.Equal(t, schema.OutcomeSuccessWithWarnings, done.Outcome)
			assert.Equal(t, []int{1}, done.FailedPages)
			assert.Equal(t, 2, done.TotalPages)
			require.Len(t, done.Pages, 2)
			assert.Equal(t, schema.PageFailed, done.Pages[0].Status)
			assert.NotEmpty(t, done.RunID)
		})
	}
}

func TestBatchReportWrittenBeforeFatalExit(t *testing.T) {
	h := newHarness(t)
	report := h.path("report.json")

	h.batch(append(h.paths(), "--lang=xyz", "--report="+report)...)

	data, err := os.ReadFile(report)
	require.NoError(t, err)
	var done schema.RunDone
	require.NoError(t, json.Unmarshal(data, &done))
	assert.Equal(t, schema.OutcomeFatal, done.Outcome)
	assert.Equal(t, schema.FailureTypePreflight, done.FailureType)
}

func TestBatchSummary(t *testing.T) {
	h := newHarness(t)

	require.Equal(t, 0, h.batch(append(h.paths(), "--summary")...))
	assert.Contains(t, h.stdout.String(), "PAGE")
	assert.Contains(t, h.stdout.String(), "recognized")
	assert.Contains(t, h.stdout.String(), "outcome: success, pages: 2, failed: 0")
}

type recordingPublisher struct {
	subjects []string
}

func (p *recordingPublisher) PublishJSON(subject string, v any) error {
	p.subjects = append(p.subjects, subject)
	return nil
}

func TestBatchPublishesEvents(t *testing.T) {
	h := newHarness(t)
	pub := &recordingPublisher{}
	closed := 0
	h.app.f.connect = func(url, name string, logger *slog.Logger) (progress.Publisher, func(), error) {
		assert.Equal(t, "nats://fake:4222", url)
		return pub, func() { closed++ }, nil
	}

	require.Equal(t, 0, h.batch(append(h.paths(), "--nats-url=nats://fake:4222", "--nats-subject=scans")...))

	assert.Equal(t, 1, closed)
	assert.Contains(t, pub.subjects, "scans")
	assert.Contains(t, pub.subjects, "scans.lifecycle")
	assert.Contains(t, pub.subjects, "scans.progress")
	assert.Equal(t, "scans", pub.subjects[len(pub.subjects)-1])
}
