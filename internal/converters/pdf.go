package converters

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"time"
)

// PagePrefix is the output prefix handed to pdftoppm. Files come back as
// page-1.png, page-01.png, ... depending on the document's page count.
const PagePrefix = "page"

var pageFilePattern = regexp.MustCompile(`^` + PagePrefix + `-(\d+)\.png$`)

// PopplerRasterizer uses Poppler's pdftoppm to render every page of a PDF
type PopplerRasterizer struct {
	binary string
	dpi    int // 0 leaves pdftoppm's default (150)
	first  int // 0 starts at the first page
	last   int // 0 ends at the last page
}

// NewPopplerRasterizer creates a new Poppler-based rasterizer
func NewPopplerRasterizer() *PopplerRasterizer {
	return &PopplerRasterizer{binary: "pdftoppm"}
}

// Name returns the rasterizer name
func (p *PopplerRasterizer) Name() string {
	return "poppler"
}

func (p *PopplerRasterizer) Executables() []string {
	return []string{p.binary}
}

// Rasterize renders the whole document, or the configured page range, with a
// single pdftoppm invocation
func (p *PopplerRasterizer) Rasterize(ctx context.Context, pdfPath, imageDir string) ([]PageImage, error) {
	if err := os.MkdirAll(imageDir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", imageDir, err)
	}

	before, err := SnapshotPages(imageDir)
	if err != nil {
		return nil, &RasterizationError{Reason: "list existing page images", Err: err}
	}

	// -png: Output format
	// -r: Resolution in DPI (optional)
	// -f/-l: First and last page (optional)
	args := []string{"-png"}
	if p.dpi > 0 {
		args = append(args, "-r", strconv.Itoa(p.dpi))
	}
	if p.first > 0 {
		args = append(args, "-f", strconv.Itoa(p.first))
	}
	if p.last > 0 {
		args = append(args, "-l", strconv.Itoa(p.last))
	}
	args = append(args, pdfPath, filepath.Join(imageDir, PagePrefix))

	cmd := exec.CommandContext(ctx, p.binary, args...)

	outputBytes, err := cmd.CombinedOutput()
	if err != nil {
		return nil, &RasterizationError{Reason: "pdftoppm returned non-zero status", Output: string(outputBytes), Err: err}
	}

	pages, err := CollectPages(imageDir, before)
	if err != nil {
		return nil, &RasterizationError{Reason: "list page images", Err: err}
	}
	if len(pages) == 0 {
		return nil, &RasterizationError{Reason: "no images generated from PDF", Output: string(outputBytes)}
	}
	return pages, nil
}

// SetDPI sets the rendering resolution in DPI
// Higher DPI = better recognition but slower processing
func (p *PopplerRasterizer) SetDPI(dpi int) {
	if dpi > 0 {
		p.dpi = dpi
	}
}

// SetPageRange limits rendering to pages first..last (1-based, inclusive).
// Zero leaves that end of the range open.
func (p *PopplerRasterizer) SetPageRange(first, last int) {
	p.first, p.last = max(first, 0), max(last, 0)
}

type fileStamp struct {
	size    int64
	modTime time.Time
}

// Snapshot records the page images present in a directory before a run.
type Snapshot map[string]fileStamp

// SnapshotPages records name, size and modification time of every page image
// in dir. A missing directory yields an empty snapshot.
func SnapshotPages(dir string) (Snapshot, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return Snapshot{}, nil
	}
	if err != nil {
		return nil, err
	}
	snap := make(Snapshot)
	for _, entry := range entries {
		if entry.IsDir() || !pageFilePattern.MatchString(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, err
		}
		snap[entry.Name()] = fileStamp{size: info.Size(), modTime: info.ModTime()}
	}
	return snap, nil
}

// unchanged reports whether info matches the recorded image of the same name.
func (s Snapshot) unchanged(name string, info fs.FileInfo) bool {
	prev, ok := s[name]
	return ok && prev.size == info.Size() && prev.modTime.Equal(info.ModTime())
}

// CollectPages lists the page images in dir that are absent from before or
// were rewritten since, ordered by numeric page index. Images left behind by
// earlier runs are ignored. A nil snapshot accepts every page image.
func CollectPages(dir string, before Snapshot) ([]PageImage, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	byIndex := make(map[int]PageImage)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m := pageFilePattern.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		index, err := strconv.Atoi(m[1])
		if err != nil || index <= 0 {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, err
		}
		if before.unchanged(entry.Name(), info) {
			continue
		}
		path, err := filepath.Abs(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		// On a collision keep the widest padding, which is what this
		// document's page count produces.
		if prev, ok := byIndex[index]; ok && len(filepath.Base(prev.Path)) >= len(entry.Name()) {
			continue
		}
		byIndex[index] = PageImage{Index: index, Path: path}
	}

	pages := make([]PageImage, 0, len(byIndex))
	for _, page := range byIndex {
		pages = append(pages, page)
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].Index < pages[j].Index })
	return pages, nil
}
