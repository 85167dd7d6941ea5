package converters

import (
	"fmt"

	"github.com/ledongthuc/pdf"
)

// ProbePageCount returns the page count recorded in the PDF. It is advisory:
// the rasterizer's output is what the pipeline trusts.
func ProbePageCount(path string) (n int, err error) {
	defer func() {
		// ledongthuc/pdf panics on some malformed xref tables.
		if r := recover(); r != nil {
			err = fmt.Errorf("probe %s: malformed pdf: %v", path, r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return 0, fmt.Errorf("probe %s: %w", path, err)
	}
	defer f.Close()

	return r.NumPage(), nil
}
