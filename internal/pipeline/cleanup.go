package pipeline

import (
	"errors"
	"fmt"
	"os"

	"github.com/tendant/simple-ocr/internal/converters"
)

// CleanupResult lists what cleanup could not remove. None of it affects the
// run's outcome.
type CleanupResult struct {
	Removed   int
	FileErrs  []error
	DirErr    error
	DirExists bool
}

// Cleanup deletes every page image and then tries to remove the image
// directory. Missing files or a missing directory are not errors, so running
// it twice is harmless.
func Cleanup(pages []converters.PageImage, imageDir string) CleanupResult {
	var res CleanupResult
	for _, page := range pages {
		err := os.Remove(page.Path)
		switch {
		case err == nil:
			res.Removed++
		case errors.Is(err, os.ErrNotExist):
		default:
			res.FileErrs = append(res.FileErrs, fmt.Errorf("remove page %d: %w", page.Index, err))
		}
	}

	if err := os.Remove(imageDir); err != nil && !errors.Is(err, os.ErrNotExist) {
		res.DirErr = err
		res.DirExists = true
	}
	return res
}
