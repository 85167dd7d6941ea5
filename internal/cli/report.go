package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"

	"github.com/tendant/simple-ocr/pkg/schema"
)

// WriteReport saves the run report as JSON when path ends in .json and as
// YAML otherwise.
func WriteReport(path string, done schema.RunDone) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		data, err = json.MarshalIndent(done, "", "  ")
		data = append(data, '\n')
	default:
		data, err = yaml.Marshal(done)
	}
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report %s: %w", path, err)
	}
	return nil
}

// PrintSummary renders one row per page followed by the outcome line.
func PrintSummary(w io.Writer, done schema.RunDone) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Page", "Status", "Chars", "Time", "Reason"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetTablePadding("\t")
	table.SetNoWhiteSpace(true)

	for _, p := range done.Pages {
		table.Append([]string{
			strconv.Itoa(p.Page),
			string(p.Status),
			strconv.Itoa(p.Characters),
			(time.Duration(p.ProcessingTimeMs) * time.Millisecond).String(),
			p.Reason,
		})
	}
	table.Render()

	line := fmt.Sprintf("outcome: %s, pages: %d, failed: %d", done.Outcome, done.TotalPages, len(done.FailedPages))
	if done.Error != "" {
		line += fmt.Sprintf(", stage: %s, error: %s", done.Stage, done.Error)
	}
	_, _ = fmt.Fprintln(w, line)
}
