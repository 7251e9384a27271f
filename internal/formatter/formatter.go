// package formatter renders removal plans and history for the console and for export (CSV, JSON, plain text)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/cuefix/internal/models"
	"github.com/desertthunder/cuefix/internal/shared"
)

// Export formats accepted by [Render] and [WriteExport].
const (
	FormatText = "txt"
	FormatCSV  = "csv"
	FormatJSON = "json"
)

// ReportLine is the one-line console report for an applied plan.
func ReportLine(playlistName string, count int) string {
	return fmt.Sprintf("%s: found %d item(s) to remove on playlist named %s", shared.ComponentName, count, playlistName)
}

// PlanRow is one marked entry of a plan.
type PlanRow struct {
	Position int    `json:"position"`
	Location string `json:"location"`
	Subsong  int    `json:"subsong,omitempty"`
	Reason   string `json:"reason"`
}

// PlanExport is a removal plan joined with the handles it refers to.
type PlanExport struct {
	RunID    string    `json:"run_id"`
	Playlist string    `json:"playlist"`
	Items    int       `json:"items"`
	Count    int       `json:"count"`
	Rows     []PlanRow `json:"rows"`
}

// NewPlanExport joins plan with the batch it was computed for.
//
// Plan indices outside handles are reported without a location.
func NewPlanExport(plan *models.RemovalPlan, handles []models.ItemHandle) *PlanExport {
	export := &PlanExport{Items: len(handles), Rows: []PlanRow{}}
	if plan == nil {
		return export
	}

	export.RunID = plan.RunID
	export.Playlist = plan.Playlist
	export.Count = plan.Count

	for _, idx := range plan.Indices {
		row := PlanRow{Position: idx, Reason: plan.Reasons[idx].String()}
		if idx >= 0 && idx < len(handles) {
			row.Location = handles[idx].Location
			row.Subsong = handles[idx].Subsong
		}
		export.Rows = append(export.Rows, row)
	}
	return export
}

// ExportToCSV converts a PlanExport to CSV format with columns: Position, Location, Subsong, Reason
func ExportToCSV(export *PlanExport) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Position", "Location", "Subsong", "Reason"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, row := range export.Rows {
		record := []string{
			strconv.Itoa(row.Position),
			row.Location,
			strconv.Itoa(row.Subsong),
			row.Reason,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToText converts a PlanExport to plain text format
func ExportToText(export *PlanExport) ([]byte, error) {
	var buf bytes.Buffer

	if export.Playlist != "" {
		buf.WriteString(fmt.Sprintf("Playlist: %s\n", export.Playlist))
	}
	buf.WriteString(fmt.Sprintf("Items: %d\n", export.Items))
	buf.WriteString(fmt.Sprintf("To remove: %d\n", export.Count))

	if len(export.Rows) > 0 {
		buf.WriteString("\n")
	}
	for _, row := range export.Rows {
		buf.WriteString(fmt.Sprintf("%d. %s (%s)\n", row.Position+1, describe(row.Location, row.Subsong), row.Reason))
	}

	return buf.Bytes(), nil
}

// ExportToJSON converts a PlanExport to indented JSON
func ExportToJSON(export *PlanExport) ([]byte, error) {
	data, err := shared.MarshalJSON(export, true)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal plan: %w", err)
	}
	return append(data, '\n'), nil
}

// Render converts export to the named format.
func Render(export *PlanExport, format string) ([]byte, error) {
	switch strings.ToLower(format) {
	case FormatCSV:
		return ExportToCSV(export)
	case FormatJSON:
		return ExportToJSON(export)
	case FormatText, "":
		return ExportToText(export)
	default:
		return nil, fmt.Errorf("%w: unknown format %q", shared.ErrInvalidFlag, format)
	}
}

// WriteExport renders export and writes it to path.
//
// Defaults to {run_id}.{format} as the filename.
func WriteExport(export *PlanExport, format, path string) (string, error) {
	if format == "" {
		format = FormatText
	}
	if path == "" {
		path = fmt.Sprintf("%s.%s", export.RunID, format)
	}

	data, err := Render(export, format)
	if err != nil {
		return "", err
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}
	return path, nil
}

// HistoryToText renders removal runs, newest first, one block per run.
func HistoryToText(runs []*models.RemovalRun) []byte {
	var buf bytes.Buffer

	if len(runs) == 0 {
		buf.WriteString("No removals recorded.\n")
		return buf.Bytes()
	}

	for i, run := range runs {
		if i > 0 {
			buf.WriteString("\n")
		}
		buf.WriteString(fmt.Sprintf("%s  %s  removed %d from %s\n",
			run.CreatedAt().Format(time.DateTime), run.ID(), run.Removed(), run.PlaylistName()))
		for _, e := range run.Entries() {
			buf.WriteString(fmt.Sprintf("  %d. %s (%s)\n", e.Position+1, describe(e.Location, e.Subsong), e.Reason))
		}
	}
	return buf.Bytes()
}

func describe(location string, subsong int) string {
	if subsong > 0 {
		return fmt.Sprintf("%s #%d", location, subsong)
	}
	return location
}
