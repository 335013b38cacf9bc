package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/Sudharshanj25/bugtracker/internal/models"
)

// SheetName is the single worksheet holding the issue snapshot.
const SheetName = "Issues"

// header matches the issue JSON field names, one column each.
var header = []string{
	"id", "track", "summary", "description", "attachments",
	"raised_by", "assignee", "status", "scenario_id", "step_no", "created_at",
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Workbook renders the issues into an .xlsx workbook with one header
// row and one row per issue, in the order given. Attachments are
// flattened to a comma-and-space-joined string.
func Workbook(issues []*models.Issue) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return nil, fmt.Errorf("name worksheet: %w", err)
	}

	row := make([]any, len(header))
	for i, h := range header {
		row[i] = h
	}
	if err := f.SetSheetRow(SheetName, "A1", &row); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	for i, issue := range issues {
		row := []any{
			issue.ID,
			string(issue.Track),
			issue.Summary,
			deref(issue.Description),
			strings.Join(issue.Attachments, ", "),
			deref(issue.RaisedBy),
			deref(issue.Assignee),
			string(issue.Status),
			deref(issue.ScenarioID),
			deref(issue.StepNo),
			issue.CreatedAt.UTC().Format(time.RFC3339),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, fmt.Errorf("row coordinates: %w", err)
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("serialize workbook: %w", err)
	}
	return buf.Bytes(), nil
}
