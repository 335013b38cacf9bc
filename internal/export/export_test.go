package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/Sudharshanj25/bugtracker/internal/models"
)

func strptr(s string) *string { return &s }

func readRows(t *testing.T, data []byte) [][]string {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	return rows
}

func TestWorkbook_Empty(t *testing.T) {
	data, err := Workbook(nil)
	require.NoError(t, err)

	rows := readRows(t, data)
	require.Len(t, rows, 1, "empty export is header row only")
	assert.Equal(t, header, rows[0])
}

func TestWorkbook_Rows(t *testing.T) {
	created := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	issues := []*models.Issue{
		{
			ID:          2,
			Track:       models.TrackAP,
			Summary:     "Login fails",
			Description: strptr("on step 3"),
			Attachments: []string{"tok1_a.png", "tok2_b.pdf"},
			RaisedBy:    strptr("qa"),
			Assignee:    strptr("rk"),
			Status:      models.StatusFixed,
			ScenarioID:  strptr("SC-7"),
			StepNo:      strptr("3"),
			CreatedAt:   created,
		},
		{
			ID:          1,
			Track:       models.TrackCommon,
			Summary:     "minimal",
			Attachments: []string{},
			Status:      models.StatusOpen,
			CreatedAt:   created,
		},
	}

	data, err := Workbook(issues)
	require.NoError(t, err)

	rows := readRows(t, data)
	require.Len(t, rows, 3)
	assert.Equal(t, header, rows[0])

	assert.Equal(t, []string{
		"2", "AP", "Login fails", "on step 3", "tok1_a.png, tok2_b.pdf",
		"qa", "rk", "Fixed", "SC-7", "3", "2026-03-14T09:26:53Z",
	}, rows[1])

	// Nil optionals and no attachments come out as empty cells.
	require.GreaterOrEqual(t, len(rows[2]), 3)
	assert.Equal(t, "1", rows[2][0])
	assert.Equal(t, "Common", rows[2][1])
	assert.Equal(t, "minimal", rows[2][2])
	for i := 3; i < len(rows[2]); i++ {
		if i == 7 {
			assert.Equal(t, "Open", rows[2][i])
			continue
		}
		if i == 10 {
			assert.Equal(t, "2026-03-14T09:26:53Z", rows[2][i])
			continue
		}
		assert.Empty(t, rows[2][i])
	}
}
