// Package report exports a project's clips as a spreadsheet.
package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"reelclip/internal/models"
)

const sheet = "Clips"

var header = []any{"Rank", "Title", "Start (s)", "End (s)", "Duration (s)", "Score", "Status", "Clip ID", "Segment ID"}

// WriteClips writes one row per clip, in the given order, to w as an xlsx workbook.
func WriteClips(w io.Writer, project models.Project, list []models.Clip) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}
	if err := f.SetDocProps(&excelize.DocProperties{Title: project.Title, Creator: "reelclip"}); err != nil {
		return fmt.Errorf("failed to set properties: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create style: %w", err)
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if err := f.SetRowStyle(sheet, 1, 1, bold); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	for i, c := range list {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{c.Rank, c.Title, c.StartS, c.EndS, c.EndS - c.StartS, c.Score, c.Status, c.ID, c.SegmentID}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write clip %s: %w", c.ID, err)
		}
	}
	if err := f.SetColWidth(sheet, "B", "B", 48); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
