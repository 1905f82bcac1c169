package report

import (
	"bytes"
	"testing"

	"github.com/xuri/excelize/v2"

	"reelclip/internal/models"
)

func TestWriteClips(t *testing.T) {
	project := models.Project{ID: "p1", Title: "Keynote"}
	list := []models.Clip{
		{ID: "c1", SegmentID: "s3", Rank: 1, Title: "The mistake everyone makes", StartS: 12, EndS: 42.5, Score: 97.5, Status: models.ClipStatusReady},
		{ID: "c2", SegmentID: "s1", Rank: 2, Title: "Clip 2", StartS: 80, EndS: 95, Score: 88, Status: models.ClipStatusReady},
	}

	var buf bytes.Buffer
	if err := WriteClips(&buf, project, list); err != nil {
		t.Fatalf("WriteClips: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheet)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	if rows[0][0] != "Rank" || rows[0][5] != "Score" {
		t.Fatalf("header = %v", rows[0])
	}
	want := []string{"1", "The mistake everyone makes", "12", "42.5", "30.5", "97.5", "ready", "c1", "s3"}
	for i, v := range want {
		if rows[1][i] != v {
			t.Errorf("row 1 col %d = %q, want %q", i, rows[1][i], v)
		}
	}
	if rows[2][1] != "Clip 2" {
		t.Errorf("row 2 title = %q", rows[2][1])
	}
}

func TestWriteClipsEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteClips(&buf, models.Project{Title: "Empty"}, nil); err != nil {
		t.Fatalf("WriteClips: %v", err)
	}
	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()
	rows, _ := f.GetRows(sheet)
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want header only", len(rows))
	}
}
