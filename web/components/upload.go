package components

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/a-h/templ"

	"reelclip/internal/models"
)

// UploadView is what the status page shows.
type UploadView struct {
	UploadID      string
	Title         string
	Status        string
	Progress      int
	Attempts      int
	MaxAttempts   int
	FailureReason string
	TranscriptURL string
	Clips         []models.Clip
	Terminal      bool
	ProjectID     string
}

// UploadStatus renders one upload and re-polls until it is terminal.
func UploadStatus(v UploadView) templ.Component {
	refresh := 5
	if v.Terminal {
		refresh = 0
	}
	return layout(v.Title, refresh, templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := fmt.Fprintf(w, "<h1>%s</h1><p>%s attempt %d/%d</p><progress max=\"100\" value=\"%d\">%d%%</progress>",
			templ.EscapeString(v.Title), badge(v.Status), v.Attempts, v.MaxAttempts, v.Progress, v.Progress); err != nil {
			return err
		}
		if v.FailureReason != "" {
			if _, err := fmt.Fprintf(w, "<p class=\"failed\">%s</p>", templ.EscapeString(v.FailureReason)); err != nil {
				return err
			}
		}
		if v.TranscriptURL != "" {
			if _, err := fmt.Fprintf(w, "<p><a href=\"%s\">Transcript</a></p>", templ.EscapeString(v.TranscriptURL)); err != nil {
				return err
			}
		}
		if !v.Terminal {
			if _, err := fmt.Fprintf(w, "<form method=\"post\" action=\"/api/cancel/%s\"><button type=\"submit\">Cancel</button></form>", templ.EscapeString(v.UploadID)); err != nil {
				return err
			}
		}
		if len(v.Clips) == 0 {
			return nil
		}
		if _, err := fmt.Fprintf(w, "<h2>Clips</h2><p><a href=\"/api/projects/%s/clips.xlsx\">Download spreadsheet</a></p><table><tr><th>#</th><th>Title</th><th>Start</th><th>End</th><th>Score</th></tr>",
			templ.EscapeString(v.ProjectID)); err != nil {
			return err
		}
		for _, c := range v.Clips {
			if _, err := fmt.Fprintf(w, "<tr><td>%d</td><td>%s</td><td>%s</td><td>%s</td><td>%s</td></tr>",
				c.Rank, templ.EscapeString(c.Title), seconds(c.StartS), seconds(c.EndS), strconv.FormatFloat(c.Score, 'f', 1, 64)); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, "</table>")
		return err
	}))
}

func seconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 1, 64) + "s"
}

func formatInt(n int64) string {
	return strconv.FormatInt(n, 10)
}
