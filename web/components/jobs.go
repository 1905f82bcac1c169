package components

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"

	"reelclip/internal/models"
)

// JobList is the operator view of recent jobs.
func JobList(jobs []models.Job) templ.Component {
	return layout("Jobs", 10, templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, "<h1>Jobs</h1><table><tr><th>Upload</th><th>State</th><th>Attempts</th><th>Last error</th><th>Updated</th></tr>"); err != nil {
			return err
		}
		for _, j := range jobs {
			if _, err := fmt.Fprintf(w, "<tr><td><a href=\"/uploads/%s\">%s</a></td><td>%s</td><td>%d/%d</td><td>%s</td><td>%s</td></tr>",
				templ.EscapeString(j.UploadID), templ.EscapeString(j.UploadID), badge(j.State), j.Attempts, j.MaxAttempts,
				templ.EscapeString(j.LastError), j.UpdatedAt.Format("2006-01-02 15:04:05")); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, "</table>")
		return err
	}))
}
