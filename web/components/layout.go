// Package components holds the server-rendered HTML views.
package components

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"
)

const styles = `body{font-family:system-ui,sans-serif;max-width:56rem;margin:2rem auto;padding:0 1rem;color:#1f2328}
table{border-collapse:collapse;width:100%}th,td{text-align:left;padding:.35rem .5rem;border-bottom:1px solid #d0d7de}
.badge{display:inline-block;padding:.1rem .5rem;border-radius:1rem;background:#eaeef2}
.completed{background:#dafbe1}.failed{background:#ffebe9}.cancelled{background:#f6f8fa}.processing{background:#fff8c5}
progress{width:100%}label{display:block;margin-top:.75rem}input,select{width:100%;padding:.35rem}`

// layout wraps body in the page shell. refresh > 0 makes the browser re-poll.
func layout(title string, refresh int, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, "<!DOCTYPE html><html lang=\"en\"><head><meta charset=\"utf-8\">"); err != nil {
			return err
		}
		if refresh > 0 {
			if _, err := fmt.Fprintf(w, "<meta http-equiv=\"refresh\" content=\"%d\">", refresh); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, "<title>%s · reelclip</title><style>%s</style></head><body><nav><a href=\"/\">reelclip</a> · <a href=\"/jobs\">jobs</a></nav>",
			templ.EscapeString(title), styles); err != nil {
			return err
		}
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, "</body></html>")
		return err
	})
}

func badge(status string) string {
	return fmt.Sprintf("<span class=\"badge %s\">%s</span>", templ.EscapeString(status), templ.EscapeString(status))
}
