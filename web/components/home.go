package components

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

// Home is the submission form.
func Home(admissionCost int64) templ.Component {
	return layout("Submit a video", 0, templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, `<h1>Submit a video</h1>
<p>Each submission costs `+templ.EscapeString(formatInt(admissionCost))+` credits. Failed and cancelled uploads are refunded.</p>
<form method="post" action="/api/submit">
<label>Owner <input name="owner_id" required maxlength="128"></label>
<label>Title <input name="title" maxlength="200" placeholder="optional"></label>
<label>Source <input name="source_descriptor" required maxlength="2048" placeholder="uploads/me/talk.mp4 or https://..."></label>
<label>Kind <select name="source_kind"><option value="">detect</option><option value="file">file</option><option value="remote_url">remote_url</option></select></label>
<p><button type="submit">Submit</button></p>
</form>`)
		return err
	}))
}
