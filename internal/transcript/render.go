// ABOUTME: HTML export of a transcript
// ABOUTME: User text is escaped verbatim; assistant answers are rendered from markdown with goldmark

package transcript

import (
	"bytes"
	"fmt"
	"html/template"
	"io"

	"github.com/yuin/goldmark"
)

var pageTemplate = template.Must(template.New("transcript").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
</head>
<body>
<h1>{{.Title}}</h1>
{{range .Entries}}<div class="chat-bubble {{.Role}}">
<p><b>{{.Author}}:</b> <time>{{.At}}</time></p>
{{.Body}}
</div>
{{end}}</body>
</html>
`))

type renderedEntry struct {
	Role   string
	Author string
	At     string
	Body   template.HTML
}

// RenderHTML writes the transcript as an HTML page. username labels the user's entries.
func (t *Transcript) RenderHTML(w io.Writer, username string) error {
	entries := t.Entries()
	rendered := make([]renderedEntry, 0, len(entries))

	for _, e := range entries {
		r := renderedEntry{
			Role:   string(e.Role),
			Author: "Assistant",
			At:     e.At.Format("2006-01-02 15:04:05"),
		}

		if e.Role == RoleUser {
			r.Author = username
			r.Body = template.HTML("<p>" + template.HTMLEscapeString(e.Text) + "</p>")
		} else {
			var buf bytes.Buffer
			if err := goldmark.Convert([]byte(e.Text), &buf); err != nil {
				return fmt.Errorf("converting markdown: %w", err)
			}
			r.Body = template.HTML(buf.String())
		}
		rendered = append(rendered, r)
	}

	data := struct {
		Title   string
		Entries []renderedEntry
	}{
		Title:   "Chat with " + username,
		Entries: rendered,
	}

	if err := pageTemplate.Execute(w, data); err != nil {
		return fmt.Errorf("rendering transcript: %w", err)
	}
	return nil
}
