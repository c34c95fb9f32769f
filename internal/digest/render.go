package digest

import (
	"bytes"
	"fmt"
	"html/template"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"

	"github.com/TobiSchelling/IntelDigest/internal/database"
)

var md = goldmark.New(goldmark.WithExtensions(extension.Linkify))

var blankLines = regexp.MustCompile(`\n{3,}`)

// PlainText renders markdown as readable plain text. Links keep their
// destination in parentheses.
func PlainText(markdown string) string {
	src := []byte(markdown)
	doc := md.Parser().Parse(text.NewReader(src))

	var b strings.Builder
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch n := n.(type) {
		case *ast.Heading, *ast.Paragraph:
			if !entering {
				b.WriteString("\n\n")
			}
		case *ast.TextBlock:
			if !entering {
				b.WriteString("\n")
			}
		case *ast.ListItem:
			if entering {
				b.WriteString("- ")
			}
		case *ast.ThematicBreak:
			if entering {
				b.WriteString("---\n\n")
			}
		case *ast.Text:
			if entering {
				b.Write(n.Segment.Value(src))
				if n.SoftLineBreak() || n.HardLineBreak() {
					b.WriteByte('\n')
				}
			}
		case *ast.String:
			if entering {
				b.Write(n.Value)
			}
		case *ast.Link:
			if !entering {
				fmt.Fprintf(&b, " (%s)", n.Destination)
			}
		case *ast.AutoLink:
			if entering {
				b.Write(n.URL(src))
			}
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			if entering {
				lines := n.Lines()
				for i := 0; i < lines.Len(); i++ {
					seg := lines.At(i)
					b.Write(seg.Value(src))
				}
				b.WriteString("\n")
				return ast.WalkSkipChildren, nil
			}
		}
		return ast.WalkContinue, nil
	})

	out := blankLines.ReplaceAllString(b.String(), "\n\n")
	return strings.TrimSpace(out)
}

var emailTmpl = template.Must(template.New("email").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
</head>
<body style="margin:0;padding:0;background:#f6f6f4;">
<div style="max-width:640px;margin:0 auto;padding:24px;font-family:Georgia,serif;color:#222;line-height:1.5;">
<p style="font-size:12px;color:#777;text-transform:uppercase;letter-spacing:1px;">{{.Title}} · {{.Date}}</p>
{{.Body}}
<hr style="border:none;border-top:1px solid #ddd;margin-top:32px;">
<p style="font-size:12px;color:#999;">Generated by IntelDigest.</p>
</div>
</body>
</html>
`))

// FormatForEmail renders markdown into a standalone HTML email body. date is
// a YYYY-MM-DD string.
func FormatForEmail(markdown string, period database.Period, date string) (string, error) {
	var body bytes.Buffer
	if err := md.Convert([]byte(markdown), &body); err != nil {
		return "", fmt.Errorf("rendering markdown: %w", err)
	}

	var out bytes.Buffer
	err := emailTmpl.Execute(&out, struct {
		Title string
		Date  string
		Body  template.HTML
	}{
		Title: Title(period),
		Date:  database.FormatDateDisplay(date),
		Body:  template.HTML(body.String()),
	})
	if err != nil {
		return "", fmt.Errorf("rendering email: %w", err)
	}
	return out.String(), nil
}
