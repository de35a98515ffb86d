package render

import (
	"bytes"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
)

// Markdown converts model answers to HTML. Raw HTML in the answer is not
// passed through.
type Markdown struct {
	md goldmark.Markdown
}

func NewMarkdown() *Markdown {
	return &Markdown{md: goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
	)}
}

func (r *Markdown) Render(markdown string) (string, error) {
	var out bytes.Buffer
	if err := r.md.Convert([]byte(markdown), &out); err != nil {
		return "", err
	}
	return out.String(), nil
}
