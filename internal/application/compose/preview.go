package compose

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/yuin/goldmark"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"
)

// mdRenderer turns email bodies into HTML. Raw HTML in the input is not
// passed through (WithUnsafe is not set).
var mdRenderer = goldmark.New(
	goldmark.WithRendererOptions(
		goldmarkHTML.WithHardWraps(),
	),
)

// RenderPreview renders a markdown email body for the preview pane.
// PRE: none
// POST: returns HTML safe to embed in a page
func RenderPreview(body string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := mdRenderer.Convert([]byte(body), &buf); err != nil {
		return "", fmt.Errorf("render preview: %w", err)
	}
	return template.HTML(buf.String()), nil
}
