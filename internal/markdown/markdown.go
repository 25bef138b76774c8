// Package markdown converts agent replies from Markdown to HTML that is safe
// to inject into the chat page without further escaping.
package markdown

import (
	"bytes"
	"html"
	"regexp"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

// languageClass admits the class goldmark puts on fenced code blocks so the
// page can syntax-highlight them. Everything else on code elements is dropped.
var languageClass = regexp.MustCompile(`^language-[a-zA-Z0-9+#-]+$`)

var (
	// md passes raw HTML through (WithUnsafe); the bluemonday pass below is
	// the actual safety boundary, per bluemonday's own usage guidance.
	md = goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(gmhtml.WithUnsafe()),
	)
	policy = newPolicy()
)

func newPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("class").Matching(languageClass).OnElements("code")
	return p
}

// Render converts Markdown to sanitized HTML. The result contains only
// elements and attributes admitted by the policy; scripts, event handlers and
// javascript: URLs never survive. Render is safe for concurrent use.
func Render(source string) string {
	var buf bytes.Buffer
	if err := md.Convert([]byte(source), &buf); err != nil {
		// Convert only fails on writer errors, which bytes.Buffer never
		// produces. Fall back to escaped text so Render stays total.
		return "<p>" + html.EscapeString(source) + "</p>"
	}
	return policy.Sanitize(buf.String())
}
