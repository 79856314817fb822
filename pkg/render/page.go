package render

import (
	"io"

	"github.com/portico-dev/portico/pkg/dom"
)

// DefaultClientScript is the thin client bundle path used when PageData
// does not name one.
const DefaultClientScript = "/portico/client.js"

// PageData carries everything needed to render the bootstrap HTML page a
// new session receives before its websocket opens.
type PageData struct {
	// Title is the page title.
	Title string

	// Lang is the html element's language attribute. Defaults to "en".
	Lang string

	// Meta lists additional meta tags for the head.
	Meta []MetaTag

	// StyleSheets lists external stylesheet paths.
	StyleSheets []string

	// Styles lists inline CSS blocks, written verbatim.
	Styles []string

	// SessionID is handed to the client for the websocket handshake.
	SessionID string

	// ClientScript overrides DefaultClientScript.
	ClientScript string

	// Body is the element whose content becomes the page body.
	Body *dom.Element
}

// MetaTag is one meta element in the document head.
type MetaTag struct {
	Name     string
	Property string
	Content  string
}

// RenderPage writes the complete bootstrap document: head, the body
// snapshot, and the client configuration script.
func (r *Renderer) RenderPage(w io.Writer, page PageData) error {
	lang := page.Lang
	if lang == "" {
		lang = "en"
	}

	hw := &htmlWriter{w: w}
	hw.writeString("<!DOCTYPE html>\n")
	hw.writeString(`<html lang="` + escapeAttr(lang) + `">` + "\n")
	r.renderHead(hw, page)

	hw.writeString("<body>\n")
	if page.Body != nil {
		r.renderContent(hw, page.Body)
	}
	r.renderBootScript(hw, page)
	hw.writeString("</body>\n</html>\n")
	return hw.err
}

func (r *Renderer) renderHead(hw *htmlWriter, page PageData) {
	hw.writeString("<head>\n")
	hw.writeString(`  <meta charset="utf-8">` + "\n")
	hw.writeString(`  <meta name="viewport" content="width=device-width, initial-scale=1">` + "\n")

	if page.Title != "" {
		hw.writeString("  <title>" + escapeText(page.Title) + "</title>\n")
	}
	for _, m := range page.Meta {
		hw.writeString("  <meta")
		if m.Name != "" {
			hw.writeString(` name="` + escapeAttr(m.Name) + `"`)
		}
		if m.Property != "" {
			hw.writeString(` property="` + escapeAttr(m.Property) + `"`)
		}
		if m.Content != "" {
			hw.writeString(` content="` + escapeAttr(m.Content) + `"`)
		}
		hw.writeString(">\n")
	}
	for _, href := range page.StyleSheets {
		hw.writeString(`  <link rel="stylesheet" href="` + escapeAttr(href) + `">` + "\n")
	}
	for _, css := range page.Styles {
		hw.writeString("  <style>" + css + "</style>\n")
	}
	hw.writeString("</head>\n")
}

// renderBootScript hands the client its session id and loads the thin
// client bundle.
func (r *Renderer) renderBootScript(hw *htmlWriter, page PageData) {
	if page.SessionID != "" {
		hw.writeString(`  <script>window.__PORTICO_SESSION__="` + escapeAttr(page.SessionID) + `";</script>` + "\n")
	}
	client := page.ClientScript
	if client == "" {
		client = DefaultClientScript
	}
	hw.writeString(`  <script src="` + escapeAttr(client) + `" defer></script>` + "\n")
}
