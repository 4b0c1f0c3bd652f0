// HTML sanitization for incoming note content. Uses
// github.com/microcosm-cc/bluemonday to allow-list {a,b,br,em,img,strong,u},
// strip every DOM event-handler attribute, and preserve text between tags.
package activitypub

import "github.com/microcosm-cc/bluemonday"

var contentPolicy = newContentPolicy()

func newContentPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowStandardURLs()

	p.AllowElements("b", "br", "em", "strong", "u")
	p.AllowAttrs("href", "rel", "target").OnElements("a")
	p.RequireNoFollowOnLinks(false)
	p.AllowAttrs("src", "alt").OnElements("img")

	// unlisted attributes, including every "on*" event handler, are
	// stripped by default.
	return p
}

// SanitizeContent strips every tag outside {a,b,br,em,img,strong,u} and
// every attribute outside the allow-list above, preserving inter-tag text.
// Idempotent: sanitizing already-sanitized content returns it unchanged.
func SanitizeContent(html string) string {
	return contentPolicy.Sanitize(html)
}
