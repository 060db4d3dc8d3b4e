// Package resources embeds files copied into the work folder when a
// session is cold started.
package resources

import "embed"

const (
	// Index is the web landing page.
	Index = "index.html"
	// Waiting is the placeholder image served until the first stack result.
	Waiting = "waiting.jpg"
)

// FS contains Index and Waiting files.
//
//go:embed index.html waiting.jpg
var FS embed.FS
