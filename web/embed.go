// Package web embeds the chat UI into the binary.
// The embed lives next to the static/ directory because //go:embed paths
// cannot use "..".
package web

import (
	"embed"
	"io/fs"
)

//go:embed static
var embedded embed.FS

// StaticFiles is an fs.FS rooted at web/static/.
var StaticFiles, _ = fs.Sub(embedded, "static")
