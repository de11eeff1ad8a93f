package api

import (
	"io/fs"

	webpkg "github.com/hartyporpoise/studychat/web"
)

// staticFiles holds the chat UI. It is served from the /static/ prefix and
// index.html is served at /.
var staticFiles fs.FS = webpkg.StaticFiles
