// Package web embeds the browser front end served by the API server.
//
// The page mirrors the CLI fetch command: a company list, a target year and
// an exchange choice, with the job's narration streamed over /ws.
//
// Usage in the API server:
//
//	import "github.com/seenimoa/annualreport/web"
//	fsys := web.DistFS() // io/fs.FS rooted at static/
package web

import (
	"embed"
	"io/fs"
)

//go:embed all:static
var dist embed.FS

// DistFS returns a filesystem rooted at the embedded static/ directory,
// ready for http.FileServerFS.
func DistFS() fs.FS {
	sub, err := fs.Sub(dist, "static")
	if err != nil {
		panic("web.DistFS: " + err.Error())
	}
	return sub
}
