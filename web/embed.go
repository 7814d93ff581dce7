// Package web embeds the review UI: page templates rendered by the api
// package and the browser assets they load.
package web

import (
	"embed"
	"io/fs"
)

//go:embed templates/*.html static/*
var files embed.FS

var (
	// Templates holds base.html and one file per page.
	Templates = mustSub("templates")

	// Static is served under /static/.
	Static = mustSub("static")
)

func mustSub(dir string) fs.FS {
	sub, err := fs.Sub(files, dir)
	if err != nil {
		panic(err)
	}
	return sub
}
