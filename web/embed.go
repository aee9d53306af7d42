// Package web holds the console's page templates and static assets. Both
// are compiled into the binaries so a deploy is a single file.
package web

import "embed"

// Templates holds layouts, partials and one file per page.
//
//go:embed templates/**/*.html
var Templates embed.FS

// Static is served under /static with a one hour cache.
//
//go:embed static/**/*
var Static embed.FS
