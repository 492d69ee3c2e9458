package appfs

import "embed"

// FS holds the static assets shipped with the binaries (email templates, password lists).
//
//go:embed all:assets
var FS embed.FS
