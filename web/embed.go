package web

import "embed"

// Templates embeds the HTML documents rendered into PDF reports.
//
//go:embed templates/reports/*.html
var Templates embed.FS
