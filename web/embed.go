package web

import "embed"

// TemplatesFS embeds the HTML dashboard served by internal/http.
//
//go:embed templates/*.html
var TemplatesFS embed.FS
