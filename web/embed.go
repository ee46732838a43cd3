package web

import "embed"

// TemplatesFS holds the dashboard page and its partials.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS holds stylesheets and images served under /static/.
//
//go:embed static
var StaticFS embed.FS
