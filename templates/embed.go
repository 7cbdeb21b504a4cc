// Package templates embeds the bundled report templates.
//
// Usage:
//
//	data, _ := fs.ReadFile(templates.FS, "output/csv.tmpl")
package templates

import "embed"

// FS holds the built-in output templates under output/, one
// <name>.tmpl file per template selectable with -template <name>.
//
//go:embed output/*.tmpl
var FS embed.FS
