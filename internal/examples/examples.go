// Package examples bundles the sample error pages shipped with the editor.
package examples

import "embed"

// FS holds one YAML parameter document per example, named <example>.yaml.
//
//go:embed data/*.yaml
var FS embed.FS

// Dir is the directory inside FS holding the documents.
const Dir = "data"
