package schema

import (
	"regexp"
	"strings"
)

var underscoreLower = regexp.MustCompile(`_[a-z]`)

// ToPublic converts a wire name to its public camelCase form: every "_x"
// (x in a-z) becomes "X". Other underscores are kept.
func ToPublic(wireName string) string {
	return underscoreLower.ReplaceAllStringFunc(wireName, func(s string) string {
		return strings.ToUpper(s[1:])
	})
}

// ExportedName is ToPublic with the first letter upper cased. Used for Go
// identifiers in generated code.
func ExportedName(wireName string) string {
	name := ToPublic(wireName)
	if name == "" {
		return name
	}
	return strings.ToUpper(name[:1]) + name[1:]
}

// ServiceName derives a service name from a schema file name:
// "nearest_neighbor.json" => "nearestneighbor".
func ServiceName(file string) string {
	return strings.ToLower(ToPublic("_" + trimExt(file)))
}
