package findings

import (
	"regexp"
	"strings"
)

var (
	idPattern    = regexp.MustCompile(`#([A-Za-z][\w-]*)`)
	classPattern = regexp.MustCompile(`\.([A-Za-z_][\w-]*)`)
	tagPattern   = regexp.MustCompile(`^([A-Za-z][\w-]*)`)
	attrPattern  = regexp.MustCompile(`\[[^\]]*\]`)
)

// SimplifySelector reduces a DOM selector to its most recognizable handle,
// looking only at the last path segment. Preference order: id attribute,
// first class token, bare tag name. Selectors with none of those (pure
// attribute selectors) come back unchanged.
func SimplifySelector(selector string) string {
	segment := lastSegment(selector)
	if segment == "" {
		return selector
	}
	// Attribute values can contain '#' and '.', so they never feed the id and
	// class matches.
	segment = attrPattern.ReplaceAllString(segment, "")

	if m := idPattern.FindStringSubmatch(segment); m != nil {
		return `id="` + m[1] + `"`
	}
	if m := classPattern.FindStringSubmatch(segment); m != nil {
		return "." + m[1]
	}
	if m := tagPattern.FindStringSubmatch(segment); m != nil {
		return "<" + m[1]
	}
	return selector
}

// lastSegment returns the final element of a combinator path, so the
// simplification always describes the node the violation sits on.
func lastSegment(selector string) string {
	fields := strings.FieldsFunc(selector, func(r rune) bool {
		return r == ' ' || r == '>' || r == '+' || r == '~'
	})
	if len(fields) == 0 {
		return ""
	}
	return strings.TrimSpace(fields[len(fields)-1])
}
