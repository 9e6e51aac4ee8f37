package cache

import (
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Key builds a deterministic cache key from a resource kind, an optional id and every
// parameter that affects the result. Parameters are sorted by name and escaped, so the
// same logical query always maps to the same key and distinct queries never collide.
// Empty parameter values are treated as absent.
func Key(kind, id string, params map[string]string) string {
	var b strings.Builder
	b.WriteString(kind)
	if id != "" {
		b.WriteByte('_')
		b.WriteString(escapeSegment(id))
	}

	names := make([]string, 0, len(params))
	for name, v := range params {
		if v != "" {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return b.String()
	}
	sort.Strings(names)

	b.WriteByte('_')
	for i, name := range names {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(name))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(params[name]))
	}
	return b.String()
}

// EntityKey is Key for numeric ids.
func EntityKey(kind string, id int64, params map[string]string) string {
	return Key(kind, strconv.FormatInt(id, 10), params)
}

// KindPattern matches every key built for kind, with or without id and parameters.
func KindPattern(kind string) *regexp.Regexp {
	return regexp.MustCompile("^" + regexp.QuoteMeta(kind) + "(_|$)")
}

// EntityPattern matches every key built for one entity of kind. It does not match
// other ids sharing a prefix (novel_5 never matches novel_55).
func EntityPattern(kind string, id int64) *regexp.Regexp {
	return regexp.MustCompile("^" + regexp.QuoteMeta(kind+"_"+strconv.FormatInt(id, 10)) + "(_|$)")
}

// escapeSegment escapes the separator so ids cannot spill into the parameter section.
func escapeSegment(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "_", "%5F")
}
