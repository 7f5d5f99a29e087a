package routing

import "strings"

// PathPattern is a route template such as /payroll/api/pay-periods/{id}/records.
type PathPattern struct {
	raw      string
	segments []string
}

func parsePathPattern(raw string) (PathPattern, bool) {
	if raw == "" || raw[0] != '/' || !strings.Contains(raw, "{") {
		return PathPattern{}, false
	}

	parts := splitPathSegments(raw)
	names := make(map[string]bool)
	for _, s := range parts {
		if s == "" {
			return PathPattern{}, false
		}
		if !strings.ContainsAny(s, "{}") {
			continue
		}
		if !isParamSegment(s) || names[s] {
			return PathPattern{}, false
		}
		names[s] = true
	}
	return PathPattern{raw: raw, segments: parts}, true
}

func (p PathPattern) Match(path string) bool {
	_, ok := p.Params(path)
	return ok
}

// Params returns the values bound to each {name} segment when path matches.
func (p PathPattern) Params(path string) (map[string]string, bool) {
	if p.raw == "" {
		return nil, false
	}
	in := splitPathSegments(path)
	if len(in) != len(p.segments) {
		return nil, false
	}
	out := make(map[string]string)
	for i, want := range p.segments {
		got := in[i]
		switch {
		case got == "":
			return nil, false
		case isParamSegment(want):
			out[want[1:len(want)-1]] = got
		case got != want:
			return nil, false
		}
	}
	return out, true
}

func splitPathSegments(path string) []string {
	path = strings.TrimPrefix(strings.TrimSpace(path), "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

func isParamSegment(s string) bool {
	return len(s) > 2 && s[0] == '{' && s[len(s)-1] == '}' && !strings.ContainsAny(s[1:len(s)-1], "{}")
}
