package routing

import (
	"errors"
	"strings"
)

type RouteClass string

const (
	RouteClassOps         RouteClass = "ops"
	RouteClassInternalAPI RouteClass = "internal_api"
	RouteClassPublicAPI   RouteClass = "public_api"
	RouteClassWebhook     RouteClass = "webhook"
	RouteClassUI          RouteClass = "ui"
)

func ParseRouteClass(s string) (RouteClass, bool) {
	switch rc := RouteClass(strings.TrimSpace(s)); rc {
	case RouteClassOps, RouteClassInternalAPI, RouteClassPublicAPI, RouteClassWebhook, RouteClassUI:
		return rc, true
	}
	return "", false
}

// Classifier maps request paths to a RouteClass using one allowlist entrypoint,
// falling back to prefix conventions for undeclared paths.
type Classifier struct {
	entrypoint string
	exact      map[string]declaredRoute
	patterns   []patternDecl
}

type declaredRoute struct {
	rc      RouteClass
	methods map[string]bool
}

type patternDecl struct {
	pattern PathPattern
	declaredRoute
}

func NewClassifier(a Allowlist, entrypoint string) (*Classifier, error) {
	ep, ok := a.Entrypoints[entrypoint]
	if !ok {
		return nil, errors.New("allowlist: missing entrypoint " + entrypoint)
	}
	if len(ep.Routes) == 0 {
		return nil, errors.New("allowlist: entrypoint routes empty")
	}

	c := &Classifier{entrypoint: entrypoint, exact: make(map[string]declaredRoute, len(ep.Routes))}
	for _, r := range ep.Routes {
		rc, ok := ParseRouteClass(r.RouteClass)
		if r.Path == "" || !ok {
			return nil, errors.New("allowlist: invalid route")
		}
		methods := make(map[string]bool, len(r.Methods))
		for _, m := range r.Methods {
			methods[strings.ToUpper(m)] = true
		}
		d := declaredRoute{rc: rc, methods: methods}
		if p, ok := parsePathPattern(r.Path); ok {
			c.patterns = append(c.patterns, patternDecl{pattern: p, declaredRoute: d})
			continue
		}
		c.exact[r.Path] = d
	}
	return c, nil
}

func (c *Classifier) Entrypoint() string { return c.entrypoint }

func (c *Classifier) Classify(path string) RouteClass {
	if d, ok := c.lookup(path); ok {
		return d.rc
	}

	switch {
	case hasPrefixSegment(path, "/api/v1"):
		return RouteClassPublicAPI
	case isModuleInternalAPI(path):
		return RouteClassInternalAPI
	case hasPrefixSegment(path, "/hooks"):
		return RouteClassWebhook
	case path == "/health" || path == "/healthz":
		return RouteClassOps
	default:
		return RouteClassUI
	}
}

// Declared reports whether method+path is listed for this entrypoint.
// Pattern routes are compared by their template text, not by matching.
func (c *Classifier) Declared(method string, path string) bool {
	if d, ok := c.exact[path]; ok {
		return d.methods[strings.ToUpper(method)]
	}
	for _, p := range c.patterns {
		if p.pattern.raw == path {
			return p.methods[strings.ToUpper(method)]
		}
	}
	return false
}

func (c *Classifier) lookup(path string) (declaredRoute, bool) {
	if d, ok := c.exact[path]; ok {
		return d, true
	}
	for _, p := range c.patterns {
		if p.pattern.Match(path) {
			return p.declaredRoute, true
		}
	}
	return declaredRoute{}, false
}

func hasPrefixSegment(path, prefix string) bool {
	if path == prefix {
		return true
	}
	return strings.HasPrefix(path, prefix+"/")
}

// isModuleInternalAPI matches /{module}/api and below.
func isModuleInternalAPI(path string) bool {
	if !strings.HasPrefix(path, "/") {
		return false
	}
	module, after, ok := strings.Cut(strings.TrimPrefix(path, "/"), "/")
	if !ok || module == "" {
		return false
	}
	return hasPrefixSegment("/"+after, "/api")
}
