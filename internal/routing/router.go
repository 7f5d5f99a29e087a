package routing

import (
	"net/http"
	"sort"
	"strings"
)

type Router struct {
	classifier *Classifier
	routes     map[string]map[string]routeEntry
	patterns   []patternRoute
	undeclared []string
}

type routeEntry struct {
	rc      RouteClass
	handler http.Handler
}

type patternRoute struct {
	pattern PathPattern
	methods map[string]routeEntry
}

func NewRouter(classifier *Classifier) *Router {
	return &Router{
		classifier: classifier,
		routes:     make(map[string]map[string]routeEntry),
	}
}

// Handle registers h for method and path. A path containing {name} segments is
// matched after every exact path, and its values are exposed via r.PathValue.
func (r *Router) Handle(rc RouteClass, method string, path string, h http.Handler) {
	if r.classifier != nil && !r.classifier.Declared(method, path) {
		r.undeclared = append(r.undeclared, method+" "+path)
	}

	entry := routeEntry{rc: rc, handler: recoverPanics(rc, h)}

	if p, ok := parsePathPattern(path); ok {
		for i := range r.patterns {
			if r.patterns[i].pattern.raw == path {
				r.patterns[i].methods[method] = entry
				return
			}
		}
		r.patterns = append(r.patterns, patternRoute{pattern: p, methods: map[string]routeEntry{method: entry}})
		return
	}

	if r.routes[path] == nil {
		r.routes[path] = make(map[string]routeEntry)
	}
	r.routes[path][method] = entry
}

// Undeclared lists registered routes that the allowlist does not declare.
func (r *Router) Undeclared() []string {
	out := append([]string(nil), r.undeclared...)
	sort.Strings(out)
	return out
}

func recoverPanics(rc RouteClass, h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				WriteError(w, req, rc, http.StatusInternalServerError, "internal_error", "internal error")
			}
		}()
		h.ServeHTTP(w, req)
	})
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	methods, ok := r.routes[req.URL.Path]
	if !ok {
		methods, ok = r.matchPattern(req)
	}
	if !ok {
		WriteError(w, req, r.classify(req.URL.Path), http.StatusNotFound, "not_found", "not found")
		return
	}
	entry, ok := methods[req.Method]
	if !ok {
		w.Header().Set("Allow", allowHeader(methods))
		WriteError(w, req, entrypointClass(methods, r.classify(req.URL.Path)), http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	entry.handler.ServeHTTP(w, req)
}

func (r *Router) classify(path string) RouteClass {
	if r.classifier == nil {
		return RouteClassUI
	}
	return r.classifier.Classify(path)
}

func (r *Router) matchPattern(req *http.Request) (map[string]routeEntry, bool) {
	for _, p := range r.patterns {
		params, ok := p.pattern.Params(req.URL.Path)
		if !ok {
			continue
		}
		for k, v := range params {
			req.SetPathValue(k, v)
		}
		return p.methods, true
	}
	return nil, false
}

func allowHeader(methods map[string]routeEntry) string {
	out := make([]string, 0, len(methods))
	for m := range methods {
		out = append(out, m)
	}
	sort.Strings(out)
	return strings.Join(out, ", ")
}

func entrypointClass(methods map[string]routeEntry, fallback RouteClass) RouteClass {
	for _, e := range methods {
		return e.rc
	}
	return fallback
}
