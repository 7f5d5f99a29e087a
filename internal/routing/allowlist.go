package routing

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Allowlist is the declared HTTP surface of each binary. A route that is
// registered on a Router but missing here is a startup error.
type Allowlist struct {
	Version     int                   `yaml:"version"`
	Entrypoints map[string]Entrypoint `yaml:"entrypoints"`
}

type Entrypoint struct {
	Routes []Route `yaml:"routes"`
}

type Route struct {
	Path       string   `yaml:"path"`
	Methods    []string `yaml:"methods"`
	RouteClass string   `yaml:"route_class"`
}

var knownMethods = map[string]bool{
	http.MethodGet:    true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
}

func (r Route) Allows(method string) bool {
	for _, m := range r.Methods {
		if strings.EqualFold(m, method) {
			return true
		}
	}
	return false
}

func ParseAllowlistYAML(b []byte) (Allowlist, error) {
	var a Allowlist
	if err := yaml.Unmarshal(b, &a); err != nil {
		return Allowlist{}, fmt.Errorf("allowlist: %w", err)
	}
	if a.Version != 1 {
		return Allowlist{}, errors.New("allowlist: unsupported version")
	}
	if len(a.Entrypoints) == 0 {
		return Allowlist{}, errors.New("allowlist: missing entrypoints")
	}
	for name, ep := range a.Entrypoints {
		if err := validateRoutes(name, ep.Routes); err != nil {
			return Allowlist{}, err
		}
	}
	return a, nil
}

func validateRoutes(entrypoint string, routes []Route) error {
	seen := make(map[string]bool)
	for _, r := range routes {
		if !strings.HasPrefix(r.Path, "/") {
			return fmt.Errorf("allowlist: %s: path %q must start with /", entrypoint, r.Path)
		}
		if _, ok := ParseRouteClass(r.RouteClass); !ok {
			return fmt.Errorf("allowlist: %s: %s has unknown route_class %q", entrypoint, r.Path, r.RouteClass)
		}
		if len(r.Methods) == 0 {
			return fmt.Errorf("allowlist: %s: %s declares no methods", entrypoint, r.Path)
		}
		for _, m := range r.Methods {
			m = strings.ToUpper(m)
			if !knownMethods[m] {
				return fmt.Errorf("allowlist: %s: %s has unsupported method %q", entrypoint, r.Path, m)
			}
			key := m + " " + r.Path
			if seen[key] {
				return fmt.Errorf("allowlist: %s: duplicate route %s", entrypoint, key)
			}
			seen[key] = true
		}
	}
	return nil
}

func LoadAllowlist(path string) (Allowlist, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Allowlist{}, fmt.Errorf("allowlist: read %s: %w", path, err)
	}
	return ParseAllowlistYAML(b)
}
