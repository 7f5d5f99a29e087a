package server

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/jacksonlee411/payroll-engine/internal/routing"
	"github.com/jacksonlee411/payroll-engine/pkg/authz"
)

// loadAuthorizer reads the casbin model and policy from the given paths, falling
// back to config/access/*. Without a policy file the built-in payroll roles apply.
func loadAuthorizer(modelPath string, policyPath string) (*authz.Authorizer, error) {
	mode, err := authz.ModeFromEnv()
	if err != nil {
		return nil, err
	}

	if modelPath == "" {
		if p, err := findConfigFile("config/access/model.conf"); err == nil {
			modelPath = p
		}
	}
	if policyPath == "" {
		p, err := findConfigFile("config/access/policy.csv")
		if err != nil {
			return authz.NewAuthorizerFromPolicies(mode, authz.DefaultPolicies())
		}
		policyPath = p
	}
	return authz.NewAuthorizer(modelPath, policyPath, mode)
}

func findConfigFile(path string) (string, error) {
	for range 8 {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		path = filepath.Join("..", path)
	}
	return "", errors.New("server: config file not found")
}

type authorizer interface {
	Authorize(subject string, domain string, object string, action string) (allowed bool, enforced bool, err error)
}

func withAuthz(classifier *routing.Classifier, a authorizer, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		rc := routing.RouteClassUI
		if classifier != nil {
			rc = classifier.Classify(path)
		}

		if isPublicPath(path) {
			next.ServeHTTP(w, r)
			return
		}

		capability, shouldCheck := authzRequirementForRoute(r.Method, path)
		if !shouldCheck {
			next.ServeHTTP(w, r)
			return
		}

		workspaceID, ok := currentWorkspace(r.Context())
		if !ok {
			routing.WriteError(w, r, rc, http.StatusInternalServerError, "workspace_missing", "workspace missing")
			return
		}

		roleSlug := authz.RoleAnonymous
		if p, ok := currentPrincipal(r.Context()); ok && p.RoleSlug != "" {
			roleSlug = p.RoleSlug
		}

		allowed, enforced, err := a.Authorize(authz.SubjectFromRoleSlug(roleSlug), authz.DomainFromWorkspaceID(workspaceID), capability.Object, capability.Action)
		if err != nil {
			routing.WriteError(w, r, rc, http.StatusInternalServerError, "authz_error", "authz error")
			return
		}
		if enforced && !allowed {
			routing.WriteError(w, r, rc, http.StatusForbidden, "forbidden", "forbidden")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func authzRequirementForRoute(method string, path string) (authz.Capability, bool) {
	switch {
	case pathMatchRouteTemplate(path, "/payroll/api/pay-periods/{id}/process"):
		if method == http.MethodPost {
			return authz.CapabilityManagePayroll, true
		}
		return authz.Capability{}, false
	case pathMatchRouteTemplate(path, "/payroll/api/pay-periods/{id}/approve"):
		if method == http.MethodPost {
			return authz.CapabilityApprovePayroll, true
		}
		return authz.Capability{}, false
	case pathMatchRouteTemplate(path, "/payroll/api/pay-periods/{id}/mark-paid"),
		pathMatchRouteTemplate(path, "/payroll/api/payroll-records/{id}/mark-paid"):
		if method == http.MethodPost {
			return authz.CapabilityPayRecords, true
		}
		return authz.Capability{}, false
	case pathMatchRouteTemplate(path, "/payroll/api/pay-periods/{id}/records"):
		if method == http.MethodGet {
			return authz.CapabilityViewPayroll, true
		}
		return authz.Capability{}, false
	}

	switch path {
	case "/payroll/api/pay-periods":
		if method == http.MethodGet {
			return authz.CapabilityViewPayroll, true
		}
		if method == http.MethodPost {
			return authz.CapabilityManagePayroll, true
		}
		return authz.Capability{}, false
	case "/payroll/api/pay-periods/schedule":
		if method == http.MethodGet {
			return authz.CapabilityViewPayroll, true
		}
		return authz.Capability{}, false
	case "/payroll/api/compensation":
		if method == http.MethodPost {
			return authz.CapabilityManagePayroll, true
		}
		return authz.Capability{}, false
	}

	if pathMatchRouteTemplate(path, "/payroll/api/pay-periods/{id}") && method == http.MethodGet {
		return authz.CapabilityViewPayroll, true
	}
	return authz.Capability{}, false
}

func pathMatchRouteTemplate(path string, template string) bool {
	in := splitRouteSegments(path)
	want := splitRouteSegments(template)
	if len(in) != len(want) {
		return false
	}
	for i := range want {
		w := want[i]
		g := in[i]
		if g == "" {
			return false
		}
		if routeTemplateIsParamSegment(w) {
			continue
		}
		if g != w {
			return false
		}
	}
	return true
}

func splitRouteSegments(path string) []string {
	path = strings.TrimSpace(path)
	path = strings.TrimPrefix(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

func routeTemplateIsParamSegment(s string) bool {
	return strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}") && len(s) > 2
}
