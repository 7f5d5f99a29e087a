package authz

import (
	"errors"
	"os"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	fileadapter "github.com/casbin/casbin/v2/persist/file-adapter"
)

type Mode string

const (
	ModeEnforce  Mode = "enforce"
	ModeShadow   Mode = "shadow"
	ModeDisabled Mode = "disabled"
)

// DefaultModel matches a role subject to a capability inside a workspace domain ("*" = any workspace).
const DefaultModel = `
[request_definition]
r = sub, dom, obj, act

[policy_definition]
p = sub, dom, obj, act

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = r.sub == p.sub && (p.dom == "*" || r.dom == p.dom) && r.obj == p.obj && r.act == p.act
`

func ModeFromEnv() (Mode, error) {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv("AUTHZ_MODE")))
	if raw == "" {
		return ModeEnforce, nil
	}
	switch Mode(raw) {
	case ModeEnforce, ModeShadow:
		return Mode(raw), nil
	case ModeDisabled:
		if os.Getenv("AUTHZ_UNSAFE_ALLOW_DISABLED") != "1" {
			return "", errors.New("authz: AUTHZ_MODE=disabled requires AUTHZ_UNSAFE_ALLOW_DISABLED=1")
		}
		return ModeDisabled, nil
	default:
		return "", errors.New("authz: invalid AUTHZ_MODE (expected enforce|shadow|disabled)")
	}
}

type Authorizer struct {
	enforcer *casbin.Enforcer
	mode     Mode
}

// NewAuthorizer loads the casbin model from modelPath (DefaultModel when empty) and policies from policyPath.
func NewAuthorizer(modelPath string, policyPath string, mode Mode) (*Authorizer, error) {
	m, err := loadModel(modelPath)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, err
	}
	enforcer.SetAdapter(fileadapter.NewAdapter(policyPath))
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	return &Authorizer{enforcer: enforcer, mode: mode}, nil
}

// NewAuthorizerFromPolicies builds an authorizer over DefaultModel with in-memory policy rows
// of the form {subject, domain, object, action}.
func NewAuthorizerFromPolicies(mode Mode, policies [][]string) (*Authorizer, error) {
	m, err := model.NewModelFromString(DefaultModel)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, err
	}
	if len(policies) > 0 {
		if _, err := enforcer.AddPolicies(policies); err != nil {
			return nil, err
		}
	}
	return &Authorizer{enforcer: enforcer, mode: mode}, nil
}

func loadModel(modelPath string) (model.Model, error) {
	if strings.TrimSpace(modelPath) == "" {
		return model.NewModelFromString(DefaultModel)
	}
	return model.NewModelFromFile(modelPath)
}

func SubjectFromRoleSlug(roleSlug string) string {
	roleSlug = strings.TrimSpace(strings.ToLower(roleSlug))
	if roleSlug == "" {
		roleSlug = RoleAnonymous
	}
	return "role:" + roleSlug
}

func DomainFromWorkspaceID(workspaceID string) string {
	return strings.ToLower(strings.TrimSpace(workspaceID))
}

func (a *Authorizer) Mode() Mode { return a.mode }

func (a *Authorizer) Authorize(subject string, domain string, object string, action string) (allowed bool, enforced bool, err error) {
	switch a.mode {
	case ModeDisabled:
		return true, false, nil
	case ModeShadow:
		ok, err := a.enforcer.Enforce(subject, domain, object, action)
		if err != nil {
			return false, false, err
		}
		return ok, false, nil
	case ModeEnforce:
		ok, err := a.enforcer.Enforce(subject, domain, object, action)
		if err != nil {
			return false, true, err
		}
		return ok, true, nil
	default:
		return false, false, errors.New("authz: unknown mode")
	}
}

// Can reports whether the role may use capability inside workspaceID. Shadow mode always allows.
func (a *Authorizer) Can(roleSlug string, workspaceID string, capability Capability) (bool, error) {
	allowed, enforced, err := a.Authorize(SubjectFromRoleSlug(roleSlug), DomainFromWorkspaceID(workspaceID), capability.Object, capability.Action)
	if err != nil {
		return false, err
	}
	if !enforced {
		return true, nil
	}
	return allowed, nil
}
