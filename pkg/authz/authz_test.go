package authz

import (
	"os"
	"path/filepath"
	"testing"
)

func TestModeFromEnv_Default(t *testing.T) {
	t.Setenv("AUTHZ_MODE", "")
	m, err := ModeFromEnv()
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if m != ModeEnforce {
		t.Fatalf("mode=%q", m)
	}
}

func TestModeFromEnv_Shadow(t *testing.T) {
	t.Setenv("AUTHZ_MODE", "shadow")
	m, err := ModeFromEnv()
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if m != ModeShadow {
		t.Fatalf("mode=%q", m)
	}
}

func TestModeFromEnv_DisabledRequiresUnsafe(t *testing.T) {
	t.Setenv("AUTHZ_MODE", "disabled")
	t.Setenv("AUTHZ_UNSAFE_ALLOW_DISABLED", "")
	if _, err := ModeFromEnv(); err == nil {
		t.Fatal("expected error")
	}
	t.Setenv("AUTHZ_UNSAFE_ALLOW_DISABLED", "1")
	m, err := ModeFromEnv()
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if m != ModeDisabled {
		t.Fatalf("mode=%q", m)
	}
}

func TestModeFromEnv_Invalid(t *testing.T) {
	t.Setenv("AUTHZ_MODE", "nope")
	if _, err := ModeFromEnv(); err == nil {
		t.Fatal("expected error")
	}
}

func TestNewAuthorizer_FromFiles(t *testing.T) {
	dir := t.TempDir()
	policy := filepath.Join(dir, "policy.csv")
	if err := os.WriteFile(policy, []byte("p, role:payroll-admin, ws1, payroll.pay-periods, manage\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	a, err := NewAuthorizer("", policy, ModeEnforce)
	if err != nil {
		t.Fatalf("err=%v", err)
	}

	allowed, enforced, err := a.Authorize("role:payroll-admin", "ws1", ObjectPayrollPayPeriods, ActionManage)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if !enforced || !allowed {
		t.Fatalf("allowed=%v enforced=%v", allowed, enforced)
	}

	allowed, _, err = a.Authorize("role:payroll-admin", "ws2", ObjectPayrollPayPeriods, ActionManage)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if allowed {
		t.Fatal("expected other workspace to be denied")
	}

	allowed, _, err = a.Authorize("role:payroll-admin", "ws1", ObjectPayrollPayPeriods, ActionApprove)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if allowed {
		t.Fatal("expected approve to be denied")
	}
}

func TestNewAuthorizer_Error(t *testing.T) {
	dir := t.TempDir()
	invalidModel := filepath.Join(dir, "invalid.conf")
	if err := os.WriteFile(invalidModel, []byte("nope"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewAuthorizer(invalidModel, "nope-policy.csv", ModeEnforce); err == nil {
		t.Fatal("expected error")
	}

	if _, err := NewAuthorizer("", filepath.Join(dir, "missing-policy.csv"), ModeEnforce); err == nil {
		t.Fatal("expected error")
	}
}

func TestCan_DefaultPolicies(t *testing.T) {
	a, err := NewAuthorizerFromPolicies(ModeEnforce, DefaultPolicies())
	if err != nil {
		t.Fatalf("err=%v", err)
	}

	cases := []struct {
		role string
		cap  Capability
		want bool
	}{
		{RolePayrollAdmin, CapabilityManagePayroll, true},
		{RolePayrollAdmin, CapabilityApprovePayroll, false},
		{RolePayrollAdmin, CapabilityPayRecords, true},
		{RolePayrollApprover, CapabilityApprovePayroll, true},
		{RolePayrollApprover, CapabilityManagePayroll, false},
		{RolePayrollApprover, CapabilityViewPayroll, true},
		{"", CapabilityViewPayroll, false},
	}
	for _, tc := range cases {
		t.Run(tc.role+"/"+tc.cap.Action, func(t *testing.T) {
			got, err := a.Can(tc.role, "WS-1", tc.cap)
			if err != nil {
				t.Fatalf("err=%v", err)
			}
			if got != tc.want {
				t.Fatalf("got=%v want=%v", got, tc.want)
			}
		})
	}
}

func TestCan_ShadowAndDisabledAllow(t *testing.T) {
	for _, mode := range []Mode{ModeShadow, ModeDisabled} {
		a, err := NewAuthorizerFromPolicies(mode, nil)
		if err != nil {
			t.Fatalf("err=%v", err)
		}
		got, err := a.Can("", "ws1", CapabilityApprovePayroll)
		if err != nil {
			t.Fatalf("err=%v", err)
		}
		if !got {
			t.Fatalf("mode=%s expected allow", mode)
		}
	}
}

func TestSubjectFromRoleSlug(t *testing.T) {
	if got := SubjectFromRoleSlug(""); got != "role:anonymous" {
		t.Fatalf("got=%q", got)
	}
	if got := SubjectFromRoleSlug("Payroll-Admin"); got != "role:payroll-admin" {
		t.Fatalf("got=%q", got)
	}
}

func TestDomainFromWorkspaceID(t *testing.T) {
	if got := DomainFromWorkspaceID(" ABC "); got != "abc" {
		t.Fatalf("got=%q", got)
	}
}

func TestAuthorize_UnknownMode(t *testing.T) {
	a := &Authorizer{mode: Mode("nope")}
	if _, _, err := a.Authorize("role:x", "d", "o", "a"); err == nil {
		t.Fatal("expected error")
	}
}
