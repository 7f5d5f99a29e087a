package authz

const (
	RolePayrollAdmin    = "payroll-admin"
	RolePayrollApprover = "payroll-approver"
	RoleAnonymous       = "anonymous"
)

const (
	ActionRead    = "read"
	ActionManage  = "manage"
	ActionApprove = "approve"
)

const DomainAny = "*"

const (
	ObjectPayrollPayPeriods = "payroll.pay-periods"
	ObjectPayrollRecords    = "payroll.records"
)

type Capability struct {
	Object string
	Action string
}

var (
	CapabilityViewPayroll    = Capability{Object: ObjectPayrollPayPeriods, Action: ActionRead}
	CapabilityManagePayroll  = Capability{Object: ObjectPayrollPayPeriods, Action: ActionManage}
	CapabilityApprovePayroll = Capability{Object: ObjectPayrollPayPeriods, Action: ActionApprove}
	CapabilityPayRecords     = Capability{Object: ObjectPayrollRecords, Action: ActionManage}
)

// DefaultPolicies grants the built-in payroll roles their capabilities in every workspace.
func DefaultPolicies() [][]string {
	admin := SubjectFromRoleSlug(RolePayrollAdmin)
	approver := SubjectFromRoleSlug(RolePayrollApprover)
	return [][]string{
		{admin, DomainAny, ObjectPayrollPayPeriods, ActionRead},
		{admin, DomainAny, ObjectPayrollPayPeriods, ActionManage},
		{admin, DomainAny, ObjectPayrollRecords, ActionManage},
		{approver, DomainAny, ObjectPayrollPayPeriods, ActionRead},
		{approver, DomainAny, ObjectPayrollPayPeriods, ActionApprove},
	}
}
