package ports

import (
	"context"
	"time"

	"github.com/jacksonlee411/payroll-engine/modules/payroll/domain/types"
)

// PeriodWrite is the result of one processing run, persisted atomically with
// the period update. Records replace any prior record for the same employee;
// unpaid records for employees missing from Records are removed.
type PeriodWrite struct {
	Period  types.PayPeriod
	Records []types.PayrollRecord
}

type ProcessFunc func(ctx context.Context, period types.PayPeriod) (PeriodWrite, error)

type TransitionFunc func(period types.PayPeriod) (types.PayPeriod, error)

type PayPeriodStore interface {
	CreatePayPeriod(ctx context.Context, period types.PayPeriod) (types.PayPeriod, error)
	GetPayPeriod(ctx context.Context, workspaceID string, payPeriodID string) (types.PayPeriod, error)
	ListPayPeriods(ctx context.Context, workspaceID string) ([]types.PayPeriod, error)

	// ProcessLocked holds an exclusive lock on the period for the duration of fn.
	// Nothing is written when fn returns an error. fn must not call other stores:
	// the lock holds a connection for as long as fn runs.
	ProcessLocked(ctx context.Context, workspaceID string, payPeriodID string, fn ProcessFunc) (types.PayPeriod, error)
	TransitionLocked(ctx context.Context, workspaceID string, payPeriodID string, fn TransitionFunc) (types.PayPeriod, error)

	ListPayrollRecords(ctx context.Context, workspaceID string, payPeriodID string) ([]types.PayrollRecord, error)
	MarkRecordPaid(ctx context.Context, workspaceID string, recordID string, reference string, at time.Time) (types.PayrollRecord, error)
}

type CompensationRegistry interface {
	ListCompensationInEffect(ctx context.Context, workspaceID string, start time.Time, end time.Time) ([]types.EmployeeCompensation, error)
	// AddCompensation closes the employee's open record the day before the new one takes effect.
	AddCompensation(ctx context.Context, comp types.EmployeeCompensation) (types.EmployeeCompensation, error)
}

type TaxBracketStore interface {
	ListTaxBrackets(ctx context.Context, workspaceID string, taxType types.TaxType) ([]types.TaxBracket, error)
}

type SettingsStore interface {
	GetPayrollSettings(ctx context.Context, workspaceID string) (types.PayrollSettings, error)
}

// TimeAggregator sums tracked minutes for one user over [start, end] inclusive.
type TimeAggregator interface {
	TotalMinutes(ctx context.Context, workspaceID string, userID string, start time.Time, end time.Time) (int64, error)
}
