package services

import (
	"context"
	"strings"
	"time"

	"github.com/jacksonlee411/payroll-engine/modules/payroll/domain/ports"
	"github.com/jacksonlee411/payroll-engine/modules/payroll/domain/types"
	"github.com/jacksonlee411/payroll-engine/pkg/httperr"
	"github.com/jacksonlee411/payroll-engine/pkg/payroll/schedule"
)

type PayrollFacade struct {
	periods   ports.PayPeriodStore
	comps     ports.CompensationRegistry
	processor *PayPeriodProcessor
	now       func() time.Time
}

func NewPayrollFacade(periods ports.PayPeriodStore, comps ports.CompensationRegistry, processor *PayPeriodProcessor, now func() time.Time) PayrollFacade {
	if now == nil {
		now = time.Now
	}
	return PayrollFacade{periods: periods, comps: comps, processor: processor, now: now}
}

type CreatePayPeriodInput struct {
	PeriodType  string
	PeriodStart time.Time
	// PeriodEnd and PayDate are optional. A missing end is taken from the
	// schedule for PeriodType; a missing pay date defaults to the end.
	PeriodEnd *time.Time
	PayDate   *time.Time
}

func (f PayrollFacade) CreatePayPeriod(ctx context.Context, workspaceID string, in CreatePayPeriodInput) (types.PayPeriod, error) {
	periodType, err := types.ParsePeriodType(in.PeriodType)
	if err != nil {
		return types.PayPeriod{}, httperr.NewBadRequest(err.Error())
	}
	if in.PeriodStart.IsZero() {
		return types.PayPeriod{}, httperr.NewBadRequest("period_start is required")
	}

	var end time.Time
	if in.PeriodEnd != nil {
		end = *in.PeriodEnd
	} else {
		w, err := schedule.Next(string(periodType), in.PeriodStart)
		if err != nil {
			return types.PayPeriod{}, httperr.NewBadRequest(err.Error())
		}
		end = w.End
	}
	payDate := end
	if in.PayDate != nil {
		payDate = *in.PayDate
	}

	period, err := types.NewPayPeriod(workspaceID, periodType, in.PeriodStart, end, payDate)
	if err != nil {
		return types.PayPeriod{}, httperr.NewBadRequest(err.Error())
	}
	period.CreatedAt = f.now().UTC()
	return f.periods.CreatePayPeriod(ctx, period)
}

func (f PayrollFacade) GetPayPeriod(ctx context.Context, workspaceID string, payPeriodID string) (types.PayPeriod, error) {
	return f.periods.GetPayPeriod(ctx, workspaceID, strings.TrimSpace(payPeriodID))
}

func (f PayrollFacade) ListPayPeriods(ctx context.Context, workspaceID string) ([]types.PayPeriod, error) {
	return f.periods.ListPayPeriods(ctx, workspaceID)
}

func (f PayrollFacade) ProcessPayPeriod(ctx context.Context, workspaceID string, payPeriodID string, actorID string) (types.ProcessSummary, error) {
	return f.processor.Process(ctx, workspaceID, strings.TrimSpace(payPeriodID), actorID)
}

func (f PayrollFacade) ApprovePayPeriod(ctx context.Context, workspaceID string, payPeriodID string, actorID string) (types.PayPeriod, error) {
	at := f.now()
	return f.periods.TransitionLocked(ctx, workspaceID, strings.TrimSpace(payPeriodID), func(p types.PayPeriod) (types.PayPeriod, error) {
		return p.Approve(actorID, at)
	})
}

func (f PayrollFacade) MarkPayPeriodPaid(ctx context.Context, workspaceID string, payPeriodID string) (types.PayPeriod, error) {
	return f.periods.TransitionLocked(ctx, workspaceID, strings.TrimSpace(payPeriodID), func(p types.PayPeriod) (types.PayPeriod, error) {
		return p.MarkPaid()
	})
}

func (f PayrollFacade) ListPayrollRecords(ctx context.Context, workspaceID string, payPeriodID string) ([]types.PayrollRecord, error) {
	if _, err := f.periods.GetPayPeriod(ctx, workspaceID, strings.TrimSpace(payPeriodID)); err != nil {
		return nil, err
	}
	return f.periods.ListPayrollRecords(ctx, workspaceID, strings.TrimSpace(payPeriodID))
}

func (f PayrollFacade) MarkRecordPaid(ctx context.Context, workspaceID string, recordID string, reference string) (types.PayrollRecord, error) {
	return f.periods.MarkRecordPaid(ctx, workspaceID, strings.TrimSpace(recordID), reference, f.now())
}

func (f PayrollFacade) AddCompensation(ctx context.Context, comp types.EmployeeCompensation) (types.EmployeeCompensation, error) {
	if err := comp.Validate(); err != nil {
		return types.EmployeeCompensation{}, httperr.NewBadRequest(err.Error())
	}
	comp.EffectiveDate = types.DateOnly(comp.EffectiveDate)
	comp.CreatedAt = f.now().UTC()
	return f.comps.AddCompensation(ctx, comp)
}

func (f PayrollFacade) Schedule(periodType string, anchor time.Time, count int) ([]schedule.Window, error) {
	pt, err := types.ParsePeriodType(periodType)
	if err != nil {
		return nil, httperr.NewBadRequest(err.Error())
	}
	windows, err := schedule.Windows(string(pt), anchor, count)
	if err != nil {
		return nil, httperr.NewBadRequest(err.Error())
	}
	return windows, nil
}
