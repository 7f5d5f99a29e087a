package types

import (
	"fmt"
	"strings"
	"time"

	"github.com/jacksonlee411/payroll-engine/pkg/payroll/schedule"
	"github.com/shopspring/decimal"
)

type PeriodType string

const (
	PeriodWeekly      PeriodType = schedule.Weekly
	PeriodBiWeekly    PeriodType = schedule.BiWeekly
	PeriodSemiMonthly PeriodType = schedule.SemiMonthly
	PeriodMonthly     PeriodType = schedule.Monthly
)

func ParsePeriodType(raw string) (PeriodType, error) {
	switch p := PeriodType(strings.ToLower(strings.TrimSpace(raw))); p {
	case PeriodWeekly, PeriodBiWeekly, PeriodSemiMonthly, PeriodMonthly:
		return p, nil
	default:
		return "", fmt.Errorf("%w: unknown period_type %q", ErrInvalidPayPeriod, raw)
	}
}

// OvertimeScale converts a weekly hour threshold into one for the whole period.
// Semi-monthly and monthly use 26/12 and 52/12 weeks rounded to 2.16 and 4.33.
func (p PeriodType) OvertimeScale() decimal.Decimal {
	switch p {
	case PeriodBiWeekly:
		return decimal.NewFromInt(2)
	case PeriodSemiMonthly:
		return decimal.RequireFromString("2.16")
	case PeriodMonthly:
		return decimal.RequireFromString("4.33")
	default:
		return decimal.NewFromInt(1)
	}
}

// SalaryDivisor is the number of periods of this type in a year; annual salary is divided by it.
func (p PeriodType) SalaryDivisor() int64 {
	switch p {
	case PeriodWeekly:
		return 52
	case PeriodBiWeekly:
		return 26
	case PeriodSemiMonthly:
		return 24
	case PeriodMonthly:
		return 12
	default:
		return 0
	}
}

type PayPeriodStatus string

const (
	StatusDraft      PayPeriodStatus = "draft"
	StatusProcessing PayPeriodStatus = "processing"
	StatusApproved   PayPeriodStatus = "approved"
	StatusPaid       PayPeriodStatus = "paid"
)

type PeriodTotals struct {
	GrossPay      decimal.Decimal `json:"total_gross_pay"`
	Deductions    decimal.Decimal `json:"total_deductions"`
	NetPay        decimal.Decimal `json:"total_net_pay"`
	EmployerTaxes decimal.Decimal `json:"total_employer_taxes"`
}

type PayPeriod struct {
	ID          string          `json:"id"`
	WorkspaceID string          `json:"workspace_id"`
	PeriodType  PeriodType      `json:"period_type"`
	PeriodStart time.Time       `json:"period_start"`
	PeriodEnd   time.Time       `json:"period_end"`
	PayDate     time.Time       `json:"pay_date"`
	Status      PayPeriodStatus `json:"status"`
	PeriodTotals
	ProcessedBy string     `json:"processed_by,omitempty"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	ApprovedBy  string     `json:"approved_by,omitempty"`
	ApprovedAt  *time.Time `json:"approved_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// NewPayPeriod validates the window and returns a draft period without an id.
func NewPayPeriod(workspaceID string, periodType PeriodType, start, end, payDate time.Time) (PayPeriod, error) {
	workspaceID = strings.TrimSpace(workspaceID)
	if workspaceID == "" {
		return PayPeriod{}, fmt.Errorf("%w: workspace_id is required", ErrInvalidPayPeriod)
	}
	if _, err := ParsePeriodType(string(periodType)); err != nil {
		return PayPeriod{}, err
	}
	start, end, payDate = DateOnly(start), DateOnly(end), DateOnly(payDate)
	if end.Before(start) {
		return PayPeriod{}, fmt.Errorf("%w: period_end must not be before period_start", ErrInvalidPayPeriod)
	}
	if payDate.Before(start) {
		return PayPeriod{}, fmt.Errorf("%w: pay_date must not be before period_start", ErrInvalidPayPeriod)
	}
	return PayPeriod{
		WorkspaceID: workspaceID,
		PeriodType:  periodType,
		PeriodStart: start,
		PeriodEnd:   end,
		PayDate:     payDate,
		Status:      StatusDraft,
		PeriodTotals: PeriodTotals{
			GrossPay:      decimal.Zero,
			Deductions:    decimal.Zero,
			NetPay:        decimal.Zero,
			EmployerTaxes: decimal.Zero,
		},
	}, nil
}

// CheckProcess allows draft and processing periods. Approved and paid payroll is frozen.
func (p PayPeriod) CheckProcess() error {
	switch p.Status {
	case StatusDraft, StatusProcessing:
		return nil
	default:
		return fmt.Errorf("%w: cannot process pay period in status %s", ErrInvalidTransition, p.Status)
	}
}

func (p PayPeriod) WithProcessing(totals PeriodTotals, processedBy string, at time.Time) PayPeriod {
	at = at.UTC()
	p.Status = StatusProcessing
	p.PeriodTotals = totals
	p.ProcessedBy = processedBy
	p.ProcessedAt = &at
	return p
}

func (p PayPeriod) Approve(approvedBy string, at time.Time) (PayPeriod, error) {
	if p.Status != StatusProcessing {
		return PayPeriod{}, fmt.Errorf("%w: cannot approve pay period in status %s", ErrInvalidTransition, p.Status)
	}
	at = at.UTC()
	p.Status = StatusApproved
	p.ApprovedBy = approvedBy
	p.ApprovedAt = &at
	return p, nil
}

func (p PayPeriod) MarkPaid() (PayPeriod, error) {
	if p.Status != StatusApproved {
		return PayPeriod{}, fmt.Errorf("%w: cannot mark pay period paid in status %s", ErrInvalidTransition, p.Status)
	}
	p.Status = StatusPaid
	return p, nil
}

func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
