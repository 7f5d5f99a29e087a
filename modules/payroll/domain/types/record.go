package types

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentUnpaid PaymentStatus = "unpaid"
	PaymentPaid   PaymentStatus = "paid"
)

const (
	AnomalyNegativeNetPay      = "NEGATIVE_NET_PAY"
	AnomalyTaxBracketsFallback = "TAX_BRACKETS_FALLBACK"
	AnomalyZeroHoursHourly     = "ZERO_HOURS_HOURLY"
)

type Anomaly struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type PayrollRecord struct {
	ID          string  `json:"id"`
	WorkspaceID string  `json:"workspace_id"`
	PayPeriodID string  `json:"pay_period_id"`
	UserID      string  `json:"user_id"`
	PayType     PayType `json:"pay_type"`

	RegularHours  decimal.Decimal `json:"regular_hours"`
	OvertimeHours decimal.Decimal `json:"overtime_hours"`
	RegularRate   decimal.Decimal `json:"regular_rate"`
	OvertimeRate  decimal.Decimal `json:"overtime_rate"`
	RegularPay    decimal.Decimal `json:"regular_pay"`
	OvertimePay   decimal.Decimal `json:"overtime_pay"`
	GrossPay      decimal.Decimal `json:"gross_pay"`

	FederalTax      decimal.Decimal `json:"federal_tax"`
	StateTax        decimal.Decimal `json:"state_tax"`
	SocialSecurity  decimal.Decimal `json:"social_security"`
	Medicare        decimal.Decimal `json:"medicare"`
	HealthInsurance decimal.Decimal `json:"health_insurance"`
	Retirement401k  decimal.Decimal `json:"retirement_401k"`
	TotalDeductions decimal.Decimal `json:"total_deductions"`
	NetPay          decimal.Decimal `json:"net_pay"`

	EmployerSocialSecurity decimal.Decimal `json:"employer_social_security"`
	EmployerMedicare       decimal.Decimal `json:"employer_medicare"`
	EmployerUnemployment   decimal.Decimal `json:"employer_unemployment"`
	TotalEmployerTaxes     decimal.Decimal `json:"total_employer_taxes"`

	PaymentStatus    PaymentStatus `json:"payment_status"`
	PaymentDate      *time.Time    `json:"payment_date,omitempty"`
	PaymentReference string        `json:"payment_reference,omitempty"`
	Anomalies        []Anomaly     `json:"anomalies"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

func (r PayrollRecord) HasAnomaly(code string) bool {
	for _, a := range r.Anomalies {
		if a.Code == code {
			return true
		}
	}
	return false
}

// MarkPaid is allowed once per record, and only after its period has been approved.
func (r PayrollRecord) MarkPaid(period PayPeriod, reference string, at time.Time) (PayrollRecord, error) {
	if period.Status != StatusApproved && period.Status != StatusPaid {
		return PayrollRecord{}, fmt.Errorf("%w: pay period is %s", ErrInvalidTransition, period.Status)
	}
	if r.PaymentStatus == PaymentPaid {
		return PayrollRecord{}, fmt.Errorf("%w: payroll record already paid", ErrInvalidTransition)
	}
	at = at.UTC()
	r.PaymentStatus = PaymentPaid
	r.PaymentDate = &at
	r.PaymentReference = strings.TrimSpace(reference)
	r.UpdatedAt = at
	return r, nil
}

func SumTotals(records []PayrollRecord) PeriodTotals {
	t := PeriodTotals{GrossPay: decimal.Zero, Deductions: decimal.Zero, NetPay: decimal.Zero, EmployerTaxes: decimal.Zero}
	for _, r := range records {
		t.GrossPay = t.GrossPay.Add(r.GrossPay)
		t.Deductions = t.Deductions.Add(r.TotalDeductions)
		t.NetPay = t.NetPay.Add(r.NetPay)
		t.EmployerTaxes = t.EmployerTaxes.Add(r.TotalEmployerTaxes)
	}
	return t
}

type SkippedEmployee struct {
	UserID string `json:"user_id"`
	Reason string `json:"reason"`
}

type ProcessSummary struct {
	PayPeriodID        string            `json:"pay_period_id"`
	Status             PayPeriodStatus   `json:"status"`
	EmployeesProcessed int               `json:"employees_processed"`
	TotalGrossPay      decimal.Decimal   `json:"total_gross_pay"`
	TotalNetPay        decimal.Decimal   `json:"total_net_pay"`
	Skipped            []SkippedEmployee `json:"skipped"`
	TaxFallbacks       int               `json:"tax_fallbacks"`
	Anomalies          int               `json:"anomalies"`
}
