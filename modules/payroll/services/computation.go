package services

import (
	"context"
	"fmt"

	"github.com/jacksonlee411/payroll-engine/modules/payroll/domain/types"
	"github.com/jacksonlee411/payroll-engine/pkg/money"
	"github.com/shopspring/decimal"
)

type taxCalculator interface {
	CalculateTax(ctx context.Context, grossPay decimal.Decimal, taxType types.TaxType, workspaceID string, flatRate decimal.Decimal) (TaxResult, error)
}

type ComputationInput struct {
	Compensation  types.EmployeeCompensation
	WorkedMinutes int64
	Period        types.PayPeriod
	Settings      types.PayrollSettings
}

// Computation is a computed record plus the number of tax types that fell back to a
// flat rate and the workspace anomaly rules that could not be applied.
type Computation struct {
	Record       types.PayrollRecord
	TaxFallbacks int
	RuleFailures []RuleFailure
}

// ComputeForEmployee produces the unpersisted payroll record for one employee.
// Every amount is rounded half-up to cents as it is produced, so
// net_pay = gross_pay - total_deductions holds exactly.
func ComputeForEmployee(ctx context.Context, taxes taxCalculator, in ComputationInput) (Computation, error) {
	comp := in.Compensation
	if in.WorkedMinutes < 0 {
		return Computation{}, fmt.Errorf("worked minutes must be non-negative: %d", in.WorkedMinutes)
	}
	if err := comp.Validate(); err != nil {
		return Computation{}, err
	}

	rec := types.PayrollRecord{
		WorkspaceID:   in.Period.WorkspaceID,
		PayPeriodID:   in.Period.ID,
		UserID:        comp.UserID,
		PayType:       comp.PayType,
		RegularHours:  money.Zero,
		OvertimeHours: money.Zero,
		RegularRate:   money.Zero,
		OvertimeRate:  money.Zero,
		RegularPay:    money.Zero,
		OvertimePay:   money.Zero,
		PaymentStatus: types.PaymentUnpaid,
	}
	totalHours := money.HoursFromMinutes(in.WorkedMinutes)

	switch comp.PayType {
	case types.PayTypeHourly:
		regular, overtime := totalHours, money.Zero
		if comp.OvertimeEligible {
			threshold := money.Round2(in.Settings.OvertimeWeeklyThresholdHours.Mul(in.Period.PeriodType.OvertimeScale()))
			if totalHours.GreaterThan(threshold) {
				regular = threshold
				overtime = totalHours.Sub(threshold)
			}
			rec.OvertimeRate = money.MulRate(comp.HourlyRate, comp.OvertimeRateMultiplier)
		}
		rec.RegularHours = regular
		rec.OvertimeHours = overtime
		rec.RegularRate = money.Round2(comp.HourlyRate)
		rec.RegularPay = money.MulRate(regular, comp.HourlyRate)
		rec.OvertimePay = money.MulRate(overtime, rec.OvertimeRate)
		rec.GrossPay = money.Sum(rec.RegularPay, rec.OvertimePay)
	case types.PayTypeSalary:
		gross, err := money.Div(comp.SalaryAmount, in.Period.PeriodType.SalaryDivisor())
		if err != nil {
			return Computation{}, fmt.Errorf("%w: period type %q has no salary divisor", types.ErrInvalidPayPeriod, in.Period.PeriodType)
		}
		rec.RegularHours = totalHours
		rec.RegularPay = gross
		rec.GrossPay = gross
	}

	out := Computation{}
	s := in.Settings
	federal, err := taxes.CalculateTax(ctx, rec.GrossPay, types.TaxFederal, in.Period.WorkspaceID, s.FederalFlatRate)
	if err != nil {
		return Computation{}, fmt.Errorf("federal tax: %w", err)
	}
	state, err := taxes.CalculateTax(ctx, rec.GrossPay, types.TaxState, in.Period.WorkspaceID, s.StateFlatRate)
	if err != nil {
		return Computation{}, fmt.Errorf("state tax: %w", err)
	}
	for _, tr := range []struct {
		taxType types.TaxType
		result  TaxResult
	}{{types.TaxFederal, federal}, {types.TaxState, state}} {
		if tr.result.Degraded {
			out.TaxFallbacks++
			rec.Anomalies = append(rec.Anomalies, types.Anomaly{
				Code:    types.AnomalyTaxBracketsFallback,
				Message: fmt.Sprintf("%s tax used flat rate: %s", tr.taxType, tr.result.Reason),
			})
		}
	}

	rec.FederalTax = federal.Amount
	rec.StateTax = state.Amount
	rec.SocialSecurity = money.MulRate(rec.GrossPay, s.SocialSecurityRate)
	rec.Medicare = money.MulRate(rec.GrossPay, s.MedicareRate)
	rec.HealthInsurance = money.Round2(comp.HealthInsuranceDeduction)
	rec.Retirement401k = money.PercentOf(rec.GrossPay, comp.Retirement401kPercent)
	rec.TotalDeductions = money.Sum(rec.FederalTax, rec.StateTax, rec.SocialSecurity, rec.Medicare, rec.HealthInsurance, rec.Retirement401k)
	rec.NetPay = rec.GrossPay.Sub(rec.TotalDeductions)

	rec.EmployerSocialSecurity = money.MulRate(rec.GrossPay, s.EmployerSocialSecurityRate)
	rec.EmployerMedicare = money.MulRate(rec.GrossPay, s.EmployerMedicareRate)
	rec.EmployerUnemployment = money.MulRate(rec.GrossPay, s.EmployerUnemploymentRate)
	rec.TotalEmployerTaxes = money.Sum(rec.EmployerSocialSecurity, rec.EmployerMedicare, rec.EmployerUnemployment)

	anomalies, failures, err := EvaluateAnomalies(rec, in.Period.PeriodType, s.AnomalyRules)
	if err != nil {
		return Computation{}, err
	}
	out.RuleFailures = failures
	rec.Anomalies = append(rec.Anomalies, anomalies...)
	if rec.Anomalies == nil {
		rec.Anomalies = []types.Anomaly{}
	}

	out.Record = rec
	return out, nil
}
