package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jacksonlee411/payroll-engine/modules/payroll/domain/ports"
	"github.com/jacksonlee411/payroll-engine/modules/payroll/domain/types"
	"github.com/jacksonlee411/payroll-engine/pkg/money"
	"github.com/jacksonlee411/payroll-engine/pkg/uuidv7"
	"github.com/shopspring/decimal"
)

type CompensationPGStore struct {
	pool pgBeginner
}

func NewCompensationPGStore(pool pgBeginner) *CompensationPGStore {
	return &CompensationPGStore{pool: pool}
}

var _ ports.CompensationRegistry = (*CompensationPGStore)(nil)

const compensationColumns = `
  id::text,
  workspace_id,
  user_id,
  pay_type,
  hourly_rate::text,
  salary_amount::text,
  pay_frequency,
  overtime_eligible,
  overtime_rate_multiplier::text,
  health_insurance_deduction::text,
  retirement_401k_percent::text,
  payment_method,
  effective_date::text,
  COALESCE(end_date::text, ''),
  is_active,
  created_at`

func scanCompensation(row pgx.Row) (types.EmployeeCompensation, error) {
	var c types.EmployeeCompensation
	var payType, hourly, salary, multiplier, health, retirement, effective, end string
	if err := row.Scan(
		&c.ID, &c.WorkspaceID, &c.UserID, &payType, &hourly, &salary, &c.PayFrequency,
		&c.OvertimeEligible, &multiplier, &health, &retirement, &c.PaymentMethod,
		&effective, &end, &c.IsActive, &c.CreatedAt,
	); err != nil {
		return types.EmployeeCompensation{}, err
	}
	c.PayType = types.PayType(payType)
	if err := parseAmounts(
		[]*decimal.Decimal{&c.HourlyRate, &c.SalaryAmount, &c.OvertimeRateMultiplier, &c.HealthInsuranceDeduction, &c.Retirement401kPercent},
		[]string{hourly, salary, multiplier, health, retirement},
	); err != nil {
		return types.EmployeeCompensation{}, err
	}
	var err error
	if c.EffectiveDate, err = time.Parse(dateLayout, effective); err != nil {
		return types.EmployeeCompensation{}, err
	}
	if end != "" {
		d, err := time.Parse(dateLayout, end)
		if err != nil {
			return types.EmployeeCompensation{}, err
		}
		c.EndDate = &d
	}
	return c, nil
}

func (s *CompensationPGStore) ListCompensationInEffect(ctx context.Context, workspaceID string, start time.Time, end time.Time) ([]types.EmployeeCompensation, error) {
	tx, err := beginWorkspaceTx(ctx, s.pool, workspaceID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	rows, err := tx.Query(ctx, `
SELECT`+compensationColumns+`
FROM payroll.employee_compensation
WHERE workspace_id = $1::text
  AND is_active
  AND effective_date <= $3::date
  AND (end_date IS NULL OR end_date >= $2::date)
ORDER BY user_id ASC, effective_date DESC, id DESC
`, workspaceID, start.Format(dateLayout), end.Format(dateLayout))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]types.EmployeeCompensation, 0)
	for rows.Next() {
		c, err := scanCompensation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *CompensationPGStore) AddCompensation(ctx context.Context, comp types.EmployeeCompensation) (types.EmployeeCompensation, error) {
	if comp.ID == "" {
		id, err := uuidv7.NewString()
		if err != nil {
			return types.EmployeeCompensation{}, err
		}
		comp.ID = id
	}
	comp.EffectiveDate = types.DateOnly(comp.EffectiveDate)

	tx, err := beginWorkspaceTx(ctx, s.pool, comp.WorkspaceID)
	if err != nil {
		return types.EmployeeCompensation{}, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	var openID, openEffective string
	err = tx.QueryRow(ctx, `
SELECT id::text, effective_date::text
FROM payroll.employee_compensation
WHERE workspace_id = $1::text AND user_id = $2::text AND is_active AND end_date IS NULL
ORDER BY effective_date DESC, id DESC
LIMIT 1
FOR UPDATE
`, comp.WorkspaceID, comp.UserID).Scan(&openID, &openEffective)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
	case err != nil:
		return types.EmployeeCompensation{}, err
	default:
		prev, err := time.Parse(dateLayout, openEffective)
		if err != nil {
			return types.EmployeeCompensation{}, err
		}
		if !comp.EffectiveDate.After(prev) {
			return types.EmployeeCompensation{}, fmt.Errorf("%w: effective_date must be after %s", types.ErrInvalidCompensation, openEffective)
		}
		if _, err := tx.Exec(ctx, `
UPDATE payroll.employee_compensation
SET end_date = $3::date
WHERE workspace_id = $1::text AND id = $2::uuid
`, comp.WorkspaceID, openID, comp.EffectiveDate.AddDate(0, 0, -1).Format(dateLayout)); err != nil {
			return types.EmployeeCompensation{}, err
		}
	}

	out, err := scanCompensation(tx.QueryRow(ctx, `
INSERT INTO payroll.employee_compensation (
  id, workspace_id, user_id, pay_type, hourly_rate, salary_amount, pay_frequency,
  overtime_eligible, overtime_rate_multiplier, health_insurance_deduction, retirement_401k_percent,
  payment_method, effective_date, is_active
)
VALUES (
  $1::uuid, $2::text, $3::text, $4::text, $5::numeric, $6::numeric, $7::text,
  $8::boolean, $9::numeric, $10::numeric, $11::numeric,
  $12::text, $13::date, true
)
RETURNING`+compensationColumns+`
`, comp.ID, comp.WorkspaceID, comp.UserID, string(comp.PayType),
		money.Text(comp.HourlyRate), money.Text(comp.SalaryAmount), comp.PayFrequency,
		comp.OvertimeEligible, comp.OvertimeRateMultiplier.String(), money.Text(comp.HealthInsuranceDeduction), comp.Retirement401kPercent.String(),
		comp.PaymentMethod, comp.EffectiveDate.Format(dateLayout)))
	if err != nil {
		return types.EmployeeCompensation{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return types.EmployeeCompensation{}, err
	}
	return out, nil
}
