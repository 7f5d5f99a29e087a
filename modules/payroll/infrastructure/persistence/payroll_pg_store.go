package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jacksonlee411/payroll-engine/modules/payroll/domain/ports"
	"github.com/jacksonlee411/payroll-engine/modules/payroll/domain/types"
	"github.com/jacksonlee411/payroll-engine/pkg/money"
	"github.com/jacksonlee411/payroll-engine/pkg/uuidv7"
	"github.com/shopspring/decimal"
)

type pgBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

const dateLayout = "2006-01-02"

type PayrollPGStore struct {
	pool pgBeginner
}

func NewPayrollPGStore(pool pgBeginner) *PayrollPGStore {
	return &PayrollPGStore{pool: pool}
}

var _ ports.PayPeriodStore = (*PayrollPGStore)(nil)

func beginWorkspaceTx(ctx context.Context, pool pgBeginner, workspaceID string) (pgx.Tx, error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, `SELECT set_config('app.current_workspace', $1, true);`, workspaceID); err != nil {
		_ = tx.Rollback(context.Background())
		return nil, err
	}
	return tx, nil
}

const payPeriodColumns = `
  id::text,
  workspace_id,
  period_type,
  period_start::text,
  period_end::text,
  pay_date::text,
  status,
  total_gross_pay::text,
  total_deductions::text,
  total_net_pay::text,
  total_employer_taxes::text,
  COALESCE(processed_by, ''),
  processed_at,
  COALESCE(approved_by, ''),
  approved_at,
  created_at`

func scanPayPeriod(row pgx.Row) (types.PayPeriod, error) {
	var p types.PayPeriod
	var periodType, status, start, end, payDate string
	var gross, deductions, net, employer string
	if err := row.Scan(
		&p.ID, &p.WorkspaceID, &periodType, &start, &end, &payDate, &status,
		&gross, &deductions, &net, &employer,
		&p.ProcessedBy, &p.ProcessedAt, &p.ApprovedBy, &p.ApprovedAt, &p.CreatedAt,
	); err != nil {
		return types.PayPeriod{}, err
	}
	p.PeriodType = types.PeriodType(periodType)
	p.Status = types.PayPeriodStatus(status)
	var err error
	if p.PeriodStart, err = time.Parse(dateLayout, start); err != nil {
		return types.PayPeriod{}, err
	}
	if p.PeriodEnd, err = time.Parse(dateLayout, end); err != nil {
		return types.PayPeriod{}, err
	}
	if p.PayDate, err = time.Parse(dateLayout, payDate); err != nil {
		return types.PayPeriod{}, err
	}
	if err := parseAmounts(
		[]*decimal.Decimal{&p.GrossPay, &p.Deductions, &p.NetPay, &p.EmployerTaxes},
		[]string{gross, deductions, net, employer},
	); err != nil {
		return types.PayPeriod{}, err
	}
	return p, nil
}

func parseAmounts(dst []*decimal.Decimal, raw []string) error {
	for i := range dst {
		d, err := money.ParseAmount(raw[i])
		if err != nil {
			return err
		}
		*dst[i] = d
	}
	return nil
}

func periodNotFound(err error, payPeriodID string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s", types.ErrPayPeriodNotFound, payPeriodID)
	}
	return err
}

func (s *PayrollPGStore) CreatePayPeriod(ctx context.Context, period types.PayPeriod) (types.PayPeriod, error) {
	if period.ID == "" {
		id, err := uuidv7.NewString()
		if err != nil {
			return types.PayPeriod{}, err
		}
		period.ID = id
	}

	tx, err := beginWorkspaceTx(ctx, s.pool, period.WorkspaceID)
	if err != nil {
		return types.PayPeriod{}, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	out, err := scanPayPeriod(tx.QueryRow(ctx, `
INSERT INTO payroll.pay_periods (id, workspace_id, period_type, period_start, period_end, pay_date, status)
VALUES ($1::uuid, $2::text, $3::text, $4::date, $5::date, $6::date, $7::text)
RETURNING `+payPeriodColumns+`
`, period.ID, period.WorkspaceID, string(period.PeriodType),
		period.PeriodStart.Format(dateLayout), period.PeriodEnd.Format(dateLayout), period.PayDate.Format(dateLayout),
		string(period.Status)))
	if err != nil {
		return types.PayPeriod{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return types.PayPeriod{}, err
	}
	return out, nil
}

func (s *PayrollPGStore) GetPayPeriod(ctx context.Context, workspaceID string, payPeriodID string) (types.PayPeriod, error) {
	tx, err := beginWorkspaceTx(ctx, s.pool, workspaceID)
	if err != nil {
		return types.PayPeriod{}, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	out, err := scanPayPeriod(tx.QueryRow(ctx, `
SELECT`+payPeriodColumns+`
FROM payroll.pay_periods
WHERE workspace_id = $1::text AND id = $2::uuid
`, workspaceID, payPeriodID))
	if err != nil {
		return types.PayPeriod{}, periodNotFound(err, payPeriodID)
	}

	if err := tx.Commit(ctx); err != nil {
		return types.PayPeriod{}, err
	}
	return out, nil
}

func (s *PayrollPGStore) ListPayPeriods(ctx context.Context, workspaceID string) ([]types.PayPeriod, error) {
	tx, err := beginWorkspaceTx(ctx, s.pool, workspaceID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	rows, err := tx.Query(ctx, `
SELECT`+payPeriodColumns+`
FROM payroll.pay_periods
WHERE workspace_id = $1::text
ORDER BY period_start DESC, id::text ASC
`, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]types.PayPeriod, 0)
	for rows.Next() {
		p, err := scanPayPeriod(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

func lockPayPeriod(ctx context.Context, tx pgx.Tx, workspaceID string, payPeriodID string) (types.PayPeriod, error) {
	p, err := scanPayPeriod(tx.QueryRow(ctx, `
SELECT`+payPeriodColumns+`
FROM payroll.pay_periods
WHERE workspace_id = $1::text AND id = $2::uuid
FOR UPDATE
`, workspaceID, payPeriodID))
	if err != nil {
		return types.PayPeriod{}, periodNotFound(err, payPeriodID)
	}
	return p, nil
}

func updatePayPeriod(ctx context.Context, tx pgx.Tx, p types.PayPeriod) error {
	_, err := tx.Exec(ctx, `
UPDATE payroll.pay_periods
SET
  status = $3::text,
  total_gross_pay = $4::numeric,
  total_deductions = $5::numeric,
  total_net_pay = $6::numeric,
  total_employer_taxes = $7::numeric,
  processed_by = NULLIF($8::text, ''),
  processed_at = $9::timestamptz,
  approved_by = NULLIF($10::text, ''),
  approved_at = $11::timestamptz
WHERE workspace_id = $1::text AND id = $2::uuid
`, p.WorkspaceID, p.ID, string(p.Status),
		money.Text(p.GrossPay), money.Text(p.Deductions), money.Text(p.NetPay), money.Text(p.EmployerTaxes),
		p.ProcessedBy, p.ProcessedAt, p.ApprovedBy, p.ApprovedAt)
	return err
}

// ProcessLocked keeps the period row locked (SELECT ... FOR UPDATE) while fn runs,
// so concurrent runs on one period serialize. Records, stale-record removal and
// the period update commit together.
func (s *PayrollPGStore) ProcessLocked(ctx context.Context, workspaceID string, payPeriodID string, fn ports.ProcessFunc) (types.PayPeriod, error) {
	tx, err := beginWorkspaceTx(ctx, s.pool, workspaceID)
	if err != nil {
		return types.PayPeriod{}, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	period, err := lockPayPeriod(ctx, tx, workspaceID, payPeriodID)
	if err != nil {
		return types.PayPeriod{}, err
	}

	write, err := fn(ctx, period)
	if err != nil {
		return types.PayPeriod{}, err
	}

	userIDs := make([]string, 0, len(write.Records))
	for _, rec := range write.Records {
		rec.WorkspaceID = workspaceID
		rec.PayPeriodID = payPeriodID
		if err := upsertPayrollRecord(ctx, tx, rec); err != nil {
			return types.PayPeriod{}, err
		}
		userIDs = append(userIDs, rec.UserID)
	}

	if _, err := tx.Exec(ctx, `
DELETE FROM payroll.payroll_records
WHERE workspace_id = $1::text
  AND pay_period_id = $2::uuid
  AND payment_status = 'unpaid'
  AND NOT (user_id = ANY($3::text[]))
`, workspaceID, payPeriodID, userIDs); err != nil {
		return types.PayPeriod{}, err
	}

	if err := updatePayPeriod(ctx, tx, write.Period); err != nil {
		return types.PayPeriod{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return types.PayPeriod{}, err
	}
	return write.Period, nil
}

func upsertPayrollRecord(ctx context.Context, tx pgx.Tx, rec types.PayrollRecord) error {
	id, err := uuidv7.NewString()
	if err != nil {
		return err
	}
	anomalies := rec.Anomalies
	if anomalies == nil {
		anomalies = []types.Anomaly{}
	}
	anomaliesJSON, err := json.Marshal(anomalies)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
INSERT INTO payroll.payroll_records (
  id, workspace_id, pay_period_id, user_id, pay_type,
  regular_hours, overtime_hours, regular_rate, overtime_rate, regular_pay, overtime_pay, gross_pay,
  federal_tax, state_tax, social_security, medicare, health_insurance, retirement_401k,
  total_deductions, net_pay,
  employer_social_security, employer_medicare, employer_unemployment, total_employer_taxes,
  payment_status, anomalies
)
VALUES (
  $1::uuid, $2::text, $3::uuid, $4::text, $5::text,
  $6::numeric, $7::numeric, $8::numeric, $9::numeric, $10::numeric, $11::numeric, $12::numeric,
  $13::numeric, $14::numeric, $15::numeric, $16::numeric, $17::numeric, $18::numeric,
  $19::numeric, $20::numeric,
  $21::numeric, $22::numeric, $23::numeric, $24::numeric,
  'unpaid', $25::jsonb
)
ON CONFLICT (pay_period_id, user_id) DO UPDATE SET
  pay_type = EXCLUDED.pay_type,
  regular_hours = EXCLUDED.regular_hours,
  overtime_hours = EXCLUDED.overtime_hours,
  regular_rate = EXCLUDED.regular_rate,
  overtime_rate = EXCLUDED.overtime_rate,
  regular_pay = EXCLUDED.regular_pay,
  overtime_pay = EXCLUDED.overtime_pay,
  gross_pay = EXCLUDED.gross_pay,
  federal_tax = EXCLUDED.federal_tax,
  state_tax = EXCLUDED.state_tax,
  social_security = EXCLUDED.social_security,
  medicare = EXCLUDED.medicare,
  health_insurance = EXCLUDED.health_insurance,
  retirement_401k = EXCLUDED.retirement_401k,
  total_deductions = EXCLUDED.total_deductions,
  net_pay = EXCLUDED.net_pay,
  employer_social_security = EXCLUDED.employer_social_security,
  employer_medicare = EXCLUDED.employer_medicare,
  employer_unemployment = EXCLUDED.employer_unemployment,
  total_employer_taxes = EXCLUDED.total_employer_taxes,
  anomalies = EXCLUDED.anomalies,
  updated_at = now()
`, id, rec.WorkspaceID, rec.PayPeriodID, rec.UserID, string(rec.PayType),
		money.Text(rec.RegularHours), money.Text(rec.OvertimeHours), money.Text(rec.RegularRate), money.Text(rec.OvertimeRate),
		money.Text(rec.RegularPay), money.Text(rec.OvertimePay), money.Text(rec.GrossPay),
		money.Text(rec.FederalTax), money.Text(rec.StateTax), money.Text(rec.SocialSecurity), money.Text(rec.Medicare),
		money.Text(rec.HealthInsurance), money.Text(rec.Retirement401k),
		money.Text(rec.TotalDeductions), money.Text(rec.NetPay),
		money.Text(rec.EmployerSocialSecurity), money.Text(rec.EmployerMedicare), money.Text(rec.EmployerUnemployment), money.Text(rec.TotalEmployerTaxes),
		string(anomaliesJSON))
	return err
}

func (s *PayrollPGStore) TransitionLocked(ctx context.Context, workspaceID string, payPeriodID string, fn ports.TransitionFunc) (types.PayPeriod, error) {
	tx, err := beginWorkspaceTx(ctx, s.pool, workspaceID)
	if err != nil {
		return types.PayPeriod{}, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	period, err := lockPayPeriod(ctx, tx, workspaceID, payPeriodID)
	if err != nil {
		return types.PayPeriod{}, err
	}
	next, err := fn(period)
	if err != nil {
		return types.PayPeriod{}, err
	}
	if err := updatePayPeriod(ctx, tx, next); err != nil {
		return types.PayPeriod{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return types.PayPeriod{}, err
	}
	return next, nil
}

const payrollRecordColumns = `
  r.id::text,
  r.workspace_id,
  r.pay_period_id::text,
  r.user_id,
  r.pay_type,
  r.regular_hours::text,
  r.overtime_hours::text,
  r.regular_rate::text,
  r.overtime_rate::text,
  r.regular_pay::text,
  r.overtime_pay::text,
  r.gross_pay::text,
  r.federal_tax::text,
  r.state_tax::text,
  r.social_security::text,
  r.medicare::text,
  r.health_insurance::text,
  r.retirement_401k::text,
  r.total_deductions::text,
  r.net_pay::text,
  r.employer_social_security::text,
  r.employer_medicare::text,
  r.employer_unemployment::text,
  r.total_employer_taxes::text,
  r.payment_status,
  r.payment_date,
  r.payment_reference,
  r.anomalies::text,
  r.created_at,
  r.updated_at`

func scanPayrollRecord(row pgx.Row) (types.PayrollRecord, error) {
	var rec types.PayrollRecord
	var payType, paymentStatus, anomalies string
	amounts := make([]string, 19)
	dest := []any{&rec.ID, &rec.WorkspaceID, &rec.PayPeriodID, &rec.UserID, &payType}
	for i := range amounts {
		dest = append(dest, &amounts[i])
	}
	dest = append(dest, &paymentStatus, &rec.PaymentDate, &rec.PaymentReference, &anomalies, &rec.CreatedAt, &rec.UpdatedAt)
	if err := row.Scan(dest...); err != nil {
		return types.PayrollRecord{}, err
	}

	rec.PayType = types.PayType(payType)
	rec.PaymentStatus = types.PaymentStatus(paymentStatus)
	if err := parseAmounts([]*decimal.Decimal{
		&rec.RegularHours, &rec.OvertimeHours, &rec.RegularRate, &rec.OvertimeRate,
		&rec.RegularPay, &rec.OvertimePay, &rec.GrossPay,
		&rec.FederalTax, &rec.StateTax, &rec.SocialSecurity, &rec.Medicare, &rec.HealthInsurance, &rec.Retirement401k,
		&rec.TotalDeductions, &rec.NetPay,
		&rec.EmployerSocialSecurity, &rec.EmployerMedicare, &rec.EmployerUnemployment, &rec.TotalEmployerTaxes,
	}, amounts); err != nil {
		return types.PayrollRecord{}, err
	}
	rec.Anomalies = []types.Anomaly{}
	if strings.TrimSpace(anomalies) != "" {
		if err := json.Unmarshal([]byte(anomalies), &rec.Anomalies); err != nil {
			return types.PayrollRecord{}, err
		}
	}
	return rec, nil
}

func (s *PayrollPGStore) ListPayrollRecords(ctx context.Context, workspaceID string, payPeriodID string) ([]types.PayrollRecord, error) {
	tx, err := beginWorkspaceTx(ctx, s.pool, workspaceID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	rows, err := tx.Query(ctx, `
SELECT`+payrollRecordColumns+`
FROM payroll.payroll_records r
WHERE r.workspace_id = $1::text AND r.pay_period_id = $2::uuid
ORDER BY r.user_id ASC
`, workspaceID, payPeriodID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]types.PayrollRecord, 0)
	for rows.Next() {
		rec, err := scanPayrollRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PayrollPGStore) MarkRecordPaid(ctx context.Context, workspaceID string, recordID string, reference string, at time.Time) (types.PayrollRecord, error) {
	tx, err := beginWorkspaceTx(ctx, s.pool, workspaceID)
	if err != nil {
		return types.PayrollRecord{}, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	// Period first, then record: the same order ProcessLocked takes them in.
	var periodStatus string
	if err := tx.QueryRow(ctx, `
SELECT p.status
FROM payroll.pay_periods p
JOIN payroll.payroll_records r ON r.pay_period_id = p.id
WHERE r.workspace_id = $1::text AND r.id = $2::uuid
FOR UPDATE OF p
`, workspaceID, recordID).Scan(&periodStatus); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.PayrollRecord{}, fmt.Errorf("%w: %s", types.ErrRecordNotFound, recordID)
		}
		return types.PayrollRecord{}, err
	}

	rec, err := scanPayrollRecord(tx.QueryRow(ctx, `
SELECT`+payrollRecordColumns+`
FROM payroll.payroll_records r
WHERE r.workspace_id = $1::text AND r.id = $2::uuid
FOR UPDATE OF r
`, workspaceID, recordID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.PayrollRecord{}, fmt.Errorf("%w: %s", types.ErrRecordNotFound, recordID)
		}
		return types.PayrollRecord{}, err
	}

	paid, err := rec.MarkPaid(types.PayPeriod{ID: rec.PayPeriodID, Status: types.PayPeriodStatus(periodStatus)}, reference, at)
	if err != nil {
		return types.PayrollRecord{}, err
	}

	if _, err := tx.Exec(ctx, `
UPDATE payroll.payroll_records
SET payment_status = 'paid', payment_date = $3::timestamptz, payment_reference = $4::text, updated_at = $3::timestamptz
WHERE workspace_id = $1::text AND id = $2::uuid
`, workspaceID, recordID, paid.PaymentDate, paid.PaymentReference); err != nil {
		return types.PayrollRecord{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return types.PayrollRecord{}, err
	}
	return paid, nil
}
