package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jacksonlee411/payroll-engine/modules/payroll/domain/ports"
	"github.com/jacksonlee411/payroll-engine/modules/payroll/domain/types"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const DefaultWorkers = 4

type ProcessorDeps struct {
	Periods      ports.PayPeriodStore
	Compensation ports.CompensationRegistry
	Time         ports.TimeAggregator
	Settings     ports.SettingsStore
	Taxes        taxCalculator
	Log          zerolog.Logger
	Workers      int
	Now          func() time.Time
}

type PayPeriodProcessor struct {
	periods  ports.PayPeriodStore
	comps    ports.CompensationRegistry
	time     ports.TimeAggregator
	settings ports.SettingsStore
	taxes    taxCalculator
	log      zerolog.Logger
	workers  int
	now      func() time.Time
}

func NewPayPeriodProcessor(deps ProcessorDeps) *PayPeriodProcessor {
	workers := deps.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &PayPeriodProcessor{
		periods:  deps.Periods,
		comps:    deps.Compensation,
		time:     deps.Time,
		settings: deps.Settings,
		taxes:    deps.Taxes,
		log:      deps.Log,
		workers:  workers,
		now:      now,
	}
}

type employeeOutcome struct {
	userID     string
	skipReason string
	result     Computation
}

type batch struct {
	records      []types.PayrollRecord
	skipped      []types.SkippedEmployee
	taxFallbacks int
	anomalies    int
	ruleFailures map[string]error
}

// Process recomputes every in-effect employee for the period and writes records,
// totals and status together under the period lock. All collaborator reads happen
// before the lock is taken, so a locked run never waits on another connection.
// Any batch-level failure leaves the period untouched.
func (p *PayPeriodProcessor) Process(ctx context.Context, workspaceID string, payPeriodID string, processedBy string) (types.ProcessSummary, error) {
	started := p.now()

	current, err := p.periods.GetPayPeriod(ctx, workspaceID, payPeriodID)
	if err != nil {
		return types.ProcessSummary{}, err
	}
	if err := current.CheckProcess(); err != nil {
		return types.ProcessSummary{}, err
	}

	b, err := p.computeBatch(ctx, workspaceID, current)
	if err != nil {
		return types.ProcessSummary{}, err
	}
	totals := types.SumTotals(b.records)

	period, err := p.periods.ProcessLocked(ctx, workspaceID, payPeriodID, func(_ context.Context, locked types.PayPeriod) (ports.PeriodWrite, error) {
		// Re-checked under the lock: an approval may have landed since the read above.
		if err := locked.CheckProcess(); err != nil {
			return ports.PeriodWrite{}, err
		}
		return ports.PeriodWrite{
			Period:  locked.WithProcessing(totals, processedBy, p.now()),
			Records: b.records,
		}, nil
	})
	if err != nil {
		return types.ProcessSummary{}, err
	}

	for _, s := range b.skipped {
		p.log.Warn().
			Str("workspace_id", workspaceID).
			Str("pay_period_id", period.ID).
			Str("user_id", s.UserID).
			Str("reason", s.Reason).
			Msg("employee skipped")
	}
	for code, err := range b.ruleFailures {
		p.log.Warn().Err(err).
			Str("workspace_id", workspaceID).
			Str("pay_period_id", period.ID).
			Str("rule", code).
			Msg("anomaly rule skipped")
	}

	summary := types.ProcessSummary{
		PayPeriodID:        period.ID,
		Status:             period.Status,
		EmployeesProcessed: len(b.records),
		Skipped:            b.skipped,
		TaxFallbacks:       b.taxFallbacks,
		Anomalies:          b.anomalies,
		TotalGrossPay:      totals.GrossPay,
		TotalNetPay:        totals.NetPay,
	}
	p.log.Info().
		Str("workspace_id", workspaceID).
		Str("pay_period_id", period.ID).
		Int("employees_processed", summary.EmployeesProcessed).
		Int("skipped", len(summary.Skipped)).
		Int("tax_fallbacks", summary.TaxFallbacks).
		Int("anomalies", summary.Anomalies).
		Str("total_gross_pay", summary.TotalGrossPay.StringFixed(2)).
		Dur("elapsed", p.now().Sub(started)).
		Msg("pay period processed")
	return summary, nil
}

func (p *PayPeriodProcessor) computeBatch(ctx context.Context, workspaceID string, period types.PayPeriod) (batch, error) {
	settings, err := p.settings.GetPayrollSettings(ctx, workspaceID)
	if err != nil {
		return batch{}, fmt.Errorf("load payroll settings: %w", err)
	}
	settings.AnomalyRules = p.usableRules(workspaceID, settings.AnomalyRules)

	comps, err := p.comps.ListCompensationInEffect(ctx, workspaceID, period.PeriodStart, period.PeriodEnd)
	if err != nil {
		return batch{}, fmt.Errorf("load compensation: %w", err)
	}
	roster := types.LatestPerEmployee(comps)

	outcomes := make([]employeeOutcome, len(roster))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, comp := range roster {
		g.Go(func() error {
			outcomes[i].userID = comp.UserID
			if err := comp.Validate(); err != nil {
				outcomes[i].skipReason = err.Error()
				return nil
			}
			minutes, err := p.time.TotalMinutes(gctx, workspaceID, comp.UserID, period.PeriodStart, period.PeriodEnd)
			if err != nil {
				return fmt.Errorf("worked minutes for %s: %w", comp.UserID, err)
			}
			res, err := ComputeForEmployee(gctx, p.taxes, ComputationInput{
				Compensation:  comp,
				WorkedMinutes: minutes,
				Period:        period,
				Settings:      settings,
			})
			if err != nil {
				if errors.Is(err, types.ErrInvalidCompensation) {
					outcomes[i].skipReason = err.Error()
					return nil
				}
				return fmt.Errorf("compute %s: %w", comp.UserID, err)
			}
			outcomes[i].result = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return batch{}, err
	}

	b := batch{
		records:      make([]types.PayrollRecord, 0, len(outcomes)),
		skipped:      make([]types.SkippedEmployee, 0),
		ruleFailures: make(map[string]error),
	}
	for _, o := range outcomes {
		if o.skipReason != "" {
			b.skipped = append(b.skipped, types.SkippedEmployee{UserID: o.userID, Reason: o.skipReason})
			continue
		}
		b.taxFallbacks += o.result.TaxFallbacks
		b.anomalies += len(o.result.Record.Anomalies)
		for _, f := range o.result.RuleFailures {
			if _, seen := b.ruleFailures[f.Code]; !seen {
				b.ruleFailures[f.Code] = f.Err
			}
		}
		b.records = append(b.records, o.result.Record)
	}
	return b, nil
}

// usableRules drops workspace rules that do not compile so one bad expression
// cannot block a payroll run.
func (p *PayPeriodProcessor) usableRules(workspaceID string, rules []types.AnomalyRule) []types.AnomalyRule {
	out := make([]types.AnomalyRule, 0, len(rules))
	for _, rule := range rules {
		if _, err := CompileAnomalyRule(rule.Expression); err != nil {
			p.log.Warn().Err(err).
				Str("workspace_id", workspaceID).
				Str("rule", rule.Code).
				Msg("anomaly rule ignored")
			continue
		}
		out = append(out, rule)
	}
	return out
}
