package services

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/jacksonlee411/payroll-engine/modules/payroll/domain/types"
	"github.com/shopspring/decimal"
)

// BuiltinAnomalyRules are evaluated for every record before workspace rules.
var BuiltinAnomalyRules = []types.AnomalyRule{
	{
		Code:       types.AnomalyNegativeNetPay,
		Expression: `net_pay < 0.0`,
		Message:    "deductions exceed gross pay",
	},
	{
		Code:       types.AnomalyZeroHoursHourly,
		Expression: `pay_type == "hourly" && regular_hours + overtime_hours == 0.0`,
		Message:    "hourly employee has no worked hours in period",
	},
}

var newAnomalyCELEnv = func() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("pay_type", cel.StringType),
		cel.Variable("regular_hours", cel.DoubleType),
		cel.Variable("overtime_hours", cel.DoubleType),
		cel.Variable("gross_pay", cel.DoubleType),
		cel.Variable("total_deductions", cel.DoubleType),
		cel.Variable("net_pay", cel.DoubleType),
		cel.Variable("total_employer_taxes", cel.DoubleType),
		cel.Variable("period_type", cel.StringType),
	)
}

var anomalyProgramCache sync.Map

func CompileAnomalyRule(expr string) (cel.Program, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, errors.New("expression required")
	}
	if cached, ok := anomalyProgramCache.Load(expr); ok {
		return cached.(cel.Program), nil
	}
	env, err := newAnomalyCELEnv()
	if err != nil {
		return nil, err
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, errors.New("expression output type mismatch")
	}
	program, err := env.Program(ast)
	if err != nil {
		return nil, err
	}
	anomalyProgramCache.Store(expr, program)
	return program, nil
}

func anomalyActivation(rec types.PayrollRecord, periodType types.PeriodType) map[string]any {
	f := func(d decimal.Decimal) float64 {
		v, _ := d.Float64()
		return v
	}
	return map[string]any{
		"pay_type":             string(rec.PayType),
		"regular_hours":        f(rec.RegularHours),
		"overtime_hours":       f(rec.OvertimeHours),
		"gross_pay":            f(rec.GrossPay),
		"total_deductions":     f(rec.TotalDeductions),
		"net_pay":              f(rec.NetPay),
		"total_employer_taxes": f(rec.TotalEmployerTaxes),
		"period_type":          string(periodType),
	}
}

// RuleFailure names a workspace rule that could not be applied to a record.
type RuleFailure struct {
	Code string
	Err  error
}

// EvaluateAnomalies runs the built-in rules and then the workspace rules against
// a computed record. A failing built-in rule is an error; a failing workspace rule
// is reported in the second return value and otherwise ignored.
func EvaluateAnomalies(rec types.PayrollRecord, periodType types.PeriodType, workspaceRules []types.AnomalyRule) ([]types.Anomaly, []RuleFailure, error) {
	vars := anomalyActivation(rec, periodType)
	var out []types.Anomaly
	for _, rule := range BuiltinAnomalyRules {
		hit, err := evalAnomalyRule(rule, vars)
		if err != nil {
			return nil, nil, fmt.Errorf("anomaly rule %s: %w", rule.Code, err)
		}
		if hit {
			out = append(out, anomalyFor(rule))
		}
	}
	var failures []RuleFailure
	for _, rule := range workspaceRules {
		hit, err := evalAnomalyRule(rule, vars)
		if err != nil {
			failures = append(failures, RuleFailure{Code: rule.Code, Err: err})
			continue
		}
		if hit {
			out = append(out, anomalyFor(rule))
		}
	}
	return out, failures, nil
}

func evalAnomalyRule(rule types.AnomalyRule, vars map[string]any) (bool, error) {
	program, err := CompileAnomalyRule(rule.Expression)
	if err != nil {
		return false, err
	}
	val, _, err := program.Eval(vars)
	if err != nil {
		return false, err
	}
	hit, ok := val.Value().(bool)
	if !ok {
		return false, errors.New("non-bool result")
	}
	return hit, nil
}

func anomalyFor(rule types.AnomalyRule) types.Anomaly {
	msg := strings.TrimSpace(rule.Message)
	if msg == "" {
		msg = rule.Expression
	}
	return types.Anomaly{Code: rule.Code, Message: msg}
}
