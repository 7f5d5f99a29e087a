package services

import (
	"testing"

	"github.com/jacksonlee411/payroll-engine/modules/payroll/domain/types"
)

func TestCompileAnomalyRule(t *testing.T) {
	if _, err := CompileAnomalyRule("gross_pay > 10.0 && period_type == \"monthly\""); err != nil {
		t.Fatalf("err=%v", err)
	}
	for _, expr := range []string{"", "  ", "gross_pay >", "gross_pay + 1.0", "unknown_var > 1.0"} {
		if _, err := CompileAnomalyRule(expr); err == nil {
			t.Fatalf("expected error for %q", expr)
		}
	}
}

func TestCompileAnomalyRule_Cached(t *testing.T) {
	expr := "net_pay > gross_pay"
	first, err := CompileAnomalyRule(expr)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	second, err := CompileAnomalyRule(" " + expr + " ")
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if first != second {
		t.Fatal("expected cached program")
	}
}

func TestEvaluateAnomalies(t *testing.T) {
	hourlyIdle := types.PayrollRecord{PayType: types.PayTypeHourly, RegularHours: dec("0"), OvertimeHours: dec("0"), GrossPay: dec("0"), NetPay: dec("0")}
	salaryIdle := hourlyIdle
	salaryIdle.PayType = types.PayTypeSalary
	negative := types.PayrollRecord{PayType: types.PayTypeHourly, RegularHours: dec("5"), GrossPay: dec("100"), NetPay: dec("-12.50")}

	cases := []struct {
		name  string
		rec   types.PayrollRecord
		rules []types.AnomalyRule
		want  []string
	}{
		{name: "hourly with no hours", rec: hourlyIdle, want: []string{types.AnomalyZeroHoursHourly}},
		{name: "salary with no hours", rec: salaryIdle},
		{name: "negative net", rec: negative, want: []string{types.AnomalyNegativeNetPay}},
		{
			name:  "workspace rule without message",
			rec:   negative,
			rules: []types.AnomalyRule{{Code: "SHORT_WEEK", Expression: "regular_hours < 10.0"}},
			want:  []string{types.AnomalyNegativeNetPay, "SHORT_WEEK"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, failures, err := EvaluateAnomalies(tc.rec, types.PeriodWeekly, tc.rules)
			if err != nil || len(failures) != 0 {
				t.Fatalf("failures=%v err=%v", failures, err)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("got=%v want=%v", got, tc.want)
			}
			for i := range got {
				if got[i].Code != tc.want[i] || got[i].Message == "" {
					t.Fatalf("got=%v want=%v", got, tc.want)
				}
			}
		})
	}
}

func TestEvaluateAnomalies_WorkspaceRuleFailuresAreSkipped(t *testing.T) {
	rec := types.PayrollRecord{PayType: types.PayTypeHourly, RegularHours: dec("10"), OvertimeHours: dec("0"), GrossPay: dec("200"), NetPay: dec("150")}
	rules := []types.AnomalyRule{
		{Code: "NOT_BOOL", Expression: "pay_type"},
		{Code: "OT_RATIO", Expression: "int(gross_pay) / int(overtime_hours) > 100"},
		{Code: "HIGH_GROSS", Expression: "gross_pay > 100.0", Message: "review"},
	}
	got, failures, err := EvaluateAnomalies(rec, types.PeriodWeekly, rules)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if len(got) != 1 || got[0].Code != "HIGH_GROSS" {
		t.Fatalf("got=%v", got)
	}
	if len(failures) != 2 || failures[0].Code != "NOT_BOOL" || failures[1].Code != "OT_RATIO" || failures[1].Err == nil {
		t.Fatalf("failures=%v", failures)
	}
}
