package types

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestParsePeriodType(t *testing.T) {
	for _, in := range []string{"weekly", " Bi-Weekly ", "semi-monthly", "MONTHLY"} {
		if _, err := ParsePeriodType(in); err != nil {
			t.Fatalf("in=%q err=%v", in, err)
		}
	}
	if _, err := ParsePeriodType("daily"); !errors.Is(err, ErrInvalidPayPeriod) {
		t.Fatalf("err=%v", err)
	}
}

func TestPeriodTypeTables(t *testing.T) {
	cases := []struct {
		p       PeriodType
		scale   string
		divisor int64
	}{
		{PeriodWeekly, "1", 52},
		{PeriodBiWeekly, "2", 26},
		{PeriodSemiMonthly, "2.16", 24},
		{PeriodMonthly, "4.33", 12},
	}
	for _, tc := range cases {
		t.Run(string(tc.p), func(t *testing.T) {
			if got := tc.p.OvertimeScale(); !got.Equal(decimal.RequireFromString(tc.scale)) {
				t.Fatalf("scale=%s", got)
			}
			if got := tc.p.SalaryDivisor(); got != tc.divisor {
				t.Fatalf("divisor=%d", got)
			}
		})
	}
}

func TestNewPayPeriod(t *testing.T) {
	p, err := NewPayPeriod("ws1", PeriodBiWeekly, day("2024-01-01"), day("2024-01-14"), day("2024-01-19"))
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if p.Status != StatusDraft || !p.GrossPay.IsZero() {
		t.Fatalf("period=%+v", p)
	}

	if _, err := NewPayPeriod("", PeriodBiWeekly, day("2024-01-01"), day("2024-01-14"), day("2024-01-19")); !errors.Is(err, ErrInvalidPayPeriod) {
		t.Fatalf("err=%v", err)
	}
	if _, err := NewPayPeriod("ws1", PeriodBiWeekly, day("2024-01-14"), day("2024-01-01"), day("2024-01-19")); !errors.Is(err, ErrInvalidPayPeriod) {
		t.Fatalf("err=%v", err)
	}
	if _, err := NewPayPeriod("ws1", "daily", day("2024-01-01"), day("2024-01-14"), day("2024-01-19")); !errors.Is(err, ErrInvalidPayPeriod) {
		t.Fatalf("err=%v", err)
	}
}

func TestPayPeriodLifecycle(t *testing.T) {
	now := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	p := PayPeriod{Status: StatusDraft}

	if err := p.CheckProcess(); err != nil {
		t.Fatalf("draft err=%v", err)
	}
	if _, err := p.Approve("u1", now); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("approve draft err=%v", err)
	}

	p = p.WithProcessing(PeriodTotals{GrossPay: decimal.NewFromInt(10)}, "u1", now)
	if p.Status != StatusProcessing || p.ProcessedAt == nil || p.ProcessedBy != "u1" {
		t.Fatalf("period=%+v", p)
	}
	if err := p.CheckProcess(); err != nil {
		t.Fatalf("processing err=%v", err)
	}
	if _, err := p.MarkPaid(); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("mark paid processing err=%v", err)
	}

	p, err := p.Approve("u2", now)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if p.Status != StatusApproved || p.ApprovedBy != "u2" || p.ApprovedAt == nil {
		t.Fatalf("period=%+v", p)
	}
	if err := p.CheckProcess(); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("process approved err=%v", err)
	}
	if _, err := p.Approve("u2", now); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("approve twice err=%v", err)
	}

	p, err = p.MarkPaid()
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if err := p.CheckProcess(); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("process paid err=%v", err)
	}
}

func validHourly() EmployeeCompensation {
	return EmployeeCompensation{
		ID:                     "c1",
		UserID:                 "u1",
		PayType:                PayTypeHourly,
		HourlyRate:             decimal.NewFromInt(20),
		OvertimeEligible:       true,
		OvertimeRateMultiplier: decimal.RequireFromString("1.5"),
		EffectiveDate:          day("2024-01-01"),
		IsActive:               true,
	}
}

func TestCompensationValidate(t *testing.T) {
	if err := validHourly().Validate(); err != nil {
		t.Fatalf("err=%v", err)
	}
	cases := map[string]func(c *EmployeeCompensation){
		"negative rate":   func(c *EmployeeCompensation) { c.HourlyRate = decimal.NewFromInt(-1) },
		"unknown type":    func(c *EmployeeCompensation) { c.PayType = "commission" },
		"salary zero":     func(c *EmployeeCompensation) { c.PayType = PayTypeSalary },
		"multiplier":      func(c *EmployeeCompensation) { c.OvertimeRateMultiplier = decimal.RequireFromString("0.5") },
		"health negative": func(c *EmployeeCompensation) { c.HealthInsuranceDeduction = decimal.NewFromInt(-5) },
		"401k over 100":   func(c *EmployeeCompensation) { c.Retirement401kPercent = decimal.NewFromInt(101) },
		"missing user":    func(c *EmployeeCompensation) { c.UserID = " " },
		"end before start": func(c *EmployeeCompensation) {
			end := day("2023-12-31")
			c.EndDate = &end
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := validHourly()
			mutate(&c)
			if err := c.Validate(); !errors.Is(err, ErrInvalidCompensation) {
				t.Fatalf("err=%v", err)
			}
		})
	}
}

func TestInEffectDuring(t *testing.T) {
	c := validHourly()
	if !c.InEffectDuring(day("2024-01-01"), day("2024-01-14")) {
		t.Fatal("expected in effect")
	}
	c.EffectiveDate = day("2024-01-15")
	if c.InEffectDuring(day("2024-01-01"), day("2024-01-14")) {
		t.Fatal("future record should not be in effect")
	}
	c.EffectiveDate = day("2023-06-01")
	end := day("2023-12-31")
	c.EndDate = &end
	if c.InEffectDuring(day("2024-01-01"), day("2024-01-14")) {
		t.Fatal("ended record should not be in effect")
	}
	c.EndDate = nil
	c.IsActive = false
	if c.InEffectDuring(day("2024-01-01"), day("2024-01-14")) {
		t.Fatal("inactive record should not be in effect")
	}
}

func TestLatestPerEmployee(t *testing.T) {
	a := validHourly()
	a.ID, a.EffectiveDate = "0190-a", day("2023-01-01")
	b := validHourly()
	b.ID, b.EffectiveDate = "0190-b", day("2024-01-01")
	c := validHourly()
	c.ID, c.EffectiveDate = "0190-c", day("2024-01-01")
	other := validHourly()
	other.ID, other.UserID = "0190-z", "u0"

	got := LatestPerEmployee([]EmployeeCompensation{c, a, other, b})
	if len(got) != 2 {
		t.Fatalf("len=%d", len(got))
	}
	if got[0].UserID != "u0" || got[1].UserID != "u1" {
		t.Fatalf("order=%v,%v", got[0].UserID, got[1].UserID)
	}
	if got[1].ID != "0190-c" {
		t.Fatalf("winner=%s", got[1].ID)
	}
}

func TestPayrollRecordMarkPaid(t *testing.T) {
	now := time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC)
	rec := PayrollRecord{PaymentStatus: PaymentUnpaid}

	if _, err := rec.MarkPaid(PayPeriod{Status: StatusProcessing}, "ACH-1", now); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("err=%v", err)
	}
	paid, err := rec.MarkPaid(PayPeriod{Status: StatusApproved}, " ACH-1 ", now)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if paid.PaymentStatus != PaymentPaid || paid.PaymentReference != "ACH-1" || paid.PaymentDate == nil {
		t.Fatalf("record=%+v", paid)
	}
	if _, err := paid.MarkPaid(PayPeriod{Status: StatusPaid}, "ACH-2", now); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("err=%v", err)
	}
}

func TestSumTotals(t *testing.T) {
	recs := []PayrollRecord{
		{GrossPay: decimal.RequireFromString("1900"), TotalDeductions: decimal.RequireFromString("489.35"), NetPay: decimal.RequireFromString("1410.65"), TotalEmployerTaxes: decimal.RequireFromString("156.75")},
		{GrossPay: decimal.RequireFromString("100"), TotalDeductions: decimal.RequireFromString("10"), NetPay: decimal.RequireFromString("90"), TotalEmployerTaxes: decimal.RequireFromString("1")},
	}
	got := SumTotals(recs)
	if got.GrossPay.String() != "2000" || got.NetPay.String() != "1500.65" || got.Deductions.String() != "499.35" || got.EmployerTaxes.String() != "157.75" {
		t.Fatalf("totals=%+v", got)
	}
	if empty := SumTotals(nil); !empty.GrossPay.IsZero() {
		t.Fatalf("empty=%+v", empty)
	}
}

func TestPayrollSettings(t *testing.T) {
	if err := DefaultPayrollSettings().Validate(); err != nil {
		t.Fatalf("err=%v", err)
	}

	s, err := ParsePayrollSettings([]byte(`{"federal_flat_rate":"0.10"}`))
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if !s.FederalFlatRate.Equal(decimal.RequireFromString("0.10")) || !s.StateFlatRate.Equal(decimal.RequireFromString("0.05")) {
		t.Fatalf("settings=%+v", s)
	}

	if _, err := ParsePayrollSettings(nil); err != nil {
		t.Fatalf("err=%v", err)
	}
	if _, err := ParsePayrollSettings([]byte(`{"medicare_rate":1.5}`)); !errors.Is(err, ErrInvalidSettings) {
		t.Fatalf("err=%v", err)
	}
	if _, err := ParsePayrollSettings([]byte(`{"overtime_weekly_threshold_hours":0}`)); !errors.Is(err, ErrInvalidSettings) {
		t.Fatalf("err=%v", err)
	}
	if _, err := ParsePayrollSettings([]byte(`{"anomaly_rules":[{"code":"","expression":"true"}]}`)); !errors.Is(err, ErrInvalidSettings) {
		t.Fatalf("err=%v", err)
	}
	if _, err := ParsePayrollSettings([]byte(`{`)); !errors.Is(err, ErrInvalidSettings) {
		t.Fatalf("err=%v", err)
	}
}
