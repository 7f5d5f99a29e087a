package services

import (
	"context"
	"testing"
	"time"

	"github.com/jacksonlee411/payroll-engine/modules/payroll/domain/ports"
	"github.com/jacksonlee411/payroll-engine/modules/payroll/domain/types"
	"github.com/jacksonlee411/payroll-engine/modules/payroll/infrastructure/persistence"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

var fixedNow = time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type harness struct {
	store     *persistence.MemoryStore
	processor *PayPeriodProcessor
	facade    PayrollFacade
}

type harnessOption func(*ProcessorDeps)

func withBrackets(b ports.TaxBracketStore) harnessOption {
	return func(d *ProcessorDeps) { d.Taxes = NewTaxCalculator(b, zerolog.Nop()) }
}

func withTime(a ports.TimeAggregator) harnessOption {
	return func(d *ProcessorDeps) { d.Time = a }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	store := persistence.NewMemoryStore()
	store.SetClock(func() time.Time { return fixedNow })
	deps := ProcessorDeps{
		Periods:      store,
		Compensation: store,
		Time:         store,
		Settings:     store,
		Taxes:        NewTaxCalculator(store, zerolog.Nop()),
		Log:          zerolog.Nop(),
		Workers:      3,
		Now:          func() time.Time { return fixedNow },
	}
	for _, opt := range opts {
		opt(&deps)
	}
	processor := NewPayPeriodProcessor(deps)
	return &harness{
		store:     store,
		processor: processor,
		facade:    NewPayrollFacade(store, store, processor, func() time.Time { return fixedNow }),
	}
}

func (h *harness) period(t *testing.T, periodType types.PeriodType, start, end string) types.PayPeriod {
	t.Helper()
	e := day(end)
	p, err := h.facade.CreatePayPeriod(context.Background(), "ws1", CreatePayPeriodInput{
		PeriodType:  string(periodType),
		PeriodStart: day(start),
		PeriodEnd:   &e,
	})
	if err != nil {
		t.Fatalf("create period: %v", err)
	}
	return p
}

func (h *harness) hourly(t *testing.T, userID string, rate string, effective string) types.EmployeeCompensation {
	t.Helper()
	c, err := h.facade.AddCompensation(context.Background(), types.EmployeeCompensation{
		WorkspaceID:            "ws1",
		UserID:                 userID,
		PayType:                types.PayTypeHourly,
		HourlyRate:             dec(rate),
		OvertimeEligible:       true,
		OvertimeRateMultiplier: dec("1.5"),
		EffectiveDate:          day(effective),
	})
	if err != nil {
		t.Fatalf("add compensation: %v", err)
	}
	return c
}

func (h *harness) salaried(t *testing.T, userID string, annual string, effective string) types.EmployeeCompensation {
	t.Helper()
	c, err := h.facade.AddCompensation(context.Background(), types.EmployeeCompensation{
		WorkspaceID:   "ws1",
		UserID:        userID,
		PayType:       types.PayTypeSalary,
		SalaryAmount:  dec(annual),
		EffectiveDate: day(effective),
	})
	if err != nil {
		t.Fatalf("add compensation: %v", err)
	}
	return c
}

func (h *harness) work(userID string, date string, minutes int64) {
	h.store.AddTimeEntry(persistence.TimeEntry{WorkspaceID: "ws1", UserID: userID, Date: day(date), Minutes: minutes, Status: "completed"})
}

func (h *harness) process(t *testing.T, periodID string) types.ProcessSummary {
	t.Helper()
	s, err := h.facade.ProcessPayPeriod(context.Background(), "ws1", periodID, "admin")
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	return s
}

func (h *harness) records(t *testing.T, periodID string) []types.PayrollRecord {
	t.Helper()
	recs, err := h.facade.ListPayrollRecords(context.Background(), "ws1", periodID)
	if err != nil {
		t.Fatalf("list records: %v", err)
	}
	return recs
}

func assertAmount(t *testing.T, name string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(dec(want)) {
		t.Fatalf("%s=%s want=%s", name, got.StringFixed(2), want)
	}
}
