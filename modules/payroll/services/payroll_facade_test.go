package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jacksonlee411/payroll-engine/modules/payroll/domain/types"
	"github.com/jacksonlee411/payroll-engine/pkg/httperr"
)

func TestCreatePayPeriod(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	p, err := h.facade.CreatePayPeriod(ctx, "ws1", CreatePayPeriodInput{PeriodType: "bi-weekly", PeriodStart: day("2024-01-01")})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if p.ID == "" || p.Status != types.StatusDraft {
		t.Fatalf("period=%+v", p)
	}
	if !p.PeriodEnd.Equal(day("2024-01-14")) || !p.PayDate.Equal(day("2024-01-14")) {
		t.Fatalf("end=%s pay_date=%s", p.PeriodEnd, p.PayDate)
	}
	if !p.GrossPay.IsZero() || !p.NetPay.IsZero() {
		t.Fatalf("totals=%+v", p.PeriodTotals)
	}

	pay := day("2024-02-05")
	m, err := h.facade.CreatePayPeriod(ctx, "ws1", CreatePayPeriodInput{PeriodType: "monthly", PeriodStart: day("2024-01-01"), PayDate: &pay})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if !m.PeriodEnd.Equal(day("2024-01-31")) || !m.PayDate.Equal(pay) {
		t.Fatalf("period=%+v", m)
	}

	list, err := h.facade.ListPayPeriods(ctx, "ws1")
	if err != nil || len(list) != 2 {
		t.Fatalf("len=%d err=%v", len(list), err)
	}
	other, err := h.facade.ListPayPeriods(ctx, "ws2")
	if err != nil || len(other) != 0 {
		t.Fatalf("len=%d err=%v", len(other), err)
	}
}

func TestCreatePayPeriod_BadRequest(t *testing.T) {
	h := newHarness(t)
	end := day("2023-12-01")
	cases := []CreatePayPeriodInput{
		{PeriodType: "fortnightly", PeriodStart: day("2024-01-01")},
		{PeriodType: "weekly"},
		{PeriodType: "weekly", PeriodStart: day("2024-01-01"), PeriodEnd: &end},
	}
	for _, in := range cases {
		if _, err := h.facade.CreatePayPeriod(context.Background(), "ws1", in); !httperr.IsBadRequest(err) {
			t.Fatalf("in=%+v err=%v", in, err)
		}
	}
}

func TestAddCompensation_Validation(t *testing.T) {
	h := newHarness(t)
	_, err := h.facade.AddCompensation(context.Background(), types.EmployeeCompensation{
		WorkspaceID:   "ws1",
		UserID:        "u1",
		PayType:       types.PayTypeHourly,
		EffectiveDate: day("2024-01-01"),
	})
	if !httperr.IsBadRequest(err) {
		t.Fatalf("err=%v", err)
	}
}

func TestAddCompensation_Supersedes(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.hourly(t, "u1", "20", "2023-01-01")
	h.hourly(t, "u1", "22", "2024-01-08")

	p := h.period(t, types.PeriodWeekly, "2024-01-15", "2024-01-21")
	h.work("u1", "2024-01-16", 600)
	h.process(t, p.ID)
	assertAmount(t, "rate", h.records(t, p.ID)[0].RegularRate, "22")

	comps, err := h.store.ListCompensationInEffect(ctx, "ws1", day("2023-06-01"), day("2023-06-07"))
	if err != nil || len(comps) != 1 || comps[0].EndDate == nil || !comps[0].EndDate.Equal(day("2024-01-07")) {
		t.Fatalf("comps=%+v err=%v", comps, err)
	}
}

func TestMarkRecordPaid(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	p := h.period(t, types.PeriodBiWeekly, "2024-01-01", "2024-01-14")
	h.hourly(t, "u1", "20", "2023-01-01")
	h.work("u1", "2024-01-02", 600)
	h.process(t, p.ID)
	rec := h.records(t, p.ID)[0]

	if _, err := h.facade.MarkRecordPaid(ctx, "ws1", rec.ID, "ACH-1"); !errors.Is(err, types.ErrInvalidTransition) {
		t.Fatalf("err=%v", err)
	}
	if _, err := h.facade.ApprovePayPeriod(ctx, "ws1", p.ID, "boss"); err != nil {
		t.Fatalf("err=%v", err)
	}
	paid, err := h.facade.MarkRecordPaid(ctx, "ws1", rec.ID, "ACH-1")
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if paid.PaymentStatus != types.PaymentPaid || paid.PaymentReference != "ACH-1" || paid.PaymentDate == nil {
		t.Fatalf("record=%+v", paid)
	}
	if _, err := h.facade.MarkRecordPaid(ctx, "ws1", rec.ID, "ACH-2"); !errors.Is(err, types.ErrInvalidTransition) {
		t.Fatalf("err=%v", err)
	}
	if _, err := h.facade.MarkRecordPaid(ctx, "ws1", "missing", ""); !errors.Is(err, types.ErrRecordNotFound) {
		t.Fatalf("err=%v", err)
	}
}

func TestListPayrollRecords_UnknownPeriod(t *testing.T) {
	h := newHarness(t)
	if _, err := h.facade.ListPayrollRecords(context.Background(), "ws1", "missing"); !errors.Is(err, types.ErrPayPeriodNotFound) {
		t.Fatalf("err=%v", err)
	}
}

func TestSchedule(t *testing.T) {
	h := newHarness(t)
	windows, err := h.facade.Schedule("semi-monthly", day("2024-01-01"), 4)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	want := [][2]string{{"2024-01-01", "2024-01-15"}, {"2024-01-16", "2024-01-31"}, {"2024-02-01", "2024-02-15"}, {"2024-02-16", "2024-02-29"}}
	if len(windows) != len(want) {
		t.Fatalf("len=%d", len(windows))
	}
	for i, w := range windows {
		if w.Start.Format(time.DateOnly) != want[i][0] || w.End.Format(time.DateOnly) != want[i][1] {
			t.Fatalf("window %d=%s..%s", i, w.Start.Format(time.DateOnly), w.End.Format(time.DateOnly))
		}
	}
	if _, err := h.facade.Schedule("yearly", day("2024-01-01"), 1); !httperr.IsBadRequest(err) {
		t.Fatalf("err=%v", err)
	}
}
