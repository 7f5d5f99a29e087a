package money

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestRound2_HalfUp(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"1.005", "1.01"},
		{"1.004", "1.00"},
		{"0.125", "0.13"},
		{"2", "2.00"},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got := Text(Round2(MustParse(tc.in)))
			if got != tc.want {
				t.Fatalf("got=%s want=%s", got, tc.want)
			}
		})
	}
}

func TestMulRateAndPercentOf(t *testing.T) {
	gross := MustParse("1900")
	if got := Text(MulRate(gross, MustParse("0.062"))); got != "117.80" {
		t.Fatalf("ss=%s", got)
	}
	if got := Text(MulRate(gross, MustParse("0.0145"))); got != "27.55" {
		t.Fatalf("medicare=%s", got)
	}
	if got := Text(PercentOf(gross, MustParse("5"))); got != "95.00" {
		t.Fatalf("401k=%s", got)
	}
}

func TestDiv(t *testing.T) {
	got, err := Div(MustParse("60000"), 26)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if Text(got) != "2307.69" {
		t.Fatalf("got=%s", Text(got))
	}
	if _, err := Div(MustParse("1"), 0); err == nil {
		t.Fatalf("expected error")
	}
}

func TestHoursFromMinutes(t *testing.T) {
	if got := Text(HoursFromMinutes(5400)); got != "90.00" {
		t.Fatalf("got=%s", got)
	}
	if got := Text(HoursFromMinutes(100)); got != "1.67" {
		t.Fatalf("got=%s", got)
	}
	if !HoursFromMinutes(0).Equal(decimal.Zero) {
		t.Fatalf("expected zero")
	}
}

func TestParseAmount(t *testing.T) {
	d, err := ParseAmount(" ")
	if err != nil || !d.IsZero() {
		t.Fatalf("d=%s err=%v", d, err)
	}
	if _, err := ParseAmount("12x"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestSum(t *testing.T) {
	got := Sum(MustParse("0.10"), MustParse("0.20"), MustParse("0.30"))
	if Text(got) != "0.60" {
		t.Fatalf("got=%s", Text(got))
	}
}
