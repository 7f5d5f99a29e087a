package schedule

import (
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

const (
	Weekly      = "weekly"
	BiWeekly    = "bi-weekly"
	SemiMonthly = "semi-monthly"
	Monthly     = "monthly"
)

const maxWindows = 60

type Window struct {
	Start time.Time `json:"period_start"`
	End   time.Time `json:"period_end"`
}

func ruleFor(periodType string, anchor time.Time, count int) (rrule.ROption, error) {
	opt := rrule.ROption{Dtstart: anchor, Count: count}
	switch strings.TrimSpace(periodType) {
	case Weekly:
		opt.Freq = rrule.WEEKLY
		opt.Interval = 1
	case BiWeekly:
		opt.Freq = rrule.WEEKLY
		opt.Interval = 2
	case SemiMonthly:
		if d := anchor.Day(); d != 1 && d != 16 {
			return rrule.ROption{}, fmt.Errorf("schedule: semi-monthly anchor must fall on day 1 or 16, got %d", d)
		}
		opt.Freq = rrule.MONTHLY
		opt.Interval = 1
		opt.Bymonthday = []int{1, 16}
	case Monthly:
		if anchor.Day() > 28 {
			return rrule.ROption{}, fmt.Errorf("schedule: monthly anchor day must be <= 28, got %d", anchor.Day())
		}
		opt.Freq = rrule.MONTHLY
		opt.Interval = 1
	default:
		return rrule.ROption{}, fmt.Errorf("schedule: unknown period type %q", periodType)
	}
	return opt, nil
}

// Windows returns count consecutive inclusive [start, end] windows beginning at anchor.
func Windows(periodType string, anchor time.Time, count int) ([]Window, error) {
	if count <= 0 || count > maxWindows {
		return nil, fmt.Errorf("schedule: count out of range: %d", count)
	}
	anchor = time.Date(anchor.Year(), anchor.Month(), anchor.Day(), 0, 0, 0, 0, time.UTC)

	opt, err := ruleFor(periodType, anchor, count+1)
	if err != nil {
		return nil, err
	}
	rule, err := rrule.NewRRule(opt)
	if err != nil {
		return nil, fmt.Errorf("schedule: %w", err)
	}
	starts := rule.All()
	if len(starts) != count+1 {
		return nil, fmt.Errorf("schedule: expected %d occurrences, got %d", count+1, len(starts))
	}

	out := make([]Window, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, Window{Start: starts[i], End: starts[i+1].AddDate(0, 0, -1)})
	}
	return out, nil
}

// Next returns the single window that begins at anchor.
func Next(periodType string, anchor time.Time) (Window, error) {
	ws, err := Windows(periodType, anchor, 1)
	if err != nil {
		return Window{}, err
	}
	return ws[0], nil
}
