package persistence

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jacksonlee411/payroll-engine/modules/payroll/domain/ports"
	"github.com/jacksonlee411/payroll-engine/modules/payroll/domain/types"
	"github.com/jacksonlee411/payroll-engine/pkg/uuidv7"
)

// TimeEntry is the slice of a tracked time entry the aggregator needs.
type TimeEntry struct {
	WorkspaceID string
	UserID      string
	Date        time.Time
	Minutes     int64
	Status      string
}

// countedTimeStatuses are the entry states that count as worked time.
var countedTimeStatuses = map[string]bool{"completed": true, "approved": true}

// MemoryStore keeps the whole payroll domain in process memory. It implements
// every payroll port and is used by tests and STORE=memory.
type MemoryStore struct {
	mu       sync.Mutex
	periods  map[string]types.PayPeriod
	records  map[string]types.PayrollRecord
	comps    []types.EmployeeCompensation
	brackets map[string][]types.TaxBracket
	settings map[string]types.PayrollSettings
	entries  []TimeEntry

	lockMu      sync.Mutex
	periodLocks map[string]*sync.Mutex

	now func() time.Time
}

var (
	_ ports.PayPeriodStore       = (*MemoryStore)(nil)
	_ ports.CompensationRegistry = (*MemoryStore)(nil)
	_ ports.TaxBracketStore      = (*MemoryStore)(nil)
	_ ports.SettingsStore        = (*MemoryStore)(nil)
	_ ports.TimeAggregator       = (*MemoryStore)(nil)
)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		periods:     make(map[string]types.PayPeriod),
		records:     make(map[string]types.PayrollRecord),
		brackets:    make(map[string][]types.TaxBracket),
		settings:    make(map[string]types.PayrollSettings),
		periodLocks: make(map[string]*sync.Mutex),
		now:         time.Now,
	}
}

func (s *MemoryStore) SetClock(now func() time.Time) { s.now = now }

func (s *MemoryStore) periodLock(payPeriodID string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	l, ok := s.periodLocks[payPeriodID]
	if !ok {
		l = &sync.Mutex{}
		s.periodLocks[payPeriodID] = l
	}
	return l
}

func (s *MemoryStore) CreatePayPeriod(_ context.Context, period types.PayPeriod) (types.PayPeriod, error) {
	if period.ID == "" {
		id, err := uuidv7.NewString()
		if err != nil {
			return types.PayPeriod{}, err
		}
		period.ID = id
	}
	if period.CreatedAt.IsZero() {
		period.CreatedAt = s.now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.periods[period.ID]; exists {
		return types.PayPeriod{}, fmt.Errorf("pay period %s already exists", period.ID)
	}
	s.periods[period.ID] = period
	return period, nil
}

func (s *MemoryStore) GetPayPeriod(_ context.Context, workspaceID string, payPeriodID string) (types.PayPeriod, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getPeriodLocked(workspaceID, payPeriodID)
}

func (s *MemoryStore) getPeriodLocked(workspaceID string, payPeriodID string) (types.PayPeriod, error) {
	p, ok := s.periods[payPeriodID]
	if !ok || p.WorkspaceID != workspaceID {
		return types.PayPeriod{}, fmt.Errorf("%w: %s", types.ErrPayPeriodNotFound, payPeriodID)
	}
	return p, nil
}

func (s *MemoryStore) ListPayPeriods(_ context.Context, workspaceID string) ([]types.PayPeriod, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.PayPeriod, 0)
	for _, p := range s.periods {
		if p.WorkspaceID == workspaceID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].PeriodStart.Equal(out[j].PeriodStart) {
			return out[i].PeriodStart.After(out[j].PeriodStart)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) ProcessLocked(ctx context.Context, workspaceID string, payPeriodID string, fn ports.ProcessFunc) (types.PayPeriod, error) {
	lock := s.periodLock(payPeriodID)
	lock.Lock()
	defer lock.Unlock()

	period, err := s.GetPayPeriod(ctx, workspaceID, payPeriodID)
	if err != nil {
		return types.PayPeriod{}, err
	}
	write, err := fn(ctx, period)
	if err != nil {
		return types.PayPeriod{}, err
	}

	ids := make([]string, len(write.Records))
	for i := range ids {
		if ids[i], err = uuidv7.NewString(); err != nil {
			return types.PayPeriod{}, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now().UTC()
	existing := make(map[string]types.PayrollRecord)
	for _, r := range s.records {
		if r.PayPeriodID == payPeriodID {
			existing[r.UserID] = r
		}
	}
	keep := make(map[string]bool, len(write.Records))
	for i, rec := range write.Records {
		rec.WorkspaceID = workspaceID
		rec.PayPeriodID = payPeriodID
		rec.UpdatedAt = now
		if old, ok := existing[rec.UserID]; ok {
			rec.ID = old.ID
			rec.CreatedAt = old.CreatedAt
		} else {
			rec.ID = ids[i]
			rec.CreatedAt = now
		}
		s.records[rec.ID] = rec
		keep[rec.UserID] = true
	}
	for userID, old := range existing {
		if !keep[userID] && old.PaymentStatus != types.PaymentPaid {
			delete(s.records, old.ID)
		}
	}
	s.periods[payPeriodID] = write.Period
	return write.Period, nil
}

func (s *MemoryStore) TransitionLocked(_ context.Context, workspaceID string, payPeriodID string, fn ports.TransitionFunc) (types.PayPeriod, error) {
	lock := s.periodLock(payPeriodID)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	period, err := s.getPeriodLocked(workspaceID, payPeriodID)
	if err != nil {
		return types.PayPeriod{}, err
	}
	next, err := fn(period)
	if err != nil {
		return types.PayPeriod{}, err
	}
	s.periods[payPeriodID] = next
	return next, nil
}

func (s *MemoryStore) ListPayrollRecords(_ context.Context, workspaceID string, payPeriodID string) ([]types.PayrollRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.PayrollRecord, 0)
	for _, r := range s.records {
		if r.WorkspaceID == workspaceID && r.PayPeriodID == payPeriodID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (s *MemoryStore) MarkRecordPaid(_ context.Context, workspaceID string, recordID string, reference string, at time.Time) (types.PayrollRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[recordID]
	if !ok || rec.WorkspaceID != workspaceID {
		return types.PayrollRecord{}, fmt.Errorf("%w: %s", types.ErrRecordNotFound, recordID)
	}
	period, err := s.getPeriodLocked(workspaceID, rec.PayPeriodID)
	if err != nil {
		return types.PayrollRecord{}, err
	}
	paid, err := rec.MarkPaid(period, reference, at)
	if err != nil {
		return types.PayrollRecord{}, err
	}
	s.records[recordID] = paid
	return paid, nil
}

func (s *MemoryStore) ListCompensationInEffect(_ context.Context, workspaceID string, start time.Time, end time.Time) ([]types.EmployeeCompensation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.EmployeeCompensation, 0)
	for _, c := range s.comps {
		if c.WorkspaceID == workspaceID && c.InEffectDuring(start, end) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *MemoryStore) AddCompensation(_ context.Context, comp types.EmployeeCompensation) (types.EmployeeCompensation, error) {
	if comp.ID == "" {
		id, err := uuidv7.NewString()
		if err != nil {
			return types.EmployeeCompensation{}, err
		}
		comp.ID = id
	}
	comp.EffectiveDate = types.DateOnly(comp.EffectiveDate)
	comp.IsActive = true
	if comp.CreatedAt.IsZero() {
		comp.CreatedAt = s.now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	open := -1
	for i, c := range s.comps {
		if c.WorkspaceID == comp.WorkspaceID && c.UserID == comp.UserID && c.IsActive && c.EndDate == nil {
			open = i
		}
	}
	if open >= 0 {
		prev := s.comps[open]
		if !comp.EffectiveDate.After(types.DateOnly(prev.EffectiveDate)) {
			return types.EmployeeCompensation{}, fmt.Errorf("%w: effective_date must be after %s", types.ErrInvalidCompensation, prev.EffectiveDate.Format(time.DateOnly))
		}
		closed := comp.EffectiveDate.AddDate(0, 0, -1)
		prev.EndDate = &closed
		s.comps[open] = prev
	}
	s.comps = append(s.comps, comp)
	return comp, nil
}

// PutCompensation stores a record as-is, without supersession.
func (s *MemoryStore) PutCompensation(comp types.EmployeeCompensation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.comps = append(s.comps, comp)
}

func bracketKey(workspaceID string, taxType types.TaxType) string {
	return workspaceID + "|" + strings.ToLower(string(taxType))
}

func (s *MemoryStore) ListTaxBrackets(_ context.Context, workspaceID string, taxType types.TaxType) ([]types.TaxBracket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	in := s.brackets[bracketKey(workspaceID, taxType)]
	out := make([]types.TaxBracket, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool { return out[i].MinIncome.LessThan(out[j].MinIncome) })
	return out, nil
}

func (s *MemoryStore) ReplaceTaxBrackets(_ context.Context, workspaceID string, taxType types.TaxType, brackets []types.TaxBracket) error {
	out := make([]types.TaxBracket, 0, len(brackets))
	for _, b := range brackets {
		if b.ID == "" {
			id, err := uuidv7.NewString()
			if err != nil {
				return err
			}
			b.ID = id
		}
		b.WorkspaceID = workspaceID
		b.TaxType = taxType
		out = append(out, b)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.brackets[bracketKey(workspaceID, taxType)] = out
	return nil
}

func (s *MemoryStore) GetPayrollSettings(_ context.Context, workspaceID string) (types.PayrollSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.settings[workspaceID]; ok {
		return v, nil
	}
	return types.DefaultPayrollSettings(), nil
}

func (s *MemoryStore) PutPayrollSettings(_ context.Context, workspaceID string, settings types.PayrollSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[workspaceID] = settings
	return nil
}

func (s *MemoryStore) AddTimeEntry(e TimeEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
}

func (s *MemoryStore) TotalMinutes(_ context.Context, workspaceID string, userID string, start time.Time, end time.Time) (int64, error) {
	start, end = types.DateOnly(start), types.DateOnly(end)
	s.mu.Lock()
	defer s.mu.Unlock()
	var total int64
	for _, e := range s.entries {
		if e.WorkspaceID != workspaceID || e.UserID != userID || !countedTimeStatuses[e.Status] {
			continue
		}
		d := types.DateOnly(e.Date)
		if d.Before(start) || d.After(end) {
			continue
		}
		total += e.Minutes
	}
	return total, nil
}
