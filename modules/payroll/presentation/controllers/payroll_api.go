package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jacksonlee411/payroll-engine/modules/payroll/domain/types"
	"github.com/jacksonlee411/payroll-engine/modules/payroll/services"
	"github.com/jacksonlee411/payroll-engine/pkg/httperr"
	"github.com/jacksonlee411/payroll-engine/pkg/money"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type WorkspaceIDGetter func(ctx context.Context) (workspaceID string, ok bool)

type ActorIDGetter func(ctx context.Context) (actorID string, ok bool)

type PayrollController struct {
	WorkspaceID WorkspaceIDGetter
	ActorID     ActorIDGetter
	Facade      services.PayrollFacade
	Log         zerolog.Logger
}

type payPeriodCreateAPIRequest struct {
	PeriodType  string `json:"period_type"`
	PeriodStart string `json:"period_start"`
	PeriodEnd   string `json:"period_end"`
	PayDate     string `json:"pay_date"`
}

type recordMarkPaidAPIRequest struct {
	PaymentReference string `json:"payment_reference"`
}

type compensationAPIRequest struct {
	UserID                   string `json:"user_id"`
	PayType                  string `json:"pay_type"`
	HourlyRate               string `json:"hourly_rate"`
	SalaryAmount             string `json:"salary_amount"`
	PayFrequency             string `json:"pay_frequency"`
	OvertimeEligible         bool   `json:"overtime_eligible"`
	OvertimeRateMultiplier   string `json:"overtime_rate_multiplier"`
	HealthInsuranceDeduction string `json:"health_insurance_deduction"`
	Retirement401kPercent    string `json:"retirement_401k_percent"`
	PaymentMethod            string `json:"payment_method"`
	EffectiveDate            string `json:"effective_date"`
}

func (c PayrollController) HandlePayPeriodsAPI(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := c.WorkspaceID(r.Context())
	if !ok {
		writeError(w, r, http.StatusInternalServerError, "workspace_missing", "workspace missing")
		return
	}

	switch r.Method {
	case http.MethodGet:
		periods, err := c.Facade.ListPayPeriods(r.Context(), workspaceID)
		if err != nil {
			c.writeFacadeError(w, r, err, "list_failed")
			return
		}
		if periods == nil {
			periods = make([]types.PayPeriod, 0)
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"workspace_id": workspaceID,
			"pay_periods":  periods,
		})
		return

	case http.MethodPost:
		var req payPeriodCreateAPIRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		in := services.CreatePayPeriodInput{PeriodType: strings.TrimSpace(req.PeriodType)}
		var err error
		if in.PeriodStart, err = parseDate(req.PeriodStart); err != nil || in.PeriodStart.IsZero() {
			writeError(w, r, http.StatusBadRequest, "invalid_period_start", "invalid period_start")
			return
		}
		if in.PeriodEnd, err = parseOptionalDate(req.PeriodEnd); err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid_period_end", "invalid period_end")
			return
		}
		if in.PayDate, err = parseOptionalDate(req.PayDate); err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid_pay_date", "invalid pay_date")
			return
		}

		period, err := c.Facade.CreatePayPeriod(r.Context(), workspaceID, in)
		if err != nil {
			c.writeFacadeError(w, r, err, "create_failed")
			return
		}
		writeJSON(w, http.StatusCreated, period)
		return

	default:
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
}

func (c PayrollController) HandlePayPeriodScheduleAPI(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	q := r.URL.Query()
	anchor, err := parseDate(q.Get("anchor"))
	if err != nil || anchor.IsZero() {
		writeError(w, r, http.StatusBadRequest, "invalid_anchor", "invalid anchor")
		return
	}
	count := 1
	if raw := strings.TrimSpace(q.Get("count")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid_count", "invalid count")
			return
		}
		count = n
	}

	windows, err := c.Facade.Schedule(q.Get("period_type"), anchor, count)
	if err != nil {
		c.writeFacadeError(w, r, err, "schedule_failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"period_type": strings.TrimSpace(q.Get("period_type")),
		"windows":     windows,
	})
}

func (c PayrollController) HandlePayPeriodAPI(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := c.WorkspaceID(r.Context())
	if !ok {
		writeError(w, r, http.StatusInternalServerError, "workspace_missing", "workspace missing")
		return
	}
	if r.Method != http.MethodGet {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	period, err := c.Facade.GetPayPeriod(r.Context(), workspaceID, r.PathValue("id"))
	if err != nil {
		c.writeFacadeError(w, r, err, "get_failed")
		return
	}
	writeJSON(w, http.StatusOK, period)
}

func (c PayrollController) HandlePayPeriodProcessAPI(w http.ResponseWriter, r *http.Request) {
	workspaceID, actorID, ok := c.actorInWorkspace(w, r)
	if !ok {
		return
	}

	summary, err := c.Facade.ProcessPayPeriod(r.Context(), workspaceID, r.PathValue("id"), actorID)
	if err != nil {
		c.writeFacadeError(w, r, err, "process_failed")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (c PayrollController) HandlePayPeriodApproveAPI(w http.ResponseWriter, r *http.Request) {
	workspaceID, actorID, ok := c.actorInWorkspace(w, r)
	if !ok {
		return
	}

	period, err := c.Facade.ApprovePayPeriod(r.Context(), workspaceID, r.PathValue("id"), actorID)
	if err != nil {
		c.writeFacadeError(w, r, err, "approve_failed")
		return
	}
	writeJSON(w, http.StatusOK, period)
}

func (c PayrollController) HandlePayPeriodMarkPaidAPI(w http.ResponseWriter, r *http.Request) {
	workspaceID, _, ok := c.actorInWorkspace(w, r)
	if !ok {
		return
	}

	period, err := c.Facade.MarkPayPeriodPaid(r.Context(), workspaceID, r.PathValue("id"))
	if err != nil {
		c.writeFacadeError(w, r, err, "mark_paid_failed")
		return
	}
	writeJSON(w, http.StatusOK, period)
}

func (c PayrollController) HandlePayPeriodRecordsAPI(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := c.WorkspaceID(r.Context())
	if !ok {
		writeError(w, r, http.StatusInternalServerError, "workspace_missing", "workspace missing")
		return
	}
	if r.Method != http.MethodGet {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	payPeriodID := r.PathValue("id")
	records, err := c.Facade.ListPayrollRecords(r.Context(), workspaceID, payPeriodID)
	if err != nil {
		c.writeFacadeError(w, r, err, "list_failed")
		return
	}
	if records == nil {
		records = make([]types.PayrollRecord, 0)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"pay_period_id": payPeriodID,
		"records":       records,
	})
}

func (c PayrollController) HandlePayrollRecordMarkPaidAPI(w http.ResponseWriter, r *http.Request) {
	workspaceID, _, ok := c.actorInWorkspace(w, r)
	if !ok {
		return
	}
	var req recordMarkPaidAPIRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	rec, err := c.Facade.MarkRecordPaid(r.Context(), workspaceID, r.PathValue("id"), strings.TrimSpace(req.PaymentReference))
	if err != nil {
		c.writeFacadeError(w, r, err, "mark_paid_failed")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (c PayrollController) HandleCompensationAPI(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := c.WorkspaceID(r.Context())
	if !ok {
		writeError(w, r, http.StatusInternalServerError, "workspace_missing", "workspace missing")
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	var req compensationAPIRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	comp := types.EmployeeCompensation{
		WorkspaceID:      workspaceID,
		UserID:           strings.TrimSpace(req.UserID),
		PayType:          types.PayType(strings.TrimSpace(req.PayType)),
		PayFrequency:     strings.TrimSpace(req.PayFrequency),
		OvertimeEligible: req.OvertimeEligible,
		PaymentMethod:    strings.TrimSpace(req.PaymentMethod),
	}
	for _, f := range []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"hourly_rate", req.HourlyRate, &comp.HourlyRate},
		{"salary_amount", req.SalaryAmount, &comp.SalaryAmount},
		{"overtime_rate_multiplier", req.OvertimeRateMultiplier, &comp.OvertimeRateMultiplier},
		{"health_insurance_deduction", req.HealthInsuranceDeduction, &comp.HealthInsuranceDeduction},
		{"retirement_401k_percent", req.Retirement401kPercent, &comp.Retirement401kPercent},
	} {
		v, err := money.ParseAmount(f.raw)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid_"+f.name, "invalid "+f.name)
			return
		}
		*f.dst = v
	}
	effective, err := parseDate(req.EffectiveDate)
	if err != nil || effective.IsZero() {
		writeError(w, r, http.StatusBadRequest, "invalid_effective_date", "invalid effective_date")
		return
	}
	comp.EffectiveDate = effective

	saved, err := c.Facade.AddCompensation(r.Context(), comp)
	if err != nil {
		c.writeFacadeError(w, r, err, "compensation_failed")
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

func (c PayrollController) actorInWorkspace(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	workspaceID, ok := c.WorkspaceID(r.Context())
	if !ok {
		writeError(w, r, http.StatusInternalServerError, "workspace_missing", "workspace missing")
		return "", "", false
	}
	if r.Method != http.MethodPost {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return "", "", false
	}
	actorID := ""
	if c.ActorID != nil {
		actorID, _ = c.ActorID(r.Context())
	}
	if strings.TrimSpace(actorID) == "" {
		writeError(w, r, http.StatusUnauthorized, "actor_missing", "actor missing")
		return "", "", false
	}
	return workspaceID, actorID, true
}

func (c PayrollController) writeFacadeError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	status, code := classifyError(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		code = fallback
		message = strings.ReplaceAll(fallback, "_", " ")
		c.Log.Error().Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("payroll request failed")
	}
	writeError(w, r, status, code, message)
}

func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, types.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, types.ErrPayPeriodNotFound), errors.Is(err, types.ErrRecordNotFound), httperr.IsNotFound(err):
		return http.StatusNotFound, "not_found"
	case httperr.IsBadRequest(err), errors.Is(err, types.ErrInvalidCompensation), errors.Is(err, types.ErrInvalidPayPeriod),
		errors.Is(err, types.ErrInvalidSettings), isPgInvalidInput(err):
		return http.StatusBadRequest, "invalid_request"
	}
	if code := stablePgMessage(err); isStableDBCode(code) {
		return http.StatusUnprocessableEntity, code
	}
	return http.StatusInternalServerError, ""
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_json", "bad json")
		return false
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		body = []byte("{}")
	}
	if err := json.Unmarshal(body, dst); err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_json", "bad json")
		return false
	}
	return true
}

func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.DateOnly, raw)
}

func parseOptionalDate(raw string) (*time.Time, error) {
	t, err := parseDate(raw)
	if err != nil || t.IsZero() {
		return nil, err
	}
	return &t, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
