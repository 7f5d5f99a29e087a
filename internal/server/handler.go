package server

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jacksonlee411/payroll-engine/internal/routing"
	"github.com/jacksonlee411/payroll-engine/modules/payroll/domain/ports"
	"github.com/jacksonlee411/payroll-engine/modules/payroll/infrastructure/persistence"
	"github.com/jacksonlee411/payroll-engine/modules/payroll/presentation/controllers"
	"github.com/jacksonlee411/payroll-engine/modules/payroll/services"
	"github.com/rs/zerolog"
)

type HandlerOptions struct {
	// Pool selects the Postgres stores. When nil, MemoryStore (or a fresh one) serves every port.
	Pool            *pgxpool.Pool
	MemoryStore     *persistence.MemoryStore
	Authorizer      authorizer
	AllowlistPath   string
	AuthzModelPath  string
	AuthzPolicyPath string
	Workers         int
	Log             zerolog.Logger
	Now             func() time.Time
}

type payrollStores struct {
	periods  ports.PayPeriodStore
	comps    ports.CompensationRegistry
	time     ports.TimeAggregator
	settings ports.SettingsStore
	brackets ports.TaxBracketStore
}

func newPayrollStores(opts HandlerOptions) payrollStores {
	if opts.Pool != nil {
		return payrollStores{
			periods:  persistence.NewPayrollPGStore(opts.Pool),
			comps:    persistence.NewCompensationPGStore(opts.Pool),
			time:     persistence.NewTimePGAggregator(opts.Pool),
			settings: persistence.NewSettingsPGStore(opts.Pool),
			brackets: persistence.NewTaxBracketPGStore(opts.Pool),
		}
	}
	mem := opts.MemoryStore
	if mem == nil {
		mem = persistence.NewMemoryStore()
	}
	return payrollStores{periods: mem, comps: mem, time: mem, settings: mem, brackets: mem}
}

func NewHandlerWithOptions(opts HandlerOptions) (http.Handler, error) {
	allowlistPath := opts.AllowlistPath
	if allowlistPath == "" {
		p, err := defaultAllowlistPath()
		if err != nil {
			return nil, err
		}
		allowlistPath = p
	}

	a, err := routing.LoadAllowlist(allowlistPath)
	if err != nil {
		return nil, err
	}

	classifier, err := routing.NewClassifier(a, "server")
	if err != nil {
		return nil, err
	}

	az := opts.Authorizer
	if az == nil {
		loaded, err := loadAuthorizer(opts.AuthzModelPath, opts.AuthzPolicyPath)
		if err != nil {
			return nil, err
		}
		az = loaded
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}
	stores := newPayrollStores(opts)
	processor := services.NewPayPeriodProcessor(services.ProcessorDeps{
		Periods:      stores.periods,
		Compensation: stores.comps,
		Time:         stores.time,
		Settings:     stores.settings,
		Taxes:        services.NewTaxCalculator(stores.brackets, opts.Log),
		Log:          opts.Log,
		Workers:      opts.Workers,
		Now:          now,
	})
	payroll := controllers.PayrollController{
		WorkspaceID: currentWorkspace,
		ActorID:     currentActorID,
		Facade:      services.NewPayrollFacade(stores.periods, stores.comps, processor, now),
		Log:         opts.Log,
	}

	router := routing.NewRouter(classifier)

	router.Handle(routing.RouteClassOps, http.MethodGet, "/health", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	}))
	router.Handle(routing.RouteClassOps, http.MethodGet, "/healthz", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	}))

	router.Handle(routing.RouteClassInternalAPI, http.MethodGet, "/payroll/api/pay-periods", http.HandlerFunc(payroll.HandlePayPeriodsAPI))
	router.Handle(routing.RouteClassInternalAPI, http.MethodPost, "/payroll/api/pay-periods", http.HandlerFunc(payroll.HandlePayPeriodsAPI))
	router.Handle(routing.RouteClassInternalAPI, http.MethodGet, "/payroll/api/pay-periods/schedule", http.HandlerFunc(payroll.HandlePayPeriodScheduleAPI))
	router.Handle(routing.RouteClassInternalAPI, http.MethodGet, "/payroll/api/pay-periods/{id}", http.HandlerFunc(payroll.HandlePayPeriodAPI))
	router.Handle(routing.RouteClassInternalAPI, http.MethodPost, "/payroll/api/pay-periods/{id}/process", http.HandlerFunc(payroll.HandlePayPeriodProcessAPI))
	router.Handle(routing.RouteClassInternalAPI, http.MethodPost, "/payroll/api/pay-periods/{id}/approve", http.HandlerFunc(payroll.HandlePayPeriodApproveAPI))
	router.Handle(routing.RouteClassInternalAPI, http.MethodPost, "/payroll/api/pay-periods/{id}/mark-paid", http.HandlerFunc(payroll.HandlePayPeriodMarkPaidAPI))
	router.Handle(routing.RouteClassInternalAPI, http.MethodGet, "/payroll/api/pay-periods/{id}/records", http.HandlerFunc(payroll.HandlePayPeriodRecordsAPI))
	router.Handle(routing.RouteClassInternalAPI, http.MethodPost, "/payroll/api/payroll-records/{id}/mark-paid", http.HandlerFunc(payroll.HandlePayrollRecordMarkPaidAPI))
	router.Handle(routing.RouteClassInternalAPI, http.MethodPost, "/payroll/api/compensation", http.HandlerFunc(payroll.HandleCompensationAPI))

	if missing := router.Undeclared(); len(missing) > 0 {
		return nil, fmt.Errorf("server: routes missing from allowlist: %s", strings.Join(missing, ", "))
	}

	guarded := withWorkspaceAndPrincipal(classifier, withAuthz(classifier, az, router))
	return withRequestLog(opts.Log, guarded), nil
}

func defaultAllowlistPath() (string, error) {
	if p := os.Getenv("ALLOWLIST_PATH"); p != "" {
		return p, nil
	}
	return findConfigFile("config/routing/allowlist.yaml")
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func withRequestLog(log zerolog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		ev := log.Info()
		if rec.status >= http.StatusInternalServerError {
			ev = log.Error()
		}
		ev.Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("elapsed", time.Since(started)).
			Msg("http request")
	})
}
