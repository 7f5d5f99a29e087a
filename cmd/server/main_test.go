package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jacksonlee411/payroll-engine/internal/config"
	"github.com/rs/zerolog"
)

func memoryConfig() config.Config {
	return config.Config{
		HTTPAddr:        ":0",
		Environment:     "test",
		LogLevel:        "info",
		Store:           config.StoreMemory,
		Workers:         2,
		AllowlistPath:   "../../config/routing/allowlist.yaml",
		AuthzModelPath:  "../../config/access/model.conf",
		AuthzPolicyPath: "../../config/access/policy.csv",
		ShutdownTimeout: time.Second,
	}
}

func TestNewServer_Memory(t *testing.T) {
	t.Setenv("AUTHZ_MODE", "")
	var buf bytes.Buffer
	srv, cleanup, err := newServer(context.Background(), memoryConfig(), zerolog.New(&buf))
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	defer cleanup()
	if srv.ReadHeaderTimeout == 0 {
		t.Fatal("expected read header timeout")
	}
	if !strings.Contains(buf.String(), "in-memory store") {
		t.Fatalf("log=%q", buf.String())
	}

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
}

func TestNewServer_BadAllowlist(t *testing.T) {
	t.Setenv("AUTHZ_MODE", "")
	cfg := memoryConfig()
	cfg.AllowlistPath = "missing.yaml"
	if _, _, err := newServer(context.Background(), cfg, zerolog.Nop()); err == nil {
		t.Fatal("expected error")
	}
}

func TestNewServer_BadDatabaseURL(t *testing.T) {
	cfg := memoryConfig()
	cfg.Store = config.StorePostgres
	cfg.DatabaseURL = "postgres://%zz"
	if _, _, err := newServer(context.Background(), cfg, zerolog.Nop()); err == nil || !strings.Contains(err.Error(), "connect postgres") {
		t.Fatalf("err=%v", err)
	}
}

func TestNewLogger(t *testing.T) {
	l := newLogger(config.Config{LogLevel: "warn", Environment: "test"})
	if l.GetLevel() != zerolog.WarnLevel {
		t.Fatalf("level=%s", l.GetLevel())
	}
}
