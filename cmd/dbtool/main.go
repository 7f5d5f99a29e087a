package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jacksonlee411/payroll-engine/internal/config"
	"github.com/jacksonlee411/payroll-engine/migrations"
	"github.com/jacksonlee411/payroll-engine/modules/payroll/infrastructure/persistence"
	"github.com/pressly/goose/v3"
)

func main() {
	if len(os.Args) < 2 {
		fatalf("usage: dbtool <migrate|seed|rls-smoke> [args]")
	}

	switch os.Args[1] {
	case "migrate":
		migrate(os.Args[2:])
	case "seed":
		seed(os.Args[2:])
	case "rls-smoke":
		rlsSmoke(os.Args[2:])
	default:
		fatalf("unknown subcommand: %s", os.Args[1])
	}
}

func connURL(fs *flag.FlagSet, args []string) string {
	var url string
	fs.StringVar(&url, "url", "", "postgres connection string (defaults to DATABASE_URL / DB_*)")
	if err := fs.Parse(args); err != nil {
		fatal(err)
	}
	if url == "" {
		url = config.DatabaseDSNFromEnv()
	}
	return url
}

func migrate(args []string) {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	url := connURL(fs, args)
	if fs.NArg() != 1 {
		fatalf("usage: dbtool migrate [--url URL] <up|down|status>")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	connCfg, err := pgx.ParseConfig(url)
	if err != nil {
		fatal(err)
	}
	db := stdlib.OpenDB(*connCfg)
	defer func() { _ = db.Close() }()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		fatal(err)
	}

	if err := runMigration(ctx, db, fs.Arg(0)); err != nil {
		fatal(err)
	}
	fmt.Printf("[migrate] %s OK\n", fs.Arg(0))
}

func runMigration(ctx context.Context, db *sql.DB, direction string) error {
	switch direction {
	case "up":
		return goose.UpContext(ctx, db, ".")
	case "down":
		return goose.DownContext(ctx, db, ".")
	case "status":
		return goose.StatusContext(ctx, db, ".")
	default:
		return fmt.Errorf("unknown migrate direction: %s", direction)
	}
}

func seed(args []string) {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var file string
	fs.StringVar(&file, "file", "", "seed YAML (workspace, settings, tax_brackets)")
	url := connURL(fs, args)
	if file == "" {
		fatalf("missing --file")
	}

	raw, err := os.ReadFile(file)
	if err != nil {
		fatal(err)
	}
	doc, err := parseSeed(raw)
	if err != nil {
		fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	conn, err := pgx.Connect(ctx, url)
	if err != nil {
		fatal(err)
	}
	defer conn.Close(context.Background())

	if err := persistence.NewSettingsPGStore(conn).PutPayrollSettings(ctx, doc.Workspace, doc.Settings); err != nil {
		fatalf("seed settings: %s", pgErrorText(err))
	}
	brackets := persistence.NewTaxBracketPGStore(conn)
	for taxType, list := range doc.Brackets {
		if err := brackets.ReplaceTaxBrackets(ctx, doc.Workspace, taxType, list); err != nil {
			fatalf("seed %s brackets: %s", taxType, pgErrorText(err))
		}
	}

	fmt.Printf("[seed] workspace=%s OK\n", doc.Workspace)
}

func rlsSmoke(args []string) {
	fs := flag.NewFlagSet("rls-smoke", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	url := connURL(fs, args)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := pgx.Connect(ctx, url)
	if err != nil {
		fatal(err)
	}
	defer conn.Close(context.Background())

	if err := tryEnsureRole(ctx, conn, "app_nobypassrls"); err != nil {
		fatal(err)
	}

	tx, err := conn.Begin(ctx)
	if err != nil {
		fatal(err)
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if !trySetRole(ctx, tx, "app_nobypassrls") {
		fatalf("cannot SET ROLE app_nobypassrls")
	}

	var count int
	if err := tx.QueryRow(ctx, `SELECT count(*) FROM payroll.settings;`).Scan(&count); err != nil {
		fatal(err)
	}
	if count != 0 {
		fatalf("expected no visible rows when app.current_workspace is missing, got %d", count)
	}

	workspaceA := "rls-smoke-a"
	workspaceB := "rls-smoke-b"
	if _, err := tx.Exec(ctx, `SELECT set_config('app.current_workspace', $1, true);`, workspaceA); err != nil {
		fatal(err)
	}
	if _, err := tx.Exec(ctx, `INSERT INTO payroll.settings (workspace_id, document) VALUES ($1, '{}'::jsonb);`, workspaceA); err != nil {
		fatal(err)
	}

	if _, err := tx.Exec(ctx, `SAVEPOINT sp_cross_insert;`); err != nil {
		fatal(err)
	}
	_, err = tx.Exec(ctx, `INSERT INTO payroll.settings (workspace_id, document) VALUES ($1, '{}'::jsonb);`, workspaceB)
	if _, rbErr := tx.Exec(ctx, `ROLLBACK TO SAVEPOINT sp_cross_insert;`); rbErr != nil {
		fatal(rbErr)
	}
	if err == nil {
		fatalf("expected RLS rejection on cross-workspace insert")
	}

	if err := tx.QueryRow(ctx, `SELECT count(*) FROM payroll.settings;`).Scan(&count); err != nil {
		fatal(err)
	}
	if count != 1 {
		fatalf("expected count=1 under workspace A, got %d", count)
	}

	if _, err := tx.Exec(ctx, `SELECT set_config('app.current_workspace', $1, true);`, workspaceB); err != nil {
		fatal(err)
	}
	if err := tx.QueryRow(ctx, `SELECT count(*) FROM payroll.settings;`).Scan(&count); err != nil {
		fatal(err)
	}
	if count != 0 {
		fatalf("expected count=0 under workspace B, got %d", count)
	}

	fmt.Println("[rls-smoke] OK")
}

func pgErrorText(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Message != "" {
		return pgErr.Message
	}
	return err.Error()
}

func tryEnsureRole(ctx context.Context, conn *pgx.Conn, role string) error {
	if !validSQLIdent(role) {
		return fmt.Errorf("invalid role: %s", role)
	}

	stmt := fmt.Sprintf(`DO $$
BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_roles WHERE rolname = '%s') THEN
    EXECUTE 'CREATE ROLE %s NOBYPASSRLS';
  END IF;
END
$$;`, role, role)
	if _, err := conn.Exec(ctx, stmt); err != nil {
		return err
	}
	_, _ = conn.Exec(ctx, `GRANT USAGE ON SCHEMA payroll TO `+role+`;`)
	_, _ = conn.Exec(ctx, `GRANT SELECT, INSERT, UPDATE, DELETE ON ALL TABLES IN SCHEMA payroll TO `+role+`;`)
	_, _ = conn.Exec(ctx, `GRANT `+role+` TO CURRENT_USER;`)
	return nil
}

func trySetRole(ctx context.Context, tx pgx.Tx, role string) bool {
	if _, err := tx.Exec(ctx, `SET LOCAL ROLE `+role+`;`); err != nil {
		return false
	}
	return true
}

var reSQLIdent = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

func validSQLIdent(s string) bool {
	return reSQLIdent.MatchString(s)
}

func fatal(err error) {
	if err == nil {
		os.Exit(1)
	}
	fatalf("%v", err)
}

func fatalf(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, strings.TrimRight(format, "\n")+"\n", args...)
	os.Exit(1)
}
