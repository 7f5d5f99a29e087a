package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type beginFunc func(ctx context.Context) (pgx.Tx, error)

func (f beginFunc) Begin(ctx context.Context) (pgx.Tx, error) { return f(ctx) }

type txStub struct {
	execErr   error
	execErrAt int
	execs     []string
	execArgs  [][]any

	rows     []pgx.Row
	rowSQL   []string
	query    pgx.Rows
	queryErr error

	commitErr error
	committed bool
}

func newTx(rows ...pgx.Row) *txStub { return &txStub{rows: rows, execErrAt: -1} }

func (t *txStub) Begin(context.Context) (pgx.Tx, error) { return t, nil }
func (t *txStub) Commit(context.Context) error {
	if t.commitErr != nil {
		return t.commitErr
	}
	t.committed = true
	return nil
}
func (t *txStub) Rollback(context.Context) error { return nil }
func (t *txStub) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *txStub) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }
func (t *txStub) LargeObjects() pgx.LargeObjects                         { return pgx.LargeObjects{} }
func (t *txStub) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *txStub) Conn() *pgx.Conn { return nil }

func (t *txStub) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	idx := len(t.execs)
	t.execs = append(t.execs, sql)
	t.execArgs = append(t.execArgs, args)
	if t.execErr != nil && (t.execErrAt < 0 || t.execErrAt == idx) {
		return pgconn.CommandTag{}, t.execErr
	}
	return pgconn.CommandTag{}, nil
}

func (t *txStub) Query(context.Context, string, ...any) (pgx.Rows, error) {
	if t.queryErr != nil {
		return nil, t.queryErr
	}
	if t.query != nil {
		return t.query, nil
	}
	return &fakeRows{}, nil
}

func (t *txStub) QueryRow(_ context.Context, sql string, _ ...any) pgx.Row {
	t.rowSQL = append(t.rowSQL, sql)
	if len(t.rows) == 0 {
		return stubRow{err: errors.New("row not mocked")}
	}
	r := t.rows[0]
	t.rows = t.rows[1:]
	return r
}

type stubRow struct {
	vals []any
	err  error
}

func (r stubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i := range dest {
		if i >= len(r.vals) || r.vals[i] == nil {
			continue
		}
		switch d := dest[i].(type) {
		case *string:
			*d = r.vals[i].(string)
		case *int64:
			*d = r.vals[i].(int64)
		case *bool:
			*d = r.vals[i].(bool)
		case *[]byte:
			switch v := r.vals[i].(type) {
			case []byte:
				*d = v
			case string:
				*d = []byte(v)
			}
		case *time.Time:
			*d = r.vals[i].(time.Time)
		case **time.Time:
			v := r.vals[i].(time.Time)
			*d = &v
		}
	}
	return nil
}

type fakeRows struct {
	rows    [][]any
	idx     int
	scanErr error
	err     error
}

func (r *fakeRows) Close()                        {}
func (r *fakeRows) Err() error                    { return r.err }
func (r *fakeRows) CommandTag() pgconn.CommandTag { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription {
	return nil
}
func (r *fakeRows) Next() bool {
	if r.idx >= len(r.rows) {
		return false
	}
	r.idx++
	return true
}
func (r *fakeRows) Scan(dest ...any) error {
	if r.scanErr != nil {
		return r.scanErr
	}
	return stubRow{vals: r.rows[r.idx-1]}.Scan(dest...)
}
func (r *fakeRows) Values() ([]any, error) { return nil, nil }
func (r *fakeRows) RawValues() [][]byte    { return nil }
func (r *fakeRows) Conn() *pgx.Conn        { return nil }

var stubCreatedAt = time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)

func periodRow(id string, status string) []any {
	return []any{
		id, "ws1", "bi-weekly", "2024-01-01", "2024-01-14", "2024-01-19", status,
		"1900.00", "468.35", "1431.65", "156.75",
		"", nil, "", nil, stubCreatedAt,
	}
}

func recordRow(id string, paymentStatus string) []any {
	return []any{
		id, "ws1", "p1", "u1", "hourly",
		"80.00", "10.00", "20.00", "30.00", "1600.00", "300.00", "1900.00",
		"228.00", "95.00", "117.80", "27.55", "0.00", "0.00",
		"468.35", "1431.65",
		"117.80", "27.55", "11.40", "156.75",
		paymentStatus, nil, "", `[]`, stubCreatedAt, stubCreatedAt,
	}
}
