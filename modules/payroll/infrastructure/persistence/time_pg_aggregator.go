package persistence

import (
	"context"
	"time"

	"github.com/jacksonlee411/payroll-engine/modules/payroll/domain/ports"
)

type TimePGAggregator struct {
	pool pgBeginner
}

func NewTimePGAggregator(pool pgBeginner) *TimePGAggregator {
	return &TimePGAggregator{pool: pool}
}

var _ ports.TimeAggregator = (*TimePGAggregator)(nil)

func (a *TimePGAggregator) TotalMinutes(ctx context.Context, workspaceID string, userID string, start time.Time, end time.Time) (int64, error) {
	tx, err := beginWorkspaceTx(ctx, a.pool, workspaceID)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	var total int64
	if err := tx.QueryRow(ctx, `
SELECT COALESCE(sum(minutes), 0)::bigint
FROM payroll.time_entries
WHERE workspace_id = $1::text
  AND user_id = $2::text
  AND status IN ('completed', 'approved')
  AND entry_date BETWEEN $3::date AND $4::date
`, workspaceID, userID, start.Format(dateLayout), end.Format(dateLayout)).Scan(&total); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return total, nil
}
