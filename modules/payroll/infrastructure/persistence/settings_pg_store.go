package persistence

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jacksonlee411/payroll-engine/modules/payroll/domain/ports"
	"github.com/jacksonlee411/payroll-engine/modules/payroll/domain/types"
)

type SettingsPGStore struct {
	pool pgBeginner
}

func NewSettingsPGStore(pool pgBeginner) *SettingsPGStore {
	return &SettingsPGStore{pool: pool}
}

var _ ports.SettingsStore = (*SettingsPGStore)(nil)

// GetPayrollSettings returns the defaults when the workspace has no stored document.
func (s *SettingsPGStore) GetPayrollSettings(ctx context.Context, workspaceID string) (types.PayrollSettings, error) {
	tx, err := beginWorkspaceTx(ctx, s.pool, workspaceID)
	if err != nil {
		return types.PayrollSettings{}, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	var doc []byte
	err = tx.QueryRow(ctx, `
SELECT document::text
FROM payroll.settings
WHERE workspace_id = $1::text
`, workspaceID).Scan(&doc)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return types.PayrollSettings{}, err
	}

	out, err := types.ParsePayrollSettings(doc)
	if err != nil {
		return types.PayrollSettings{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return types.PayrollSettings{}, err
	}
	return out, nil
}

func (s *SettingsPGStore) PutPayrollSettings(ctx context.Context, workspaceID string, settings types.PayrollSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	doc, err := json.Marshal(settings)
	if err != nil {
		return err
	}

	tx, err := beginWorkspaceTx(ctx, s.pool, workspaceID)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if _, err := tx.Exec(ctx, `
INSERT INTO payroll.settings (workspace_id, document, updated_at)
VALUES ($1::text, $2::jsonb, now())
ON CONFLICT (workspace_id) DO UPDATE SET document = EXCLUDED.document, updated_at = now()
`, workspaceID, string(doc)); err != nil {
		return err
	}

	return tx.Commit(ctx)
}
