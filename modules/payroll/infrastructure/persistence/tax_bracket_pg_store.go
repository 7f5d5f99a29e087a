package persistence

import (
	"context"

	"github.com/jacksonlee411/payroll-engine/modules/payroll/domain/ports"
	"github.com/jacksonlee411/payroll-engine/modules/payroll/domain/types"
	"github.com/jacksonlee411/payroll-engine/pkg/money"
	"github.com/jacksonlee411/payroll-engine/pkg/uuidv7"
)

type TaxBracketPGStore struct {
	pool pgBeginner
}

func NewTaxBracketPGStore(pool pgBeginner) *TaxBracketPGStore {
	return &TaxBracketPGStore{pool: pool}
}

var _ ports.TaxBracketStore = (*TaxBracketPGStore)(nil)

func (s *TaxBracketPGStore) ListTaxBrackets(ctx context.Context, workspaceID string, taxType types.TaxType) ([]types.TaxBracket, error) {
	tx, err := beginWorkspaceTx(ctx, s.pool, workspaceID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	rows, err := tx.Query(ctx, `
SELECT
  id::text,
  workspace_id,
  tax_type,
  min_income::text,
  COALESCE(max_income::text, ''),
  rate::text
FROM payroll.tax_brackets
WHERE workspace_id = $1::text AND tax_type = $2::text
ORDER BY min_income ASC
`, workspaceID, string(taxType))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]types.TaxBracket, 0)
	for rows.Next() {
		var b types.TaxBracket
		var tt, minIncome, maxIncome, rate string
		if err := rows.Scan(&b.ID, &b.WorkspaceID, &tt, &minIncome, &maxIncome, &rate); err != nil {
			return nil, err
		}
		b.TaxType = types.TaxType(tt)
		if b.MinIncome, err = money.ParseAmount(minIncome); err != nil {
			return nil, err
		}
		if b.Rate, err = money.ParseAmount(rate); err != nil {
			return nil, err
		}
		if maxIncome != "" {
			m, err := money.ParseAmount(maxIncome)
			if err != nil {
				return nil, err
			}
			b.MaxIncome = &m
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

// ReplaceTaxBrackets swaps the full bracket set for one tax type.
func (s *TaxBracketPGStore) ReplaceTaxBrackets(ctx context.Context, workspaceID string, taxType types.TaxType, brackets []types.TaxBracket) error {
	tx, err := beginWorkspaceTx(ctx, s.pool, workspaceID)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if _, err := tx.Exec(ctx, `
DELETE FROM payroll.tax_brackets
WHERE workspace_id = $1::text AND tax_type = $2::text
`, workspaceID, string(taxType)); err != nil {
		return err
	}

	for _, b := range brackets {
		id := b.ID
		if id == "" {
			if id, err = uuidv7.NewString(); err != nil {
				return err
			}
		}
		var maxIncome *string
		if b.MaxIncome != nil {
			m := money.Text(*b.MaxIncome)
			maxIncome = &m
		}
		if _, err := tx.Exec(ctx, `
INSERT INTO payroll.tax_brackets (id, workspace_id, tax_type, min_income, max_income, rate)
VALUES ($1::uuid, $2::text, $3::text, $4::numeric, $5::numeric, $6::numeric)
`, id, workspaceID, string(taxType), money.Text(b.MinIncome), maxIncome, b.Rate.String()); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}
