package types

import (
	"github.com/jacksonlee411/payroll-engine/pkg/payroll/progressive"
	"github.com/shopspring/decimal"
)

type TaxType string

const (
	TaxFederal TaxType = "federal"
	TaxState   TaxType = "state"
)

type TaxBracket struct {
	ID          string           `json:"id"`
	WorkspaceID string           `json:"workspace_id"`
	TaxType     TaxType          `json:"tax_type"`
	MinIncome   decimal.Decimal  `json:"min_income"`
	MaxIncome   *decimal.Decimal `json:"max_income,omitempty"`
	Rate        decimal.Decimal  `json:"rate"`
}

func ToProgressive(in []TaxBracket) []progressive.Bracket {
	out := make([]progressive.Bracket, 0, len(in))
	for _, b := range in {
		out = append(out, progressive.Bracket{MinIncome: b.MinIncome, MaxIncome: b.MaxIncome, Rate: b.Rate})
	}
	return out
}
