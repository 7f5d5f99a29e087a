package services

import (
	"context"
	"errors"

	"github.com/jacksonlee411/payroll-engine/modules/payroll/domain/ports"
	"github.com/jacksonlee411/payroll-engine/modules/payroll/domain/types"
	"github.com/jacksonlee411/payroll-engine/pkg/payroll/progressive"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type TaxResult struct {
	Amount decimal.Decimal
	// Degraded is set when brackets exist but could not be used.
	Degraded bool
	Reason   string
}

type TaxCalculator struct {
	brackets ports.TaxBracketStore
	log      zerolog.Logger
}

func NewTaxCalculator(brackets ports.TaxBracketStore, log zerolog.Logger) *TaxCalculator {
	return &TaxCalculator{brackets: brackets, log: log}
}

// CalculateTax applies the workspace's progressive brackets for taxType, or
// gross × flatRate when none are configured. A failed bracket load or an
// invalid bracket set degrades to the flat rate for this call only.
func (c *TaxCalculator) CalculateTax(ctx context.Context, grossPay decimal.Decimal, taxType types.TaxType, workspaceID string, flatRate decimal.Decimal) (TaxResult, error) {
	flat, err := progressive.Flat(grossPay, flatRate)
	if err != nil {
		return TaxResult{}, err
	}

	brackets, err := c.brackets.ListTaxBrackets(ctx, workspaceID, taxType)
	if err != nil {
		c.log.Warn().Err(err).
			Str("workspace_id", workspaceID).
			Str("tax_type", string(taxType)).
			Msg("tax bracket lookup failed, using flat rate")
		return TaxResult{Amount: flat, Degraded: true, Reason: "bracket lookup failed: " + err.Error()}, nil
	}
	if len(brackets) == 0 {
		return TaxResult{Amount: flat}, nil
	}

	amount, err := progressive.Compute(grossPay, types.ToProgressive(brackets))
	if err != nil {
		if !errors.Is(err, progressive.ErrInvalidBrackets) {
			return TaxResult{}, err
		}
		c.log.Warn().Err(err).
			Str("workspace_id", workspaceID).
			Str("tax_type", string(taxType)).
			Msg("tax brackets invalid, using flat rate")
		return TaxResult{Amount: flat, Degraded: true, Reason: err.Error()}, nil
	}
	return TaxResult{Amount: amount}, nil
}
