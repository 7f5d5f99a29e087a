package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jacksonlee411/payroll-engine/modules/payroll/domain/types"
	"github.com/jacksonlee411/payroll-engine/pkg/money"
	"github.com/jacksonlee411/payroll-engine/pkg/payroll/progressive"
	"gopkg.in/yaml.v3"
)

type seedFile struct {
	Workspace   string                       `yaml:"workspace"`
	Settings    map[string]any               `yaml:"settings"`
	TaxBrackets map[string][]seedBracketSpec `yaml:"tax_brackets"`
}

type seedBracketSpec struct {
	MinIncome string `yaml:"min_income"`
	MaxIncome string `yaml:"max_income"`
	Rate      string `yaml:"rate"`
}

type seedDocument struct {
	Workspace string
	Settings  types.PayrollSettings
	Brackets  map[types.TaxType][]types.TaxBracket
}

// parseSeed validates a seed file fully before anything touches the database.
func parseSeed(raw []byte) (seedDocument, error) {
	var in seedFile
	if err := yaml.Unmarshal(raw, &in); err != nil {
		return seedDocument{}, fmt.Errorf("seed: parse yaml: %w", err)
	}
	ws := strings.TrimSpace(in.Workspace)
	if ws == "" {
		return seedDocument{}, errors.New("seed: workspace is required")
	}

	var settingsJSON []byte
	if len(in.Settings) > 0 {
		b, err := json.Marshal(in.Settings)
		if err != nil {
			return seedDocument{}, fmt.Errorf("seed: settings: %w", err)
		}
		settingsJSON = b
	}
	settings, err := types.ParsePayrollSettings(settingsJSON)
	if err != nil {
		return seedDocument{}, fmt.Errorf("seed: settings: %w", err)
	}

	out := seedDocument{Workspace: ws, Settings: settings, Brackets: map[types.TaxType][]types.TaxBracket{}}
	for rawType, specs := range in.TaxBrackets {
		taxType := types.TaxType(strings.ToLower(strings.TrimSpace(rawType)))
		if taxType != types.TaxFederal && taxType != types.TaxState {
			return seedDocument{}, fmt.Errorf("seed: unknown tax type %q", rawType)
		}
		list := make([]types.TaxBracket, 0, len(specs))
		for i, s := range specs {
			b, err := s.toBracket(ws, taxType)
			if err != nil {
				return seedDocument{}, fmt.Errorf("seed: %s bracket %d: %w", taxType, i, err)
			}
			list = append(list, b)
		}
		if err := progressive.Validate(types.ToProgressive(list)); err != nil {
			return seedDocument{}, fmt.Errorf("seed: %s brackets: %w", taxType, err)
		}
		out.Brackets[taxType] = list
	}
	return out, nil
}

func (s seedBracketSpec) toBracket(workspaceID string, taxType types.TaxType) (types.TaxBracket, error) {
	minIncome, err := money.ParseAmount(s.MinIncome)
	if err != nil {
		return types.TaxBracket{}, fmt.Errorf("min_income: %w", err)
	}
	rate, err := money.ParseAmount(s.Rate)
	if err != nil {
		return types.TaxBracket{}, fmt.Errorf("rate: %w", err)
	}
	b := types.TaxBracket{WorkspaceID: workspaceID, TaxType: taxType, MinIncome: minIncome, Rate: rate}
	if strings.TrimSpace(s.MaxIncome) != "" {
		maxIncome, err := money.ParseAmount(s.MaxIncome)
		if err != nil {
			return types.TaxBracket{}, fmt.Errorf("max_income: %w", err)
		}
		b.MaxIncome = &maxIncome
	}
	return b, nil
}
