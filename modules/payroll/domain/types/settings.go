package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

type AnomalyRule struct {
	Code       string `json:"code" validate:"required,uppercase"`
	Expression string `json:"expression" validate:"required"`
	Message    string `json:"message"`
}

// PayrollSettings is the per-workspace tunable part of the computation.
// Rates are fractions (0.062 means 6.2%).
type PayrollSettings struct {
	OvertimeWeeklyThresholdHours decimal.Decimal `json:"overtime_weekly_threshold_hours" validate:"gt=0,lte=168"`
	FederalFlatRate              decimal.Decimal `json:"federal_flat_rate" validate:"gte=0,lte=1"`
	StateFlatRate                decimal.Decimal `json:"state_flat_rate" validate:"gte=0,lte=1"`
	SocialSecurityRate           decimal.Decimal `json:"social_security_rate" validate:"gte=0,lte=1"`
	MedicareRate                 decimal.Decimal `json:"medicare_rate" validate:"gte=0,lte=1"`
	EmployerSocialSecurityRate   decimal.Decimal `json:"employer_social_security_rate" validate:"gte=0,lte=1"`
	EmployerMedicareRate         decimal.Decimal `json:"employer_medicare_rate" validate:"gte=0,lte=1"`
	EmployerUnemploymentRate     decimal.Decimal `json:"employer_unemployment_rate" validate:"gte=0,lte=1"`
	AnomalyRules                 []AnomalyRule   `json:"anomaly_rules" validate:"dive"`
}

func DefaultPayrollSettings() PayrollSettings {
	return PayrollSettings{
		OvertimeWeeklyThresholdHours: decimal.NewFromInt(40),
		FederalFlatRate:              decimal.RequireFromString("0.12"),
		StateFlatRate:                decimal.RequireFromString("0.05"),
		SocialSecurityRate:           decimal.RequireFromString("0.062"),
		MedicareRate:                 decimal.RequireFromString("0.0145"),
		EmployerSocialSecurityRate:   decimal.RequireFromString("0.062"),
		EmployerMedicareRate:         decimal.RequireFromString("0.0145"),
		EmployerUnemploymentRate:     decimal.RequireFromString("0.006"),
	}
}

var (
	settingsValidatorOnce sync.Once
	settingsValidator     *validator.Validate
)

func payrollSettingsValidator() *validator.Validate {
	settingsValidatorOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterCustomTypeFunc(func(field reflect.Value) any {
			if d, ok := field.Interface().(decimal.Decimal); ok {
				f, _ := d.Float64()
				return f
			}
			return nil
		}, decimal.Decimal{})
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
		settingsValidator = v
	})
	return settingsValidator
}

func (s PayrollSettings) Validate() error {
	err := payrollSettingsValidator().Struct(s)
	if err == nil {
		return nil
	}
	if verrs, ok := errors.AsType[validator.ValidationErrors](err); ok {
		parts := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			parts = append(parts, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
		}
		return fmt.Errorf("%w: %s", ErrInvalidSettings, strings.Join(parts, "; "))
	}
	return fmt.Errorf("%w: %v", ErrInvalidSettings, err)
}

// ParsePayrollSettings overlays a stored JSON document on the defaults.
// Missing keys keep their default value.
func ParsePayrollSettings(raw []byte) (PayrollSettings, error) {
	s := DefaultPayrollSettings()
	if len(strings.TrimSpace(string(raw))) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(raw, &s); err != nil {
		return PayrollSettings{}, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	if err := s.Validate(); err != nil {
		return PayrollSettings{}, err
	}
	return s, nil
}
