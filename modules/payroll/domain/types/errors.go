package types

import "errors"

var (
	ErrInvalidTransition   = errors.New("invalid transition")
	ErrPayPeriodNotFound   = errors.New("pay period not found")
	ErrRecordNotFound      = errors.New("payroll record not found")
	ErrInvalidCompensation = errors.New("invalid compensation")
	ErrInvalidPayPeriod    = errors.New("invalid pay period")
	ErrInvalidSettings     = errors.New("invalid payroll settings")
)
