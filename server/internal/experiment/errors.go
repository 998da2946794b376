package experiment

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidProtocol  = errors.New("invalid protocol")
	ErrBalanceExhausted = errors.New("no semi-predictable candidate left")
)

// ConfigError reports a protocol that cannot be run.
type ConfigError struct {
	Field string
	Msg   string
}

func (e *ConfigError) Error() string {
	if e == nil {
		return ""
	}
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", ErrInvalidProtocol, e.Msg)
	}
	return fmt.Sprintf("%s: %s: %s", ErrInvalidProtocol, e.Field, e.Msg)
}

func (e *ConfigError) Unwrap() error { return ErrInvalidProtocol }

func configErrorf(field, format string, args ...any) error {
	return &ConfigError{Field: field, Msg: fmt.Sprintf(format, args...)}
}
