package slots

import (
	"errors"
	"fmt"
)

var (
	// ErrModelNotReady indicates a classifier slot was asked to resolve
	// before a model was trained or loaded. This is a caller-sequencing bug,
	// never a normal no-match.
	ErrModelNotReady = errors.New("slots: classifier model not attached")
)

// ConfigurationError reports an invalid schema definition or a missing
// artifact at load time. Any ConfigurationError aborts the whole schema
// construction; there is no partially-usable schema.
type ConfigurationError struct {
	Msg string
	Err error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("slots: %s: %v", e.Msg, e.Err)
	}
	return "slots: " + e.Msg
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

func configErrorf(format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Msg: fmt.Sprintf(format, args...)}
}
