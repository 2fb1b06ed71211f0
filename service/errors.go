package service

import (
	"errors"
	"fmt"
)

var (
	ErrResolution        = errors.New("hostname could not be resolved")
	ErrResourceExhausted = errors.New("local socket resources exhausted")
	ErrInvalidTarget     = errors.New("invalid target")
	ErrInvalidConfig     = errors.New("invalid scan configuration")
)

// ConfigError is returned before any scanning starts.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (*ConfigError) Is(target error) bool {
	return target == ErrInvalidConfig
}

// ResolutionError ends the scan of one host; other hosts keep going.
type ResolutionError struct {
	Host string
	Err  error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("hostname %s could not be resolved: %v", e.Host, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

func (*ResolutionError) Is(target error) bool {
	return target == ErrResolution
}
