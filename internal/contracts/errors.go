package contracts

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInsufficientData is matched by InsufficientDataError via errors.Is
var ErrInsufficientData = errors.New("insufficient indicator data")

// ErrConfigurationFault is matched by ConfigurationFault via errors.Is
var ErrConfigurationFault = errors.New("configuration fault")

// InsufficientDataError 지표 카테고리 누락 (분류기는 추측하지 않음)
type InsufficientDataError struct {
	Missing []string
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient indicator data: missing %s", strings.Join(e.Missing, ", "))
}

// Is lets errors.Is(err, ErrInsufficientData) match
func (e *InsufficientDataError) Is(target error) bool {
	return target == ErrInsufficientData
}

// ConfigurationFault marks a programming/configuration error that must abort the cycle
// 런타임 복구 대상이 아님 (fail-closed)
type ConfigurationFault struct {
	Component string
	Message   string
}

func (e *ConfigurationFault) Error() string {
	return fmt.Sprintf("configuration fault in %s: %s", e.Component, e.Message)
}

// Is lets errors.Is(err, ErrConfigurationFault) match
func (e *ConfigurationFault) Is(target error) bool {
	return target == ErrConfigurationFault
}

// NewConfigurationFault builds a ConfigurationFault with a formatted message
func NewConfigurationFault(component, format string, args ...interface{}) *ConfigurationFault {
	return &ConfigurationFault{Component: component, Message: fmt.Sprintf(format, args...)}
}

// InvalidInputError rejects a malformed external record
type InvalidInputError struct {
	Field   string
	Message string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input %s: %s", e.Field, e.Message)
}
