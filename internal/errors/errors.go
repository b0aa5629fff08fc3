// Package errors defines structured error types for dataset configuration
// and schema violations.
package errors

import (
	"fmt"
	"sort"
	"strings"
)

// ErrorCode defines specific error kinds raised by datasets.
type ErrorCode string

const (
	// ErrCodeConfiguration is returned when a dataset is misconfigured
	ErrCodeConfiguration ErrorCode = "CONFIGURATION"
	// ErrCodeRequiredColumn is returned when a table lacks declared columns
	ErrCodeRequiredColumn ErrorCode = "REQUIRED_COLUMN"
	// ErrCodeUniqueness is returned when rows repeat under the uniqueness key
	ErrCodeUniqueness ErrorCode = "UNIQUENESS"
)

// ErrorWithCode is an error that includes an error code and details.
type ErrorWithCode interface {
	Error() string
	Code() ErrorCode
	Details() map[string]any
}

// Sentinels usable with errors.Is. Any error of the matching kind compares
// equal to them.
var (
	ErrConfiguration  = &kind{code: ErrCodeConfiguration}
	ErrRequiredColumn = &kind{code: ErrCodeRequiredColumn}
	ErrUniqueness     = &kind{code: ErrCodeUniqueness}
)

type kind struct {
	code ErrorCode
}

func (k *kind) Error() string {
	return strings.ToLower(strings.ReplaceAll(string(k.code), "_", " ")) + " error"
}

// ConfigurationError is returned when a source cannot be resolved or called,
// or when a configuration field holds an invalid value.
type ConfigurationError struct {
	// Field names the offending attribute, e.g. "source" or "cardinal".
	Field string
	// Reason is the human readable cause.
	Reason string
	// Err is the underlying error, if any.
	Err error
}

// Configuration creates a ConfigurationError for field.
func Configuration(field, reason string) *ConfigurationError {
	return &ConfigurationError{Field: field, Reason: reason}
}

// Wrap wraps an underlying error.
func (e *ConfigurationError) Wrap(err error) *ConfigurationError {
	e.Err = err
	return e
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

// Code returns the error code.
func (e *ConfigurationError) Code() ErrorCode {
	return ErrCodeConfiguration
}

// Details returns additional error details.
func (e *ConfigurationError) Details() map[string]any {
	return map[string]any{"field": e.Field}
}

// Unwrap returns the wrapped error if any.
func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrConfiguration.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// RequiredColumnError is returned when a materialized table is missing one or
// more of the columns a dataset declares as required.
type RequiredColumnError struct {
	// Missing is the sorted set of absent columns.
	Missing []string
	// Name is the dataset name.
	Name string
}

// RequiredColumn creates a RequiredColumnError. missing is sorted in place.
func RequiredColumn(missing []string, name string) *RequiredColumnError {
	sort.Strings(missing)
	return &RequiredColumnError{Missing: missing, Name: name}
}

// Error implements the error interface.
func (e *RequiredColumnError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("missing required columns %v", e.Missing)
	}
	return fmt.Sprintf("missing required columns %v in %s", e.Missing, e.Name)
}

// Code returns the error code.
func (e *RequiredColumnError) Code() ErrorCode {
	return ErrCodeRequiredColumn
}

// Details returns additional error details.
func (e *RequiredColumnError) Details() map[string]any {
	return map[string]any{"missing": e.Missing, "name": e.Name}
}

// Is reports whether target is ErrRequiredColumn.
func (e *RequiredColumnError) Is(target error) bool {
	return target == ErrRequiredColumn
}

// UniquenessError is returned when two or more rows share the same values
// across the uniqueness key columns.
type UniquenessError struct {
	Columns []string
	Name    string
	// Duplicates is the number of rows repeating an earlier row.
	Duplicates int
}

// Uniqueness creates a UniquenessError.
func Uniqueness(columns []string, name string, duplicates int) *UniquenessError {
	return &UniquenessError{Columns: columns, Name: name, Duplicates: duplicates}
}

// Error implements the error interface.
func (e *UniquenessError) Error() string {
	return fmt.Sprintf("duplicates in %v (%d rows)", e.Columns, e.Duplicates)
}

// Code returns the error code.
func (e *UniquenessError) Code() ErrorCode {
	return ErrCodeUniqueness
}

// Details returns additional error details.
func (e *UniquenessError) Details() map[string]any {
	return map[string]any{"columns": e.Columns, "name": e.Name, "duplicates": e.Duplicates}
}

// Is reports whether target is ErrUniqueness.
func (e *UniquenessError) Is(target error) bool {
	return target == ErrUniqueness
}
