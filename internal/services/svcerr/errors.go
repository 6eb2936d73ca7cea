// Package svcerr is the error taxonomy shared by every service. The HTTP
// layer maps each type to one status code.
package svcerr

import (
	"fmt"
	"sort"
	"strings"
)

// ValidationError carries per-field messages (400).
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Invalid builds a single-field ValidationError.
func Invalid(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

// NotFoundError means the addressed resource does not exist (404).
type NotFoundError struct {
	Resource string
	Key      string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.Key)
}

// ConflictError means the resource is in a state that forbids the operation (409).
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// ChainError reports an on-chain condition that fails verification (400).
type ChainError struct {
	Code    string
	Message string
}

func (e *ChainError) Error() string { return e.Code + ": " + e.Message }

const (
	CodeNotConfirmed      = "NOT_CONFIRMED"
	CodeReferenceMismatch = "REFERENCE_MISMATCH"
	CodeUnderpaid         = "UNDERPAID"
)

// ServiceError wraps an unexpected downstream failure (500).
type ServiceError struct {
	Op  string
	Err error
}

func (e *ServiceError) Error() string {
	return "service " + e.Op + ": " + e.Err.Error()
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// Wrap returns nil for a nil err.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &ServiceError{Op: op, Err: err}
}
