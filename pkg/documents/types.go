// Package documents implements the document service: values of catalogued
// types are checked through their dispatcher, normalized, and stored.
package documents

import (
	"encoding/json"

	"github.com/morezero/valuestore/pkg/catalog"
	"github.com/morezero/valuestore/pkg/dispatcher"
)

// Error codes.
const (
	CodeInvalidArgument = "INVALID_ARGUMENT"
	CodeUnknownType     = "UNKNOWN_TYPE"
	CodeInvalidDocument = "INVALID_DOCUMENT"
	CodeTypeMismatch    = "TYPE_MISMATCH"
	CodeNotFound        = "NOT_FOUND"
	CodeConflict        = "CONFLICT"
	CodeInternal        = "INTERNAL_ERROR"
)

// PutInput holds parameters for the put method.
type PutInput struct {
	Collection string          `json:"collection"`
	Key        string          `json:"key"`
	Type       string          `json:"type"`
	Body       json.RawMessage `json:"body"`
	// ExpectedRevision makes the write conditional; 0 means create only.
	ExpectedRevision *int `json:"expectedRevision,omitempty"`
}

// PutOutput holds the result of the put method.
type PutOutput struct {
	Collection   string                  `json:"collection"`
	Key          string                  `json:"key"`
	DeclaredType string                  `json:"declaredType"`
	RuntimeType  string                  `json:"runtimeType,omitempty"`
	Revision     int                     `json:"revision"`
	Etag         string                  `json:"etag"`
	Changed      bool                    `json:"changed"`
	Body         json.RawMessage         `json:"body"`
	Diagnostics  []dispatcher.Diagnostic `json:"diagnostics,omitempty"`
}

// GetInput holds parameters for the get method.
type GetInput struct {
	Collection string `json:"collection"`
	Key        string `json:"key"`
}

// GetOutput holds the result of the get method.
type GetOutput struct {
	Collection   string          `json:"collection"`
	Key          string          `json:"key"`
	DeclaredType string          `json:"declaredType"`
	RuntimeType  string          `json:"runtimeType,omitempty"`
	Body         json.RawMessage `json:"body"`
	Revision     int             `json:"revision"`
	Etag         string          `json:"etag"`
	Modified     string          `json:"modified,omitempty"`
	ModifiedBy   string          `json:"modifiedBy,omitempty"`
	Cached       bool            `json:"cached"`
}

// DeleteInput holds parameters for the delete method.
type DeleteInput struct {
	Collection string `json:"collection"`
	Key        string `json:"key"`
}

// DeleteOutput holds the result of the delete method.
type DeleteOutput struct {
	Deleted bool `json:"deleted"`
}

// ListInput holds parameters for the list method.
type ListInput struct {
	Collection string `json:"collection"`
	Type       string `json:"type,omitempty"`
	Prefix     string `json:"prefix,omitempty"`
	Page       int    `json:"page,omitempty"`
	Limit      int    `json:"limit,omitempty"`
}

// ListOutput holds the result of the list method.
type ListOutput struct {
	Documents  []DocumentSummary `json:"documents"`
	Pagination Pagination        `json:"pagination"`
}

// DocumentSummary describes a stored document without its body.
type DocumentSummary struct {
	Key          string `json:"key"`
	DeclaredType string `json:"declaredType"`
	RuntimeType  string `json:"runtimeType,omitempty"`
	Revision     int    `json:"revision"`
	Etag         string `json:"etag"`
	Modified     string `json:"modified"`
}

// Pagination holds pagination information.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// DescribeTypeInput holds parameters for the describeType method. An empty
// Type lists the whole catalog.
type DescribeTypeInput struct {
	Type string `json:"type,omitempty"`
}

// DescribeTypeOutput holds the result of the describeType method.
type DescribeTypeOutput struct {
	Types []TypeInfo `json:"types"`
}

// TypeInfo describes one catalogued type.
type TypeInfo struct {
	catalog.TypeDescription
	Subtypes   []string `json:"subtypes,omitempty"`
	HasHandler bool     `json:"hasHandler"`
}

// ResolveTypeInput holds parameters for the resolveType method.
type ResolveTypeInput struct {
	Name   string `json:"name"`
	Within string `json:"within,omitempty"`
}

// ResolveTypeOutput holds the result of the resolveType method.
type ResolveTypeOutput struct {
	Resolved bool   `json:"resolved"`
	Type     string `json:"type,omitempty"`
	Kind     string `json:"kind,omitempty"`
}

// HealthOutput holds the result of the health method.
type HealthOutput struct {
	Status    string       `json:"status"`
	Checks    HealthChecks `json:"checks"`
	Types     int          `json:"types"`
	Timestamp string       `json:"timestamp"`
}

// HealthChecks holds individual health check results.
type HealthChecks struct {
	Database bool `json:"database"`
	Cache    bool `json:"cache"`
}

// ServiceError is a structured error from the document service.
type ServiceError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Code + ": " + e.Message
}

// NewServiceError creates a new ServiceError.
func NewServiceError(code, message string) *ServiceError {
	return &ServiceError{Code: code, Message: message}
}
