// Package mcp serves the docqa engine as Model Context Protocol tools.
package mcp

import (
	"context"
	"errors"
	"fmt"

	docerrors "github.com/Aman-CERP/docqa/internal/errors"
)

// Custom MCP error codes for docqa.
const (
	// ErrCodeIndexUnavailable indicates the index could not be built or loaded.
	ErrCodeIndexUnavailable = -32001

	// ErrCodeProviderFailed indicates an embedding or completion provider failed.
	ErrCodeProviderFailed = -32002

	// ErrCodeTimeout indicates the request timed out.
	ErrCodeTimeout = -32003

	// ErrCodeBusy indicates a rebuild is already running.
	ErrCodeBusy = -32004

	// Standard JSON-RPC error codes.
	ErrCodeInvalidParams  = -32602
	ErrCodeMethodNotFound = -32601
	ErrCodeInternalError  = -32603
)

// MCPError represents an MCP protocol error with code and message.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// MapError converts internal errors to MCP errors.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var mcpErr *MCPError
	if errors.As(err, &mcpErr) {
		return mcpErr
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request timed out."}
	case errors.Is(err, context.Canceled):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request was canceled."}
	}

	de, ok := docerrors.As(err)
	if !ok {
		return &MCPError{Code: ErrCodeInternalError, Message: "Internal server error."}
	}
	return mapDocError(de)
}

// NewInvalidParamsError creates an error for invalid parameters with a custom message.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{Code: ErrCodeInvalidParams, Message: msg}
}

// NewMethodNotFoundError creates an error for unknown tools.
func NewMethodNotFoundError(name string) *MCPError {
	return &MCPError{
		Code:    ErrCodeMethodNotFound,
		Message: fmt.Sprintf("Tool '%s' not found.", name),
	}
}

// mapDocError converts a structured docqa error to an MCPError.
func mapDocError(de *docerrors.Error) *MCPError {
	message := de.Message
	if de.Suggestion != "" {
		message = fmt.Sprintf("%s %s", de.Message, de.Suggestion)
	}

	switch de.Code {
	case docerrors.ErrCodeRebuildInProgress:
		return &MCPError{Code: ErrCodeBusy, Message: message}
	case docerrors.ErrCodeProviderTimeout:
		return &MCPError{Code: ErrCodeTimeout, Message: message}
	case docerrors.ErrCodeArtifactLoad, docerrors.ErrCodeArtifactWrite, docerrors.ErrCodeIndexFailed:
		return &MCPError{Code: ErrCodeIndexUnavailable, Message: message}
	case docerrors.ErrCodeEmbeddingFailed, docerrors.ErrCodeCompletionFailed:
		return &MCPError{Code: ErrCodeProviderFailed, Message: message}
	}

	switch de.Category {
	case docerrors.CategoryValidation:
		return &MCPError{Code: ErrCodeInvalidParams, Message: message}
	case docerrors.CategoryProvider:
		return &MCPError{Code: ErrCodeProviderFailed, Message: message}
	case docerrors.CategoryIO:
		return &MCPError{Code: ErrCodeIndexUnavailable, Message: message}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: message}
	}
}
