// Package mcp implements the Model Context Protocol (MCP) server for rubricrank.
package mcp

import (
	"context"
	"errors"
	"fmt"

	rrerrors "github.com/Aman-CERP/rubricrank/internal/errors"
)

// Custom MCP error codes for rubricrank.
const (
	// ErrCodeCorpusNotFound indicates the requested corpus is not loaded.
	ErrCodeCorpusNotFound = -32001

	// ErrCodeScorerFailed indicates the scoring service failed.
	ErrCodeScorerFailed = -32002

	// ErrCodeTimeout indicates the request timed out or was canceled.
	ErrCodeTimeout = -32003

	// ErrCodeRubricNotFound indicates the requested rubric does not exist.
	ErrCodeRubricNotFound = -32004

	// ErrCodeBusy indicates an indexing job for the rubric is already running.
	ErrCodeBusy = -32005

	// Standard JSON-RPC error codes.
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
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

// MapError converts internal errors to MCP errors. Messages carry the
// RankError suggestion so clients can act on them.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var mcpErr *MCPError
	if errors.As(err, &mcpErr) {
		return mcpErr
	}

	var rankErr *rrerrors.RankError
	if errors.As(err, &rankErr) {
		return mapRankError(rankErr)
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request timed out."}
	case errors.Is(err, context.Canceled):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request was canceled."}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: "Internal server error."}
	}
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

func mapRankError(re *rrerrors.RankError) *MCPError {
	message := re.Message
	if re.Suggestion != "" {
		message = fmt.Sprintf("%s %s", re.Message, re.Suggestion)
	}

	switch re.Code {
	case rrerrors.ErrCodeNoCorpus, rrerrors.ErrCodeNotReady:
		return &MCPError{Code: ErrCodeCorpusNotFound, Message: message}
	case rrerrors.ErrCodeRubricNotFound:
		return &MCPError{Code: ErrCodeRubricNotFound, Message: message}
	case rrerrors.ErrCodeIndexingFailed:
		return &MCPError{Code: ErrCodeBusy, Message: message}
	case rrerrors.ErrCodeScorerTimeout:
		return &MCPError{Code: ErrCodeTimeout, Message: message}
	}

	switch re.Category {
	case rrerrors.CategoryValidation:
		return &MCPError{Code: ErrCodeInvalidParams, Message: message}
	case rrerrors.CategoryNetwork:
		return &MCPError{Code: ErrCodeScorerFailed, Message: message}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: message}
	}
}
