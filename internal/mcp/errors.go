package mcp

import (
	"errors"
	"fmt"

	"github.com/rpggio/timeline/internal/domain/session"
	"github.com/rpggio/timeline/internal/graph"
	"github.com/rpggio/timeline/internal/imanage"
)

// ErrUnknownResource indicates get_resource was asked for something it
// does not serve.
var ErrUnknownResource = errors.New("unknown resource")

// APIError represents an MCP tool error payload.
type APIError struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	Details      any    `json:"details,omitempty"`
	RecoveryHint string `json:"recovery_hint,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// MapError maps domain errors to MCP error codes.
func MapError(err error) *APIError {
	if err == nil {
		return nil
	}
	var statusErr *imanage.StatusError
	var graphErr *graph.Error
	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, session.ErrSessionNotFound),
		errors.Is(err, session.ErrSessionRevoked):
		return &APIError{Code: "UNAUTHORIZED", Message: "session is not valid", RecoveryHint: "Create a new session"}
	case errors.Is(err, ErrUnknownResource):
		return &APIError{Code: "INVALID_RESOURCE", Message: err.Error(), RecoveryHint: "Use one of the listed resources"}
	case errors.Is(err, imanage.ErrMissingEmail), errors.Is(err, imanage.ErrInvalidEmail):
		return &APIError{Code: "INVALID_EMAIL", Message: err.Error(), RecoveryHint: "Pass a full email address"}
	case errors.Is(err, imanage.ErrNotConfigured), errors.Is(err, imanage.ErrUnsupportedGrant):
		return &APIError{Code: "NOT_CONFIGURED", Message: err.Error()}
	case errors.As(err, &statusErr):
		return &APIError{Code: "PROVIDER_ERROR", Message: err.Error(), Details: map[string]any{"step": statusErr.Step, "status": statusErr.StatusCode}}
	case errors.As(err, &graphErr):
		return &APIError{Code: "PROVIDER_ERROR", Message: graphErr.Message, Details: map[string]any{"code": graphErr.Raw, "status": graphErr.Status}}
	default:
		return &APIError{Code: "INTERNAL", Message: err.Error()}
	}
}
