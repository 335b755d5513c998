package graph

import (
	"errors"
	"fmt"
)

// ErrorCode is the closed set of provider error codes the adapter tells
// apart. Every raw provider code maps to exactly one of them.
type ErrorCode int

const (
	CodeUnknown ErrorCode = iota
	CodeNotFound
	CodeInvalidUser
	CodeAuthenticationFailure
	CodeTokenNotFound
	CodeAccessDenied
	// CodePhotoEndpoint is returned by the v1.0 photo endpoint for
	// consumer accounts; the beta endpoint serves those photos.
	CodePhotoEndpoint
)

func (c ErrorCode) String() string {
	switch c {
	case CodeNotFound:
		return "not_found"
	case CodeInvalidUser:
		return "invalid_user"
	case CodeAuthenticationFailure:
		return "authentication_failure"
	case CodeTokenNotFound:
		return "token_not_found"
	case CodeAccessDenied:
		return "access_denied"
	case CodePhotoEndpoint:
		return "photo_endpoint"
	case CodeUnknown:
		return "unknown"
	}
	return fmt.Sprintf("ErrorCode(%d)", int(c))
}

// ClassifyCode maps a raw provider code to an ErrorCode.
func ClassifyCode(raw string) ErrorCode {
	switch raw {
	case "Request_ResourceNotFound", "ResourceNotFound", "ErrorItemNotFound", "itemNotFound":
		return CodeNotFound
	case "ErrorInvalidUser":
		return CodeInvalidUser
	case "AuthenticationFailure":
		return CodeAuthenticationFailure
	case "TokenNotFound":
		return CodeTokenNotFound
	case "ErrorAccessDenied":
		return CodeAccessDenied
	case "GetUserPhoto":
		return CodePhotoEndpoint
	default:
		return CodeUnknown
	}
}

// Error is a coded failure reported by the primary provider.
type Error struct {
	Code    ErrorCode
	Raw     string
	Message string
	Status  int
}

func (e *Error) Error() string {
	return fmt.Sprintf("graph: %s (%s): %s", e.Raw, e.Code, e.Message)
}

// errTokenNotFound is returned by the token source when the identity
// carries no access token.
var errTokenNotFound = errors.New("access token not found for the current user")

// asError extracts a provider error from err, if any.
func asError(err error) (*Error, bool) {
	var gerr *Error
	if errors.As(err, &gerr) {
		return gerr, true
	}
	return nil, false
}
