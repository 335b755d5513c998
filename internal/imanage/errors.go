package imanage

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrMissingEmail indicates documents were requested without an email.
	ErrMissingEmail = errors.New("email address cannot be null")
	// ErrInvalidEmail indicates the email has no local part to log in with.
	ErrInvalidEmail = errors.New("email address has no '@'")
	// ErrNotConfigured indicates no base URL was configured.
	ErrNotConfigured = errors.New("imanage base url not configured")
	// ErrUnsupportedGrant indicates a grant type other than GrantPassword.
	ErrUnsupportedGrant = errors.New("unsupported imanage grant type")
)

// GrantPassword is the resource owner password grant.
const GrantPassword = "password"

// Step names the request of the document listing that failed.
type Step string

const (
	StepToken     Step = "access token"
	StepUserInfo  Step = "user info"
	StepDocuments Step = "recent documents"
)

// StatusError reports a non-success HTTP status from the provider.
type StatusError struct {
	Step       Step
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status code '%d %s' has been received during getting iManage %s",
		e.StatusCode, http.StatusText(e.StatusCode), e.Step)
}
