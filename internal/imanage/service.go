// Package imanage lists a user's recent documents from the iManage Work
// document-management API.
package imanage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"

	"github.com/rpggio/timeline/internal/domain/activity"
	"github.com/rpggio/timeline/internal/identity"
)

// Options configures a Service.
type Options struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	Scope        string
	UserPassword string
	// GrantType must be empty or GrantPassword, the only grant implemented.
	GrantType string
	// Transport defaults to NewTransport(false).
	Transport http.RoundTripper
}

// Service talks to the provider. Every listing logs in again; no token is
// kept between calls.
type Service struct {
	opts   Options
	http   *http.Client
	logger *slog.Logger
}

// NewService creates a new secondary provider adapter.
func NewService(opts Options, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if opts.Transport == nil {
		opts.Transport = NewTransport(false)
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	return &Service{
		opts:   opts,
		http:   &http.Client{Transport: opts.Transport},
		logger: logger,
	}
}

type session struct {
	accessToken string
	customerID  string
}

// RecentDocuments returns the raw recent-documents response for the user.
func (s *Service) RecentDocuments(ctx context.Context, email identity.Email) (string, error) {
	username, err := userName(email)
	if err != nil {
		return "", err
	}
	if s.opts.BaseURL == "" {
		return "", ErrNotConfigured
	}
	if s.opts.GrantType != "" && s.opts.GrantType != GrantPassword {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedGrant, s.opts.GrantType)
	}

	sess, err := s.login(ctx, username)
	if err != nil {
		return "", err
	}
	path := "/work/api/v2/customers/" + sess.customerID + "/recent-documents?activity=all"
	body, err := s.get(ctx, sess.accessToken, path, StepDocuments)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// RecentDocumentItems returns the user's recent documents as timeline items.
func (s *Service) RecentDocumentItems(ctx context.Context, email identity.Email) ([]activity.Item, error) {
	raw, err := s.RecentDocuments(ctx, email)
	if err != nil {
		return nil, err
	}
	items, err := parseDocuments(raw)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("imanage documents listed", "email", email.Address, "count", len(items))
	return items, nil
}

func parseDocuments(raw string) ([]activity.Item, error) {
	if !gjson.Valid(raw) {
		return nil, errors.New("recent documents: invalid JSON")
	}
	results := gjson.Get(raw, "data.results")
	if !results.IsArray() {
		return nil, errors.New("recent documents: data.results is not an array")
	}
	items := []activity.Item{}
	var parseErr error
	results.ForEach(func(_, doc gjson.Result) bool {
		item := activity.Item{Type: activity.TypeDocument, Name: doc.Get("name").String()}
		if created := doc.Get("create_date"); created.Exists() && created.Type != gjson.Null {
			t, err := time.Parse(time.RFC3339, created.String())
			if err != nil {
				parseErr = fmt.Errorf("recent documents: parsing create_date: %w", err)
				return false
			}
			item.CreatedAt = &t
		}
		items = append(items, item)
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}
	return items, nil
}

// login obtains a fresh access token with the password grant, then looks up
// the customer the user belongs to.
func (s *Service) login(ctx context.Context, username string) (session, error) {
	conf := &oauth2.Config{
		ClientID:     s.opts.ClientID,
		ClientSecret: s.opts.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  s.opts.BaseURL + "/auth/oauth2/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	if s.opts.Scope != "" {
		conf.Scopes = strings.Fields(s.opts.Scope)
	}

	tokenCtx := context.WithValue(ctx, oauth2.HTTPClient, s.http)
	token, err := conf.PasswordCredentialsToken(tokenCtx, username, s.opts.UserPassword)
	if err != nil {
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) && rerr.Response != nil {
			return session{}, &StatusError{Step: StepToken, StatusCode: rerr.Response.StatusCode}
		}
		return session{}, fmt.Errorf("getting iManage access token: %w", err)
	}

	body, err := s.get(ctx, token.AccessToken, "/api", StepUserInfo)
	if err != nil {
		return session{}, err
	}
	customerID := gjson.GetBytes(body, "data.user.customer_id")
	if !customerID.Exists() || customerID.String() == "" {
		return session{}, errors.New("user info: data.user.customer_id missing")
	}
	return session{accessToken: token.AccessToken, customerID: customerID.String()}, nil
}

func (s *Service) get(ctx context.Context, accessToken, path string, step Step) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.opts.BaseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("building %s request: %w", step, err)
	}
	req.Header.Set("X-Auth-Token", accessToken)
	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("getting iManage %s: %w", step, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Step: step, StatusCode: resp.StatusCode}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading iManage %s: %w", step, err)
	}
	return body, nil
}

// userName is the local part of the email.
func userName(email identity.Email) (string, error) {
	if !email.Valid {
		return "", ErrMissingEmail
	}
	at := strings.IndexByte(email.Address, '@')
	if at < 0 {
		return "", ErrInvalidEmail
	}
	return email.Address[:at], nil
}
