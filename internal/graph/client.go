package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"
)

// ClientOptions configures a Client.
type ClientOptions struct {
	BaseURL     string
	BetaBaseURL string
	// Transport is the base transport under the bearer token transport.
	// Defaults to http.DefaultTransport.
	Transport http.RoundTripper
}

// Client is a bearer-token-backed handle on the primary provider for one
// identity. It is safe for concurrent use: the base URL of every request is
// chosen per call and the client itself never changes.
type Client struct {
	http        *http.Client
	baseURL     string
	betaBaseURL string
}

// NewClient returns a client that authorizes requests with accessToken.
// An empty token makes every request fail with CodeTokenNotFound.
func NewClient(accessToken string, opts ClientOptions) *Client {
	base := opts.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	return &Client{
		http: &http.Client{
			Transport: &oauth2.Transport{
				Source: oauth2.ReuseTokenSource(nil, staticTokenSource{accessToken: accessToken}),
				Base:   base,
			},
		},
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		betaBaseURL: strings.TrimRight(opts.BetaBaseURL, "/"),
	}
}

// BaseURL returns the default API base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// BetaBaseURL returns the alternate API base URL.
func (c *Client) BetaBaseURL() string {
	return c.betaBaseURL
}

type staticTokenSource struct {
	accessToken string
}

func (s staticTokenSource) Token() (*oauth2.Token, error) {
	if s.accessToken == "" {
		return nil, errTokenNotFound
	}
	return &oauth2.Token{AccessToken: s.accessToken, TokenType: "Bearer"}, nil
}

// userPath builds /users/{email}/{rest...}.
func userPath(email string, rest ...string) string {
	parts := append([]string{"users", url.PathEscape(email)}, rest...)
	return "/" + strings.Join(parts, "/")
}

// get issues a GET against baseURL+path and returns the response body.
// Provider failures come back as *Error.
func (c *Client) get(ctx context.Context, baseURL, path string, query url.Values) ([]byte, error) {
	target := baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, errTokenNotFound) {
			return nil, &Error{Code: CodeTokenNotFound, Raw: "TokenNotFound", Message: errTokenNotFound.Error()}
		}
		return nil, fmt.Errorf("requesting %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, parseError(resp.StatusCode, body)
	}
	return body, nil
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func parseError(status int, body []byte) *Error {
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err != nil || env.Error.Code == "" {
		return &Error{Code: CodeUnknown, Message: http.StatusText(status), Status: status}
	}
	return &Error{
		Code:    ClassifyCode(env.Error.Code),
		Raw:     env.Error.Code,
		Message: env.Error.Message,
		Status:  status,
	}
}

type collection[T any] struct {
	Value []T `json:"value"`
}

// list fetches one page of a collection and decodes its value array.
func list[T any](ctx context.Context, c *Client, path string, query url.Values) ([]T, error) {
	body, err := c.get(ctx, c.baseURL, path, query)
	if err != nil {
		return nil, err
	}
	var page collection[T]
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return page.Value, nil
}
