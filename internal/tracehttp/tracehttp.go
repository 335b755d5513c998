// Package tracehttp logs outbound HTTP traffic for debugging.
package tracehttp

import (
	"log/slog"
	"net/http"
	"net/http/httputil"
	"regexp"
)

// traceTransport is an http.RoundTripper that logs a dump of the request and
// response while delegating the real work to another http.RoundTripper.
type traceTransport struct {
	delegate http.RoundTripper
	logger   *slog.Logger
}

// RoundTrip logs the request and response at debug level around the
// delegate's round trip. Bodies are included with credential fields masked,
// credential headers are masked too.
func (t *traceTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	if !t.logger.Enabled(ctx, slog.LevelDebug) {
		return t.delegate.RoundTrip(req)
	}

	clone, withBody := redacted(req)
	if dump, err := httputil.DumpRequestOut(clone, withBody); err == nil {
		t.logger.Debug("http traffic", "stage", "request", "dump", string(maskSecrets(dump)))
	}
	resp, err := t.delegate.RoundTrip(req)
	if err != nil {
		t.logger.Debug("http traffic", "stage", "response", "url", req.URL.String(), "error", err)
		return resp, err
	}
	if dump, dumpErr := httputil.DumpResponse(resp, true); dumpErr == nil {
		t.logger.Debug("http traffic", "stage", "response", "dump", string(maskSecrets(dump)))
	}
	return resp, nil
}

var secretHeaders = []string{"Authorization", "X-Auth-Token"}

const secretFields = `password|client_secret|access_token|refresh_token|id_token`

var (
	secretFormField = regexp.MustCompile(`\b(` + secretFields + `)=[^&\s]*`)
	secretJSONField = regexp.MustCompile(`"(` + secretFields + `)"(\s*):(\s*)"(?:[^"\\]|\\.)*"`)
)

// maskSecrets hides credential values in form-encoded and JSON bodies, and
// in query strings.
func maskSecrets(dump []byte) []byte {
	dump = secretFormField.ReplaceAll(dump, []byte("${1}=REDACTED"))
	return secretJSONField.ReplaceAll(dump, []byte(`"${1}"${2}:${3}"REDACTED"`))
}

// redacted returns a copy of req with credential headers masked. The copy
// gets its own body when req can replay it; otherwise the body is skipped
// so the real request still has it.
func redacted(req *http.Request) (*http.Request, bool) {
	clone := req.Clone(req.Context())
	for _, h := range secretHeaders {
		if clone.Header.Get(h) != "" {
			clone.Header.Set(h, "REDACTED")
		}
	}
	if req.Body == nil || req.Body == http.NoBody {
		return clone, true
	}
	if req.GetBody == nil {
		clone.Body = nil
		return clone, false
	}
	body, err := req.GetBody()
	if err != nil {
		clone.Body = nil
		return clone, false
	}
	clone.Body = body
	return clone, true
}

// Wrap returns d wrapped in a tracing transport. A nil d wraps
// http.DefaultTransport.
func Wrap(d http.RoundTripper, logger *slog.Logger) http.RoundTripper {
	if d == nil {
		d = http.DefaultTransport
	}
	if logger == nil {
		return d
	}
	return &traceTransport{delegate: d, logger: logger}
}
