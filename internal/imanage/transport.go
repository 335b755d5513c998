package imanage

import (
	"crypto/tls"
	"net/http"
)

// NewTransport returns the base transport for provider calls. Certificates
// are verified unless insecureSkipVerify is set.
func NewTransport(insecureSkipVerify bool) http.RoundTripper {
	t := http.DefaultTransport.(*http.Transport).Clone()
	if insecureSkipVerify {
		t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return t
}
