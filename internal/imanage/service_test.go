package imanage

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpggio/timeline/internal/domain/activity"
	"github.com/rpggio/timeline/internal/identity"
	"github.com/rpggio/timeline/internal/tracehttp"
)

const documentsJSON = `{"data":{"results":[
  {"name":"Engagement letter","create_date":"2024-03-01T09:00:00Z"},
  {"name":"Draft memo","create_date":"2024-03-05T16:30:00Z"},
  {"name":"Untitled","create_date":null}
]}}`

type fakeDMS struct {
	mu       sync.Mutex
	paths    []string
	form     map[string]string
	status   map[string]int
	docs     string
	customer string
}

func newFakeDMS() *fakeDMS {
	return &fakeDMS{status: map[string]int{}, docs: documentsJSON, customer: "42"}
}

func (f *fakeDMS) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.paths = append(f.paths, r.URL.Path)
	status := f.status[r.URL.Path]
	f.mu.Unlock()

	if status != 0 {
		w.WriteHeader(status)
		return
	}

	switch r.URL.Path {
	case "/auth/oauth2/token":
		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.form = map[string]string{}
		for k := range r.PostForm {
			f.form[k] = r.PostForm.Get(k)
		}
		f.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "dms-token", "token_type": "bearer"})
	case "/api":
		if r.Header.Get("X-Auth-Token") != "dms-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"data":{"user":{"customer_id":"` + f.customer + `"}}}`))
	case "/work/api/v2/customers/" + f.customer + "/recent-documents":
		if r.Header.Get("X-Auth-Token") != "dms-token" || r.URL.Query().Get("activity") != "all" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(f.docs))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeDMS) requested() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.paths...)
}

func newTestService(t *testing.T, fake *fakeDMS) *Service {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	return NewService(Options{
		BaseURL:      srv.URL,
		ClientID:     "client",
		ClientSecret: "secret",
		Scope:        "admin",
		UserPassword: "pw",
	}, nil)
}

func TestRecentDocuments_ThreeSteps(t *testing.T) {
	fake := newFakeDMS()
	svc := newTestService(t, fake)

	raw, err := svc.RecentDocuments(context.Background(), identity.SomeEmail("jane.doe@example.com"))
	require.NoError(t, err)
	require.JSONEq(t, documentsJSON, raw)

	require.Equal(t, []string{
		"/auth/oauth2/token",
		"/api",
		"/work/api/v2/customers/42/recent-documents",
	}, fake.requested())
	require.Equal(t, "jane.doe", fake.form["username"])
	require.Equal(t, "pw", fake.form["password"])
	require.Equal(t, "password", fake.form["grant_type"])
	require.Equal(t, "client", fake.form["client_id"])
	require.Equal(t, "secret", fake.form["client_secret"])
	require.Equal(t, "admin", fake.form["scope"])
}

func TestRecentDocuments_NewSessionPerCall(t *testing.T) {
	fake := newFakeDMS()
	svc := newTestService(t, fake)

	for i := 0; i < 2; i++ {
		_, err := svc.RecentDocuments(context.Background(), identity.SomeEmail("a@b.c"))
		require.NoError(t, err)
	}
	tokens := 0
	for _, p := range fake.requested() {
		if p == "/auth/oauth2/token" {
			tokens++
		}
	}
	require.Equal(t, 2, tokens)
}

func TestRecentDocuments_StepFailures(t *testing.T) {
	tests := []struct {
		name      string
		failPath  string
		wantStep  Step
		wantCalls int
	}{
		{name: "token", failPath: "/auth/oauth2/token", wantStep: StepToken, wantCalls: 1},
		{name: "user info", failPath: "/api", wantStep: StepUserInfo, wantCalls: 2},
		{name: "documents", failPath: "/work/api/v2/customers/42/recent-documents", wantStep: StepDocuments, wantCalls: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newFakeDMS()
			fake.status[tt.failPath] = http.StatusForbidden
			svc := newTestService(t, fake)

			_, err := svc.RecentDocuments(context.Background(), identity.SomeEmail("a@b.c"))
			var serr *StatusError
			require.ErrorAs(t, err, &serr)
			require.Equal(t, tt.wantStep, serr.Step)
			require.Equal(t, http.StatusForbidden, serr.StatusCode)
			require.Len(t, fake.requested(), tt.wantCalls)
		})
	}
}

func TestRecentDocuments_EmailValidation(t *testing.T) {
	fake := newFakeDMS()
	svc := newTestService(t, fake)

	_, err := svc.RecentDocuments(context.Background(), identity.NoEmail)
	require.ErrorIs(t, err, ErrMissingEmail)

	_, err = svc.RecentDocuments(context.Background(), identity.SomeEmail("no-at-sign"))
	require.ErrorIs(t, err, ErrInvalidEmail)

	require.Empty(t, fake.requested())
}

func TestRecentDocuments_NotConfigured(t *testing.T) {
	svc := NewService(Options{}, nil)
	_, err := svc.RecentDocuments(context.Background(), identity.SomeEmail("a@b.c"))
	require.ErrorIs(t, err, ErrNotConfigured)
}

func TestRecentDocuments_GrantType(t *testing.T) {
	fake := newFakeDMS()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	opts := Options{BaseURL: srv.URL, ClientID: "client", UserPassword: "pw"}

	opts.GrantType = "client_credentials"
	_, err := NewService(opts, nil).RecentDocuments(context.Background(), identity.SomeEmail("jane@example.com"))
	require.ErrorIs(t, err, ErrUnsupportedGrant)
	require.Empty(t, fake.requested())

	opts.GrantType = GrantPassword
	_, err = NewService(opts, nil).RecentDocuments(context.Background(), identity.SomeEmail("jane@example.com"))
	require.NoError(t, err)
	require.Equal(t, GrantPassword, fake.form["grant_type"])
}

func TestRecentDocumentItems(t *testing.T) {
	fake := newFakeDMS()
	svc := newTestService(t, fake)

	items, err := svc.RecentDocumentItems(context.Background(), identity.SomeEmail("a@b.c"))
	require.NoError(t, err)
	require.Len(t, items, 3)

	for _, item := range items {
		assert.Equal(t, activity.TypeDocument, item.Type)
	}
	require.Equal(t, "Engagement letter", items[0].Name)
	require.Equal(t, time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC), items[0].CreatedAt.UTC())
	require.Equal(t, "Draft memo", items[1].Name)
	require.Nil(t, items[2].CreatedAt)
}

func TestRecentDocumentItems_Malformed(t *testing.T) {
	tests := []struct {
		name string
		docs string
	}{
		{name: "invalid json", docs: `{"data":`},
		{name: "no results", docs: `{"data":{}}`},
		{name: "bad date", docs: `{"data":{"results":[{"name":"x","create_date":"yesterday"}]}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newFakeDMS()
			fake.docs = tt.docs
			svc := newTestService(t, fake)

			_, err := svc.RecentDocumentItems(context.Background(), identity.SomeEmail("a@b.c"))
			require.Error(t, err)
		})
	}
}

func TestTLSVerification(t *testing.T) {
	fake := newFakeDMS()
	srv := httptest.NewTLSServer(fake)
	t.Cleanup(srv.Close)

	opts := Options{BaseURL: srv.URL, ClientID: "client", UserPassword: "pw"}

	strict := NewService(opts, nil)
	_, err := strict.RecentDocuments(context.Background(), identity.SomeEmail("a@b.c"))
	require.Error(t, err)
	require.Empty(t, fake.requested())

	opts.Transport = NewTransport(true)
	insecure := NewService(opts, nil)
	_, err = insecure.RecentDocuments(context.Background(), identity.SomeEmail("a@b.c"))
	require.NoError(t, err)
}

func TestRecentDocuments_TracingHidesCredentials(t *testing.T) {
	fake := newFakeDMS()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	svc := NewService(Options{
		BaseURL:      srv.URL,
		ClientID:     "client",
		ClientSecret: "client-secret-value",
		Scope:        "admin",
		UserPassword: "user-password-value",
		Transport:    tracehttp.Wrap(NewTransport(false), logger),
	}, nil)

	_, err := svc.RecentDocuments(context.Background(), identity.SomeEmail("jane.doe@example.com"))
	require.NoError(t, err)
	require.Equal(t, "user-password-value", fake.form["password"])

	out := logs.String()
	require.Contains(t, out, "/auth/oauth2/token")
	require.Contains(t, out, "recent-documents")
	require.NotContains(t, out, "user-password-value")
	require.NotContains(t, out, "client-secret-value")
	require.NotContains(t, out, "dms-token")
}
