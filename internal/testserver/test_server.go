// Package testserver runs the whole timeline stack against in-memory fakes
// of both providers.
package testserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rpggio/timeline/internal/domain/activity"
	"github.com/rpggio/timeline/internal/domain/session"
	"github.com/rpggio/timeline/internal/graph"
	"github.com/rpggio/timeline/internal/identity"
	"github.com/rpggio/timeline/internal/imanage"
	"github.com/rpggio/timeline/internal/mcp"
	"github.com/rpggio/timeline/internal/sqlite"
	"github.com/rpggio/timeline/internal/transport"
)

// AccessToken is the provider token the fake Graph accepts.
const AccessToken = "graph-token"

type TestServer struct {
	Server   *httptest.Server
	DB       *sqlite.DB
	Sessions *session.Service
	Graph    *FakeProvider
	IManage  *FakeProvider
}

func New(t *testing.T) *TestServer {
	t.Helper()

	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())

	sessions := session.NewService(sqlite.NewSessionRepository(db), nil)

	graphFake := NewFakeProvider(t)
	SeedGraph(graphFake)
	imanageFake := NewFakeProvider(t)
	SeedIManage(imanageFake)

	graphSvc := graph.NewService(nil)
	documents := imanage.NewService(imanage.Options{
		BaseURL:      imanageFake.URL(),
		ClientID:     "client",
		ClientSecret: "secret",
		Scope:        "admin",
		UserPassword: "pw",
	}, nil)
	timelineSvc := activity.NewService(documents, nil)
	clients := func(id *identity.Identity) *graph.Client {
		return graph.NewClient(id.AccessToken, graph.ClientOptions{
			BaseURL:     graphFake.URL() + "/v1.0",
			BetaBaseURL: graphFake.URL() + "/beta",
		})
	}

	mcpServer := mcp.NewServer(mcp.Config{
		Services: mcp.Services{
			Graph:     graphSvc,
			Timeline:  timelineSvc,
			Documents: documents,
			Sessions:  sessions,
			Clients:   clients,
		},
	})

	router := transport.NewServer(transport.Config{
		Services: transport.Services{
			Graph:     graphSvc,
			Timeline:  timelineSvc,
			Documents: documents,
			Clients:   clients,
			Sessions:  sessions,
		},
		Resolver: sessions,
		MCP:      mcp.NewHTTPHandler(mcpServer),
	})
	server := httptest.NewServer(router)

	t.Cleanup(func() {
		server.Close()
		_ = db.Close()
	})

	return &TestServer{
		Server:   server,
		DB:       db,
		Sessions: sessions,
		Graph:    graphFake,
		IManage:  imanageFake,
	}
}

// AddSession stores a session and returns its id and bearer key.
func (ts *TestServer) AddSession(t *testing.T, email, accessToken string) (string, string) {
	t.Helper()
	result, err := ts.Sessions.Create(context.Background(), session.CreateRequest{
		PreferredUsername: email,
		AccessToken:       accessToken,
	})
	require.NoError(t, err)
	return result.Session.ID, result.Key
}

type response struct {
	status int
	body   string
	header http.Header
}

// FakeProvider serves canned responses keyed by request path.
type FakeProvider struct {
	server    *httptest.Server
	mu        sync.Mutex
	responses map[string]response
	requests  []string
}

func NewFakeProvider(t *testing.T) *FakeProvider {
	t.Helper()
	f := &FakeProvider{responses: map[string]response{}}
	f.server = httptest.NewServer(f)
	t.Cleanup(f.server.Close)
	return f
}

func (f *FakeProvider) URL() string {
	return f.server.URL
}

// On sets the response for path. JSON bodies get a JSON content type.
func (f *FakeProvider) On(path string, status int, body string) {
	header := http.Header{}
	if strings.HasPrefix(strings.TrimSpace(body), "{") {
		header.Set("Content-Type", "application/json")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[path] = response{status: status, body: body, header: header}
}

// OnGraphError answers path with a provider error envelope.
func (f *FakeProvider) OnGraphError(path string, status int, code, message string) {
	body, _ := json.Marshal(map[string]any{"error": map[string]string{"code": code, "message": message}})
	f.On(path, status, string(body))
}

// Requests returns the paths requested so far.
func (f *FakeProvider) Requests() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

func (f *FakeProvider) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.EscapedPath()
	f.mu.Lock()
	f.requests = append(f.requests, path)
	resp, ok := f.responses[path]
	f.mu.Unlock()

	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	for k, v := range resp.header {
		w.Header()[k] = v
	}
	w.WriteHeader(resp.status)
	_, _ = w.Write([]byte(resp.body))
}

// UserPath is the escaped Graph path of a user resource under /v1.0.
func UserPath(email string, rest ...string) string {
	parts := append([]string{"/v1.0/users", url.PathEscape(email)}, rest...)
	return strings.Join(parts, "/")
}

// Seeded user and the dates of the seeded items.
const (
	UserEmail = "jane.doe@example.com"

	EventCreated    = "2024-03-04T10:00:00Z"
	InsightUsed     = "2024-03-02T08:00:00Z"
	FileCreated     = "2024-03-06T12:00:00Z"
	ReceivedCreated = "2024-03-05T09:30:00Z"
	SentCreated     = "2024-03-01T17:45:00Z"
	DocumentCreated = "2024-03-03T11:00:00Z"
)

// SeedGraph installs one item per collection for UserEmail.
func SeedGraph(f *FakeProvider) {
	f.On(UserPath(UserEmail), http.StatusOK, fmt.Sprintf(`{"displayName":"Jane Doe","mail":%q}`, UserEmail))
	f.On(UserPath(UserEmail, "photo", "$value"), http.StatusOK, "\xff\xd8\xff\xe0jpeg")
	f.On(UserPath(UserEmail, "events"), http.StatusOK,
		fmt.Sprintf(`{"value":[{"subject":"Planning","createdDateTime":%q}]}`, EventCreated))
	f.On(UserPath(UserEmail, "insights", "used"), http.StatusOK,
		fmt.Sprintf(`{"value":[{"lastUsed":{"lastAccessedDateTime":%q},"resourceVisualization":{"title":"Budget.xlsx"}}]}`, InsightUsed))
	f.On(UserPath(UserEmail, "drive", "recent"), http.StatusOK,
		fmt.Sprintf(`{"value":[{"name":"Notes.docx","createdDateTime":%q}]}`, FileCreated))
	f.On(UserPath(UserEmail, "mailFolders", "inbox", "messages"), http.StatusOK,
		fmt.Sprintf(`{"value":[{"subject":"Hello","createdDateTime":%q}]}`, ReceivedCreated))
	f.On(UserPath(UserEmail, "mailFolders", "sentitems", "messages"), http.StatusOK,
		fmt.Sprintf(`{"value":[{"subject":"Re: Hello","createdDateTime":%q}]}`, SentCreated))
}

// SeedIManage installs the three-step document listing for customer 7.
func SeedIManage(f *FakeProvider) {
	f.On("/auth/oauth2/token", http.StatusOK, `{"access_token":"dms-token","token_type":"bearer"}`)
	f.On("/api", http.StatusOK, `{"data":{"user":{"customer_id":7}}}`)
	f.On("/work/api/v2/customers/7/recent-documents", http.StatusOK,
		fmt.Sprintf(`{"data":{"results":[{"name":"Engagement letter","create_date":%q},{"name":"Scan","create_date":null}]}}`, DocumentCreated))
}
