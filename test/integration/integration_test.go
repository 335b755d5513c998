package integration_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rpggio/timeline/internal/domain/activity"
	"github.com/rpggio/timeline/internal/graph"
	"github.com/rpggio/timeline/internal/testserver"
	"github.com/rpggio/timeline/internal/transport"
)

func getView(t *testing.T, ts *testserver.TestServer, key, path string) (int, http.Header, transport.View) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, ts.Server.URL+path, nil)
	require.NoError(t, err)
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var view transport.View
	if resp.Header.Get("Content-Type") == "application/json" {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&view))
	}
	return resp.StatusCode, resp.Header, view
}

func TestIntegration_TimelineMergesBothProviders(t *testing.T) {
	ts := testserver.New(t)
	_, key := ts.AddSession(t, testserver.UserEmail, testserver.AccessToken)

	status, _, view := getView(t, ts, key, "/timeline")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, transport.TitleTimeline, view.Title)
	require.Equal(t, testserver.UserEmail, view.Email)

	var types []activity.Type
	for _, item := range view.Items {
		types = append(types, item.Type)
	}
	require.Equal(t, []activity.Type{
		activity.TypeRecentFile,
		activity.TypeReceivedEmail,
		activity.TypeCalendarEvent,
		activity.TypeDocument,
		activity.TypeInsightFile,
		activity.TypeSentEmail,
		activity.TypeDocument,
	}, types)

	first, err := time.Parse(time.RFC3339, testserver.FileCreated)
	require.NoError(t, err)
	require.True(t, first.Equal(*view.Items[0].CreatedAt))
	require.Equal(t, "Scan", view.Items[6].Name)
	require.Nil(t, view.Items[6].CreatedAt)
}

func TestIntegration_HomeShowsProfileAndPhoto(t *testing.T) {
	ts := testserver.New(t)
	_, key := ts.AddSession(t, testserver.UserEmail, testserver.AccessToken)

	status, _, view := getView(t, ts, key, "/")
	require.Equal(t, http.StatusOK, status)
	require.Contains(t, view.Response, `"displayName": "Jane Doe"`)
	require.Equal(t, "data:image/jpeg;base64,"+base64.StdEncoding.EncodeToString([]byte("\xff\xd8\xff\xe0jpeg")), view.Picture)
}

func TestIntegration_PhotoMissingUsesPlaceholder(t *testing.T) {
	ts := testserver.New(t)
	_, key := ts.AddSession(t, testserver.UserEmail, testserver.AccessToken)
	ts.Graph.OnGraphError(testserver.UserPath(testserver.UserEmail, "photo", "$value"), http.StatusNotFound, "ErrorItemNotFound", "no photo")

	_, _, view := getView(t, ts, key, "/")
	require.Equal(t, graph.PlaceholderPhoto(), view.Picture)
}

func TestIntegration_EmailParameterOnCalendarOnly(t *testing.T) {
	ts := testserver.New(t)
	_, key := ts.AddSession(t, testserver.UserEmail, testserver.AccessToken)

	_, _, view := getView(t, ts, key, "/calendar?email=ghost@example.com")
	require.Equal(t, "ghost@example.com", view.Email)
	require.Contains(t, ts.Graph.Requests(), testserver.UserPath("ghost@example.com", "events"))

	_, _, view = getView(t, ts, key, "/files?email=ghost@example.com")
	require.Equal(t, testserver.UserEmail, view.Email)
	require.Contains(t, view.Response, "Notes.docx")
}

func TestIntegration_NotFoundIsNormalized(t *testing.T) {
	ts := testserver.New(t)
	_, key := ts.AddSession(t, testserver.UserEmail, testserver.AccessToken)
	ts.Graph.OnGraphError(testserver.UserPath("ghost@example.com", "events"), http.StatusNotFound, "Request_ResourceNotFound", "gone")

	status, _, view := getView(t, ts, key, "/calendar?email=ghost@example.com")
	require.Equal(t, http.StatusOK, status)
	require.JSONEq(t, `{"message": "User 'ghost@example.com' was not found."}`, view.Response)
}

func TestIntegration_ChallengeRevokesSession(t *testing.T) {
	ts := testserver.New(t)
	id, key := ts.AddSession(t, testserver.UserEmail, testserver.AccessToken)
	ts.Graph.OnGraphError(testserver.UserPath(testserver.UserEmail, "mailFolders", "inbox", "messages"),
		http.StatusUnauthorized, "TokenNotFound", "token expired")

	status, header, view := getView(t, ts, key, "/mail/received")
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, "Bearer", header.Get("WWW-Authenticate"))
	require.JSONEq(t, `{"message": "token expired"}`, view.Response)

	stored, err := ts.Sessions.List(context.Background())
	require.NoError(t, err)
	require.Len(t, stored, 1)
	require.Equal(t, id, stored[0].ID)
	require.True(t, stored[0].Revoked())

	status, _, _ = getView(t, ts, key, "/timeline")
	require.Equal(t, http.StatusUnauthorized, status)
}

func TestIntegration_DocumentsView(t *testing.T) {
	ts := testserver.New(t)
	_, key := ts.AddSession(t, testserver.UserEmail, testserver.AccessToken)

	status, _, view := getView(t, ts, key, "/documents")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, transport.TitleDocuments, view.Title)
	require.Contains(t, view.Response, "Engagement letter")
	require.Equal(t, []string{
		"/auth/oauth2/token",
		"/api",
		"/work/api/v2/customers/7/recent-documents",
	}, ts.IManage.Requests())
}

func TestIntegration_SecondaryFailureAbortsTimeline(t *testing.T) {
	ts := testserver.New(t)
	_, key := ts.AddSession(t, testserver.UserEmail, testserver.AccessToken)
	ts.IManage.On("/api", http.StatusInternalServerError, "")

	status, _, _ := getView(t, ts, key, "/timeline")
	require.Equal(t, http.StatusInternalServerError, status)
	require.Equal(t, []string{"/auth/oauth2/token", "/api"}, ts.IManage.Requests())

	status, _, _ = getView(t, ts, key, "/documents")
	require.Equal(t, http.StatusInternalServerError, status)
}

func TestIntegration_AnonymousCallsNoProvider(t *testing.T) {
	ts := testserver.New(t)

	for _, path := range []string{"/", "/timeline", "/calendar", "/documents"} {
		status, _, view := getView(t, ts, "", path)
		require.Equal(t, http.StatusOK, status, path)
		require.NotEmpty(t, view.Title)
		require.Empty(t, view.Response)
		require.Empty(t, view.Items)
	}
	require.Empty(t, ts.Graph.Requests())
	require.Empty(t, ts.IManage.Requests())
}
