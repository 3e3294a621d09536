package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/personal-calendar/internal/config"
	httptransport "github.com/example/personal-calendar/internal/http"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func testConfig(t *testing.T, store string) config.Config {
	t.Helper()

	cfg := config.Defaults()
	cfg.Store = store
	cfg.SQLiteDSN = filepath.Join(t.TempDir(), "calendar.db")
	cfg.IdentitySecret = testSecret
	cfg.Provider.Kind = config.ProviderNone
	cfg.Mail.From = "calendar@example.com"
	cfg.Mail.QueueSize = 4
	cfg.Mail.Workers = 1
	return cfg
}

func newTestRuntime(t *testing.T, store string) *runtime {
	t.Helper()

	rt, err := newRuntime(testConfig(t, store), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	require.NoError(t, rt.store.Migrate(context.Background()))
	rt.dispatcher.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		assert.NoError(t, rt.Close(ctx))
	})
	return rt
}

type apiClient struct {
	t       *testing.T
	rt      *runtime
	handler http.Handler
	userID  string
	email   string
}

func (c apiClient) do(method, target string, body any) *httptest.ResponseRecorder {
	c.t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(c.t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userID != "" {
		req.Header.Set(httptransport.HeaderUserID, c.userID)
		req.Header.Set(httptransport.HeaderUserEmail, c.email)
		req.Header.Set(httptransport.HeaderSignature, c.rt.keyring.SignIdentity(c.userID, c.email, ""))
	}
	recorder := httptest.NewRecorder()
	c.handler.ServeHTTP(recorder, req)
	return recorder
}

func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var body map[string]any
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body), recorder.Body.String())
	return body
}

func TestRuntime_EventAndInvitationFlow(t *testing.T) {
	for _, store := range []string{config.StoreMemory, config.StoreSQLite} {
		t.Run(store, func(t *testing.T) {
			rt := newTestRuntime(t, store)
			handler := rt.handler()
			owner := apiClient{t: t, rt: rt, handler: handler, userID: "owner-1", email: "owner@example.com"}

			created := owner.do(http.MethodPost, "/events", map[string]any{
				"title":    "Planning",
				"category": "work",
				"start":    "2030-05-01T09:00:00Z",
				"end":      "2030-05-01T10:00:00Z",
			})
			require.Equal(t, http.StatusCreated, created.Code, created.Body.String())
			event := decodeBody(t, created)["event"].(map[string]any)
			eventID := event["id"].(string)
			assert.Equal(t, "owner-1", event["owner_id"])

			fetched := owner.do(http.MethodGet, "/events/"+eventID, nil)
			require.Equal(t, http.StatusOK, fetched.Code, fetched.Body.String())
			assert.Equal(t, "Planning", decodeBody(t, fetched)["event"].(map[string]any)["title"])

			stranger := apiClient{t: t, rt: rt, handler: handler, userID: "stranger", email: "stranger@example.com"}
			assert.Equal(t, http.StatusNotFound, stranger.do(http.MethodGet, "/events/"+eventID, nil).Code)

			added := owner.do(http.MethodPost, "/events/"+eventID+"/attendees", map[string]any{
				"email": "guest@example.com",
			})
			require.Equal(t, http.StatusCreated, added.Code, added.Body.String())
			attendee := decodeBody(t, added)["attendee"].(map[string]any)
			assert.Equal(t, "pending", attendee["status"])

			duplicate := owner.do(http.MethodPost, "/events/"+eventID+"/attendees", map[string]any{
				"email": "GUEST@example.com",
			})
			assert.Equal(t, http.StatusConflict, duplicate.Code, duplicate.Body.String())

			query := url.Values{}
			query.Set("event_id", eventID)
			query.Set("email", "guest@example.com")
			query.Set("token", rt.keyring.SignInvitation(eventID, "guest@example.com"))
			query.Set("status", "accepted")
			public := apiClient{t: t, rt: rt, handler: handler}
			responded := public.do(http.MethodGet, "/invitations/respond?"+query.Encode(), nil)
			require.Equal(t, http.StatusOK, responded.Code, responded.Body.String())
			assert.Equal(t, "accepted", decodeBody(t, responded)["attendee"].(map[string]any)["status"])

			activities := owner.do(http.MethodGet, "/activities?limit=10", nil)
			require.Equal(t, http.StatusOK, activities.Code, activities.Body.String())
			assert.NotEmpty(t, decodeBody(t, activities)["activities"])

			deleted := owner.do(http.MethodDelete, "/events/"+eventID, nil)
			require.Equal(t, http.StatusOK, deleted.Code, deleted.Body.String())
			assert.Equal(t, true, decodeBody(t, deleted)["deleted"])
			assert.Equal(t, http.StatusNotFound, owner.do(http.MethodGet, "/events/"+eventID, nil).Code)
		})
	}
}

func TestRuntime_RejectsUnsignedRequests(t *testing.T) {
	rt := newTestRuntime(t, config.StoreMemory)
	handler := rt.handler()

	anonymous := apiClient{t: t, rt: rt, handler: handler}
	assert.Equal(t, http.StatusUnauthorized, anonymous.do(http.MethodGet, "/events", nil).Code)

	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	req.Header.Set(httptransport.HeaderUserID, "owner-1")
	req.Header.Set(httptransport.HeaderSignature, rt.keyring.SignIdentity("someone-else", "", ""))
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestRuntime_SyncWithoutProvider(t *testing.T) {
	rt := newTestRuntime(t, config.StoreMemory)
	owner := apiClient{t: t, rt: rt, handler: rt.handler(), userID: "owner-1", email: "owner@example.com"}

	recorder := owner.do(http.MethodPost, "/sync", nil)
	assert.Equal(t, http.StatusUnauthorized, recorder.Code, recorder.Body.String())
	assert.Equal(t, "PROVIDER_CREDENTIAL_MISSING", decodeBody(t, recorder)["error_code"])
}

func TestRuntime_HealthAndMetrics(t *testing.T) {
	rt := newTestRuntime(t, config.StoreSQLite)
	handler := rt.handler()
	public := apiClient{t: t, rt: rt, handler: handler}

	health := public.do(http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, health.Code)
	assert.Equal(t, "ok", decodeBody(t, health)["status"])

	metrics := public.do(http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, metrics.Code)
	assert.Contains(t, metrics.Body.String(), "calendar_http_requests_total")
	assert.Contains(t, metrics.Body.String(), `route="/healthz"`)
}

func TestNewRuntime_RejectsShortSecret(t *testing.T) {
	cfg := testConfig(t, config.StoreMemory)
	cfg.IdentitySecret = "short"

	_, err := newRuntime(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.Error(t, err)
}

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	app := newApp()
	app.Writer = &stdout
	app.ErrWriter = &stderr
	full := append([]string{"calendard", "--env-file", filepath.Join(t.TempDir(), "missing.env")}, args...)
	err := app.RunContext(context.Background(), full)
	return stdout.String(), stderr.String(), err
}

func setCLIEnv(t *testing.T, store string) {
	t.Helper()

	t.Setenv("CALENDAR_STORE", store)
	t.Setenv("CALENDAR_SQLITE_DSN", filepath.Join(t.TempDir(), "cli.db"))
	t.Setenv("CALENDAR_IDENTITY_SECRET", testSecret)
	t.Setenv("CALENDAR_PROVIDER", config.ProviderNone)
	t.Setenv("CALENDAR_MAIL_FROM", "calendar@example.com")
	t.Setenv("CALENDAR_LOG_FORMAT", "text")
}

func TestMigrateCommand(t *testing.T) {
	setCLIEnv(t, config.StoreSQLite)

	_, stderr, err := runCLI(t, "migrate")
	require.NoError(t, err)
	assert.Contains(t, stderr, "migrations applied")
	assert.Contains(t, stderr, "store=sqlite")
}

func TestMigrateCommand_InvalidConfiguration(t *testing.T) {
	setCLIEnv(t, config.StoreSQLite)
	t.Setenv("CALENDAR_IDENTITY_SECRET", "")

	_, _, err := runCLI(t, "migrate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CALENDAR_IDENTITY_SECRET")
}

func TestSyncCommand_RequiresProvider(t *testing.T) {
	setCLIEnv(t, config.StoreMemory)

	stdout, _, err := runCLI(t, "sync", "--user-id", "owner-1")
	require.Error(t, err)
	assert.True(t, strings.TrimSpace(stdout) == "", stdout)
}
