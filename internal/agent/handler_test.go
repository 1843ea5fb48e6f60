package agent

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/classpad-app/classpad-sync/internal/auth"
	"github.com/classpad-app/classpad-sync/internal/classify"
	"github.com/classpad-app/classpad-sync/internal/config"
	"github.com/classpad-app/classpad-sync/internal/models"
	"github.com/classpad-app/classpad-sync/internal/store"
)

type stubIdentity struct {
	identity auth.Identity
	err      error
}

func (s stubIdentity) Identity() (auth.Identity, error) {
	return s.identity, s.err
}

func newWarmedStore(t *testing.T, identity store.IdentitySource, tasks []models.Task) *store.TaskStore {
	t.Helper()

	taskStore := store.New(nil, identity, validator.New(validator.WithRequiredStructEnabled()), zerolog.Nop(), store.Options{})
	taskStore.Warm(tasks)
	return taskStore
}

func decodeStatus(t *testing.T, resp *http.Response) StatusResponse {
	t.Helper()

	var envelope struct {
		Success bool            `json:"success"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	require.True(t, envelope.Success)

	var status StatusResponse
	require.NoError(t, json.Unmarshal(envelope.Data, &status))
	return status
}

func TestStatusClassifiesCachedTasks(t *testing.T) {
	now := time.Date(2024, 1, 8, 12, 0, 0, 0, time.UTC)
	overdue := time.Date(2024, 1, 7, 23, 59, 0, 0, time.UTC)
	dueSoon := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)

	submitted := now.Add(-24 * time.Hour)
	identity := stubIdentity{identity: auth.Identity{UserID: "s-1", Role: "student"}}

	tasks := []models.Task{
		{ID: "task-done", Title: "Done", Deadline: &overdue, Submissions: []models.Submission{{
			Student:     models.EntityRef{ID: "s-1"},
			Status:      models.SubmissionSubmitted,
			SubmittedAt: &submitted,
		}}},
		{ID: "task-late", Title: "Late", Deadline: &overdue},
		{ID: "task-soon", Title: "Soon", Deadline: &dueSoon},
		{ID: "task-open", Title: "Open"},
	}

	handler := NewStatusHandler(newWarmedStore(t, identity, tasks), identity, classify.DefaultLookahead, zerolog.Nop())
	handler.now = func() time.Time { return now }

	app := fiber.New()
	handler.Register(app)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/status", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	status := decodeStatus(t, resp)
	require.Len(t, status.Tasks, 4)

	states := map[string]classify.Status{}
	for _, view := range status.Tasks {
		states[view.TaskID] = view.State
	}
	require.Equal(t, classify.StatusCompleted, states["task-done"])
	require.Equal(t, classify.StatusOverdue, states["task-late"])
	require.Equal(t, classify.StatusDueSoon, states["task-soon"])
	require.Equal(t, classify.StatusPending, states["task-open"])

	require.Equal(t, StatusSummary{Total: 4, Completed: 1, Overdue: 1, DueSoon: 1, Pending: 1}, status.Summary)
}

func TestStatusPreservesCacheOrder(t *testing.T) {
	identity := stubIdentity{identity: auth.Identity{UserID: "s-1", Role: "student"}}
	tasks := []models.Task{{ID: "b", Title: "Second listed first"}, {ID: "a", Title: "First listed second"}}

	handler := NewStatusHandler(newWarmedStore(t, identity, tasks), identity, classify.DefaultLookahead, zerolog.Nop())

	app := fiber.New()
	handler.Register(app)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/status", nil))
	require.NoError(t, err)

	status := decodeStatus(t, resp)
	require.Equal(t, "b", status.Tasks[0].TaskID)
	require.Equal(t, "a", status.Tasks[1].TaskID)
}

func TestStatusWithoutCredential(t *testing.T) {
	identity := stubIdentity{err: auth.ErrNoCredential}

	handler := NewStatusHandler(newWarmedStore(t, identity, nil), identity, classify.DefaultLookahead, zerolog.Nop())

	app := fiber.New()
	handler.Register(app)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/status", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHealthCheck(t *testing.T) {
	cfg := config.Config{AppName: "classpad-sync", AppEnv: "test"}

	app := fiber.New()
	app.Get("/health", HealthCheck(cfg))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var envelope struct {
		Success bool           `json:"success"`
		Data    HealthResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	require.True(t, envelope.Success)
	require.Equal(t, "classpad-sync", envelope.Data.Service)
	require.Equal(t, "ok", envelope.Data.Status)
}
