package agent

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/classpad-app/classpad-sync/internal/classify"
	"github.com/classpad-app/classpad-sync/internal/config"
	"github.com/classpad-app/classpad-sync/internal/store"
)

// HealthResponse is the payload returned by the health endpoint.
type HealthResponse struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	Service     string    `json:"service"`
	Environment string    `json:"environment"`
}

// HealthCheck returns a handler that reports agent health information.
func HealthCheck(cfg config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		payload := HealthResponse{
			Status:      "ok",
			Timestamp:   time.Now().UTC(),
			Service:     cfg.AppName,
			Environment: cfg.AppEnv,
		}

		return sendSuccess(c, "agent healthy", payload)
	}
}

// TaskStatusView is one row of the classified task snapshot.
type TaskStatusView struct {
	TaskID   string          `json:"taskId"`
	Title    string          `json:"title"`
	Deadline *time.Time      `json:"deadline"`
	State    classify.Status `json:"state"`
}

// StatusSummary aggregates the snapshot for dashboard-style consumers.
type StatusSummary struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Drafts    int `json:"drafts"`
	Overdue   int `json:"overdue"`
	DueSoon   int `json:"dueSoon"`
	Pending   int `json:"pending"`
}

// StatusResponse is the payload returned by the status endpoint.
type StatusResponse struct {
	Summary StatusSummary    `json:"summary"`
	Tasks   []TaskStatusView `json:"tasks"`
}

// StatusHandler serves the classified snapshot of the cached task list for
// the agent's authenticated user.
type StatusHandler struct {
	store     *store.TaskStore
	identity  store.IdentitySource
	lookahead time.Duration
	logger    zerolog.Logger
	now       func() time.Time
}

// NewStatusHandler constructs a StatusHandler.
func NewStatusHandler(taskStore *store.TaskStore, identity store.IdentitySource, lookahead time.Duration, logger zerolog.Logger) *StatusHandler {
	return &StatusHandler{
		store:     taskStore,
		identity:  identity,
		lookahead: lookahead,
		logger:    logger.With().Str("component", "status_handler").Logger(),
		now:       time.Now,
	}
}

// Register mounts the status route on the given router group.
func (h *StatusHandler) Register(router fiber.Router) {
	router.Get("/status", h.Status)
}

// Status renders every cached task with its derived state.
func (h *StatusHandler) Status(c *fiber.Ctx) error {
	identity, err := h.identity.Identity()
	if err != nil {
		return sendError(c, fiber.StatusUnauthorized, "no credential configured")
	}

	now := h.now()
	tasks := h.store.Tasks()

	response := StatusResponse{Tasks: make([]TaskStatusView, 0, len(tasks))}
	for _, task := range tasks {
		state := classify.Classify(task, identity.UserID, now, h.lookahead)
		response.Tasks = append(response.Tasks, TaskStatusView{
			TaskID:   task.ID,
			Title:    task.Title,
			Deadline: task.Deadline,
			State:    state,
		})
		tally(&response.Summary, state)
	}

	return sendSuccess(c, "task status", response)
}

func tally(summary *StatusSummary, state classify.Status) {
	summary.Total++
	switch state {
	case classify.StatusCompleted:
		summary.Completed++
	case classify.StatusDraft:
		summary.Drafts++
	case classify.StatusOverdue:
		summary.Overdue++
	case classify.StatusDueSoon:
		summary.DueSoon++
	default:
		summary.Pending++
	}
}
