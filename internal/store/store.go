// Package store maintains the authoritative client-side cache of tasks and
// their submissions. All mutation flows through store operations backed by
// server round-trips; cached objects are never mutated from outside.
package store

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"sync"

	"github.com/classpad-app/classpad-sync/internal/api"
	"github.com/classpad-app/classpad-sync/internal/auth"
	"github.com/classpad-app/classpad-sync/internal/models"
	"github.com/classpad-app/classpad-sync/internal/observability"
)

// DefaultWordLimit is the soft cap on submission content, counted in words.
// A policy affordance, not a storage constraint; the server stays the final
// authority.
const DefaultWordLimit = 500

// Backend is the slice of the REST API the store consumes. *api.Client
// satisfies it; tests substitute in-memory fakes.
type Backend interface {
	ListTasks(ctx context.Context, classroomID string) ([]models.Task, error)
	GetTask(ctx context.Context, taskID string) (models.Task, error)
	MySubmission(ctx context.Context, taskID string) (api.MySubmissionResult, error)
	Submit(ctx context.Context, taskID string, payload api.SubmitRequest) (models.Task, error)
	DiscardDraft(ctx context.Context, taskID string) error
	CreateTask(ctx context.Context, form api.TaskForm) (models.Task, error)
	UpdateTask(ctx context.Context, taskID string, form api.TaskForm) (models.Task, error)
	DeleteTask(ctx context.Context, taskID string) error
	SetRemarks(ctx context.Context, taskID, studentID, remarks string) (models.Task, error)
	Interactions(ctx context.Context, taskID, studentID string) (api.InteractionThread, error)
	PostInteraction(ctx context.Context, taskID, message string) (api.InteractionThread, error)
	ReplyInteraction(ctx context.Context, taskID, studentID, message string) (api.InteractionThread, error)
	GroupInteractions(ctx context.Context, taskID string) ([]models.GroupMessage, error)
	PostGroupMessage(ctx context.Context, taskID, message string, files []api.FileUpload) (models.GroupMessage, error)
}

var _ Backend = (*api.Client)(nil)

// IdentitySource reports who the store is acting as.
type IdentitySource interface {
	Identity() (auth.Identity, error)
}

// Snapshotter persists the cached task list so a restarted process can answer
// from the last known state until the first refresh lands.
type Snapshotter interface {
	Save(ctx context.Context, tasks []models.Task) error
}

// Options carries the optional collaborators of a TaskStore.
type Options struct {
	WordLimit   int
	NATS        *nats.Conn
	NATSSubject string
	Snapshots   Snapshotter
}

// TaskStore is the single writer over the cached task list.
type TaskStore struct {
	backend   Backend
	identity  IdentitySource
	validator *validator.Validate
	logger    zerolog.Logger
	tracer    trace.Tracer
	sanitizer *bluemonday.Policy
	broker    *taskEventBroker
	nats      *nats.Conn
	subject   string
	snapshots Snapshotter
	wordLimit int
	now       func() time.Time

	mu    sync.RWMutex
	tasks []models.Task
	// seq orders reconciliations so a slow bulk load cannot clobber a
	// per-task submission refresh that applied after the load started.
	seq           uint64
	submissionSeq map[string]uint64

	inflightMu sync.Mutex
	inflight   map[string]struct{}
}

// New constructs a TaskStore.
func New(backend Backend, identity IdentitySource, validate *validator.Validate, logger zerolog.Logger, opts Options) *TaskStore {
	limit := opts.WordLimit
	if limit <= 0 {
		limit = DefaultWordLimit
	}

	return &TaskStore{
		backend:       backend,
		identity:      identity,
		validator:     validate,
		logger:        logger.With().Str("component", "task_store").Logger(),
		tracer:        otel.Tracer("github.com/classpad-app/classpad-sync/internal/store"),
		sanitizer:     bluemonday.StrictPolicy(),
		broker:        newTaskEventBroker(),
		nats:          opts.NATS,
		subject:       opts.NATSSubject,
		snapshots:     opts.Snapshots,
		wordLimit:     limit,
		now:           time.Now,
		submissionSeq: make(map[string]uint64),
		inflight:      make(map[string]struct{}),
	}
}

// Warm seeds the cache from a previously persisted snapshot. Intended for
// startup only, before any polling begins.
func (s *TaskStore) Warm(tasks []models.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append([]models.Task(nil), tasks...)
}

// Tasks returns a copy of the cached task list. Callers must treat the
// contained tasks as read-only.
func (s *TaskStore) Tasks() []models.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Task(nil), s.tasks...)
}

// Task returns one cached task by id.
func (s *TaskStore) Task(taskID string) (models.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, task := range s.tasks {
		if task.ID == taskID {
			return task, true
		}
	}
	return models.Task{}, false
}

// LoadTasks replaces the whole cached list with the server's response for the
// given scope. The server owns list membership; this is always a full
// replace, never a merge, except that submissions refreshed after this load
// started are carried over.
func (s *TaskStore) LoadTasks(ctx context.Context, classroomID string) error {
	startedAt := s.nextSeq()

	tasks, err := s.backend.ListTasks(ctx, classroomID)
	observability.ObserveSync(opLoadTasks, err)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range tasks {
		if syncedAt, ok := s.submissionSeq[tasks[i].ID]; ok && syncedAt > startedAt {
			if local, idx := s.findTaskLocked(tasks[i].ID); idx >= 0 {
				tasks[i].Submissions = local.Submissions
			}
		}
	}

	s.tasks = tasks
	s.logger.Debug().Int("count", len(tasks)).Str("classroom", classroomID).Msg("task list refreshed")
	return nil
}

// LoadTaskByID fetches one task and upserts it into the cache. Used when a
// task is referenced before the bulk list has loaded.
func (s *TaskStore) LoadTaskByID(ctx context.Context, taskID string) (models.Task, error) {
	task, err := s.backend.GetTask(ctx, taskID)
	observability.ObserveSync(opLoadTask, err)
	if err != nil {
		return models.Task{}, err
	}

	s.mu.Lock()
	s.upsertTaskLocked(task)
	s.mu.Unlock()

	return task, nil
}

// LoadMySubmission refreshes the caller's submission state for one task and
// reconciles it into that task's submissions. Idempotent and safe to call
// repeatedly; collaborators invoke it on focus, visibility change and on a
// timer. A server-side "no submission" removes any lingering local entry.
func (s *TaskStore) LoadMySubmission(ctx context.Context, taskID string) error {
	result, err := s.backend.MySubmission(ctx, taskID)
	observability.ObserveSync(opLoadSubmission, err)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	task, idx := s.findTaskLocked(taskID)
	if idx < 0 {
		return ErrTaskNotFound
	}

	if result.HasSubmission && result.Submission != nil {
		submission := *result.Submission
		if submission.Student.ID == "" {
			submission.Student = models.EntityRef{ID: result.UserID}
		}
		task.Submissions = replaceByStudent(task.Submissions, submission)
	} else {
		task.Submissions = removeByStudent(task.Submissions, result.UserID)
	}

	s.tasks[idx] = task
	s.submissionSeq[taskID] = s.seqLocked()
	return nil
}

func (s *TaskStore) nextSeq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return s.seq
}

func (s *TaskStore) findTaskLocked(taskID string) (models.Task, int) {
	for i, task := range s.tasks {
		if task.ID == taskID {
			return task, i
		}
	}
	return models.Task{}, -1
}

func (s *TaskStore) upsertTaskLocked(task models.Task) {
	if _, idx := s.findTaskLocked(task.ID); idx >= 0 {
		s.tasks[idx] = task
		return
	}
	s.tasks = append(s.tasks, task)
}

// installTask replaces the whole cached task with the server's authoritative
// copy and records that its submissions are fresh.
func (s *TaskStore) installTask(task models.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertTaskLocked(task)
	s.submissionSeq[task.ID] = s.seqLocked()
}

func (s *TaskStore) seqLocked() uint64 {
	s.seq++
	return s.seq
}

func (s *TaskStore) removeTask(taskID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.tasks[:0]
	for _, task := range s.tasks {
		if task.ID != taskID {
			kept = append(kept, task)
		}
	}
	s.tasks = kept
	delete(s.submissionSeq, taskID)
}

// replaceByStudent installs the submission into the slice with
// find-replace-or-append semantics keyed on the normalized student id,
// collapsing any duplicate entries for the same student along the way.
func replaceByStudent(submissions []models.Submission, incoming models.Submission) []models.Submission {
	result := make([]models.Submission, 0, len(submissions)+1)
	replaced := false
	for _, existing := range submissions {
		if existing.Student.SameAs(incoming.Student.ID) {
			if !replaced {
				result = append(result, incoming)
				replaced = true
			}
			continue
		}
		result = append(result, existing)
	}
	if !replaced {
		result = append(result, incoming)
	}
	return result
}

func removeByStudent(submissions []models.Submission, studentID string) []models.Submission {
	result := make([]models.Submission, 0, len(submissions))
	for _, existing := range submissions {
		if existing.Student.SameAs(studentID) {
			continue
		}
		result = append(result, existing)
	}
	return result
}

func (s *TaskStore) beginTask(taskID string) error {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()

	if _, busy := s.inflight[taskID]; busy {
		return ErrOperationInFlight
	}
	s.inflight[taskID] = struct{}{}
	return nil
}

func (s *TaskStore) endTask(taskID string) {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	delete(s.inflight, taskID)
}

func (s *TaskStore) persistSnapshot(ctx context.Context) {
	if s.snapshots == nil {
		return
	}
	if err := s.snapshots.Save(ctx, s.Tasks()); err != nil {
		s.logger.Warn().Err(err).Msg("failed to persist task snapshot")
	}
}

func (s *TaskStore) startSpan(ctx context.Context, name, taskID string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("task.id", taskID),
	))
}

const (
	opLoadTasks      = "load_tasks"
	opLoadTask       = "load_task"
	opLoadSubmission = "load_my_submission"
	opSubmit         = "submit"
	opDiscardDraft   = "discard_draft"
	opCreateTask     = "create_task"
	opUpdateTask     = "update_task"
	opDeleteTask     = "delete_task"
	opSetRemarks     = "set_remarks"
	opInteractions   = "interactions"
	opGroupThread    = "group_thread"
)
