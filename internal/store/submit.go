package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/classpad-app/classpad-sync/internal/api"
	"github.com/classpad-app/classpad-sync/internal/models"
	"github.com/classpad-app/classpad-sync/internal/observability"
)

// SubmitInput carries a draft-or-final submission from the caller.
type SubmitInput struct {
	Content       string
	Status        models.SubmissionStatus `validate:"required,oneof=draft submitted"`
	RemoveFileIDs []string
	Files         []api.FileUpload
}

// TaskInput carries the fields for creating or fully replacing a task.
type TaskInput struct {
	Title          string `validate:"required"`
	Description    string
	ClassroomID    string `validate:"required"`
	Instructions   string
	Deadline       *time.Time
	MaxSubmissions int `validate:"omitempty,min=1"`
	Attachments    []api.FileUpload
}

// Submit sends the caller's draft or final submission. Pre-flight checks
// (word limit, double finalize) fail locally without touching the network.
// On success the server's authoritative task replaces the cached one
// wholesale, since submission affects attachment lists and counts only the
// server can compute, and a task-updated event is published.
func (s *TaskStore) Submit(ctx context.Context, taskID string, input SubmitInput) (models.Task, error) {
	if err := s.validator.Struct(input); err != nil {
		return models.Task{}, err
	}

	if words := countWords(input.Content); words > s.wordLimit {
		return models.Task{}, fmt.Errorf("%w: %d words over a limit of %d", ErrWordLimitExceeded, words, s.wordLimit)
	}

	identity, err := s.identity.Identity()
	if err != nil {
		return models.Task{}, fmt.Errorf("%w: %v", api.ErrUnauthenticated, err)
	}

	if input.Status == models.SubmissionSubmitted {
		if task, ok := s.Task(taskID); ok {
			if existing, idx := task.SubmissionFor(identity.UserID); idx >= 0 && existing.IsFinal() {
				return models.Task{}, ErrAlreadySubmitted
			}
		}
	}

	if err := s.beginTask(taskID); err != nil {
		return models.Task{}, err
	}
	defer s.endTask(taskID)

	spanCtx, span := s.startSpan(ctx, "taskstore.submit", taskID)
	defer span.End()

	task, err := s.backend.Submit(spanCtx, taskID, api.SubmitRequest{
		Content:       input.Content,
		Status:        input.Status,
		RemoveFileIDs: input.RemoveFileIDs,
		Files:         input.Files,
	})
	observability.ObserveSync(opSubmit, err)
	if err != nil {
		span.RecordError(err)
		return models.Task{}, err
	}

	s.installTask(task)
	s.publishEvent(EventTaskUpdated, taskID)
	s.persistSnapshot(spanCtx)

	s.logger.Info().Str("task_id", taskID).Str("status", string(input.Status)).Msg("submission saved")
	return task, nil
}

// DiscardDraft deletes the caller's draft, content and files included. Legal
// only while the submission is still a draft; finalized submissions are
// refused before any request is sent.
func (s *TaskStore) DiscardDraft(ctx context.Context, taskID string) error {
	identity, err := s.identity.Identity()
	if err != nil {
		return fmt.Errorf("%w: %v", api.ErrUnauthenticated, err)
	}

	task, ok := s.Task(taskID)
	if !ok {
		return ErrTaskNotFound
	}

	submission, idx := task.SubmissionFor(identity.UserID)
	if idx < 0 || !submission.IsEditableDraft() {
		return ErrNotDraft
	}

	if err := s.beginTask(taskID); err != nil {
		return err
	}
	defer s.endTask(taskID)

	spanCtx, span := s.startSpan(ctx, "taskstore.discard_draft", taskID)
	defer span.End()

	err = s.backend.DiscardDraft(spanCtx, taskID)
	observability.ObserveSync(opDiscardDraft, err)
	if err != nil {
		span.RecordError(err)
		return err
	}

	s.mu.Lock()
	if current, i := s.findTaskLocked(taskID); i >= 0 {
		current.Submissions = removeByStudent(current.Submissions, identity.UserID)
		s.tasks[i] = current
		s.submissionSeq[taskID] = s.seqLocked()
	}
	s.mu.Unlock()

	s.publishEvent(EventTaskUpdated, taskID)
	s.persistSnapshot(spanCtx)

	s.logger.Info().Str("task_id", taskID).Msg("draft discarded")
	return nil
}

// CreateTask creates a task and upserts the created entity into the cache.
func (s *TaskStore) CreateTask(ctx context.Context, input TaskInput) (models.Task, error) {
	if err := s.validator.Struct(input); err != nil {
		return models.Task{}, err
	}

	task, err := s.backend.CreateTask(ctx, taskForm(input))
	observability.ObserveSync(opCreateTask, err)
	if err != nil {
		return models.Task{}, err
	}

	s.installTask(task)
	s.publishEvent(EventTaskUpdated, task.ID)
	s.persistSnapshot(ctx)
	return task, nil
}

// UpdateTask replaces a task wholesale; description, instructions and
// attachments can all change together.
func (s *TaskStore) UpdateTask(ctx context.Context, taskID string, input TaskInput) (models.Task, error) {
	if err := s.validator.Struct(input); err != nil {
		return models.Task{}, err
	}

	if err := s.beginTask(taskID); err != nil {
		return models.Task{}, err
	}
	defer s.endTask(taskID)

	task, err := s.backend.UpdateTask(ctx, taskID, taskForm(input))
	observability.ObserveSync(opUpdateTask, err)
	if err != nil {
		return models.Task{}, err
	}

	s.installTask(task)
	s.publishEvent(EventTaskUpdated, taskID)
	s.persistSnapshot(ctx)
	return task, nil
}

// DeleteTask removes a task server-side and from the cache.
func (s *TaskStore) DeleteTask(ctx context.Context, taskID string) error {
	if err := s.beginTask(taskID); err != nil {
		return err
	}
	defer s.endTask(taskID)

	err := s.backend.DeleteTask(ctx, taskID)
	observability.ObserveSync(opDeleteTask, err)
	if err != nil {
		return err
	}

	s.removeTask(taskID)
	s.publishEvent(EventTaskRemoved, taskID)
	s.persistSnapshot(ctx)
	return nil
}

// SetSubmissionRemarks stores teacher remarks on one student's submission.
// The server returns the full updated task, which is installed wholesale.
func (s *TaskStore) SetSubmissionRemarks(ctx context.Context, taskID, studentID, remarks string) (models.Task, error) {
	identity, err := s.identity.Identity()
	if err != nil {
		return models.Task{}, fmt.Errorf("%w: %v", api.ErrUnauthenticated, err)
	}
	if identity.Role != string(models.RoleTeacher) {
		return models.Task{}, ErrTeacherOnly
	}

	if err := s.beginTask(taskID); err != nil {
		return models.Task{}, err
	}
	defer s.endTask(taskID)

	spanCtx, span := s.startSpan(ctx, "taskstore.set_remarks", taskID)
	defer span.End()

	task, err := s.backend.SetRemarks(spanCtx, taskID, studentID, strings.TrimSpace(remarks))
	observability.ObserveSync(opSetRemarks, err)
	if err != nil {
		span.RecordError(err)
		return models.Task{}, err
	}

	s.installTask(task)
	s.publishEvent(EventTaskUpdated, taskID)
	return task, nil
}

func taskForm(input TaskInput) api.TaskForm {
	return api.TaskForm{
		Title:          input.Title,
		Description:    input.Description,
		ClassroomID:    input.ClassroomID,
		Instructions:   input.Instructions,
		Deadline:       input.Deadline,
		MaxSubmissions: input.MaxSubmissions,
		Attachments:    input.Attachments,
	}
}

func countWords(content string) int {
	return len(strings.Fields(content))
}
