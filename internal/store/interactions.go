package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/classpad-app/classpad-sync/internal/api"
	"github.com/classpad-app/classpad-sync/internal/auth"
	"github.com/classpad-app/classpad-sync/internal/models"
	"github.com/classpad-app/classpad-sync/internal/observability"
)

// canParticipate reports whether the identity may read or post to the task's
// message threads. Teachers always may; students need a finalized
// submission. Both the private and the group surface derive from this one
// fact.
func canParticipate(task models.Task, identity auth.Identity) bool {
	if identity.Role == string(models.RoleTeacher) {
		return true
	}

	submission, idx := task.SubmissionFor(identity.UserID)
	if idx < 0 {
		return false
	}
	return submission.InteractionEnabled || submission.IsFinal()
}

// LoadInteractions refreshes the private thread attached to one submission.
// Students pass an empty studentID to address their own thread; teachers
// pass the student they are viewing. The server's message list and
// interactionEnabled flag are written onto the matching submission.
func (s *TaskStore) LoadInteractions(ctx context.Context, taskID, studentID string) error {
	identity, err := s.identity.Identity()
	if err != nil {
		return fmt.Errorf("%w: %v", api.ErrUnauthenticated, err)
	}

	target := studentID
	if target == "" {
		target = identity.UserID
	}

	thread, err := s.backend.Interactions(ctx, taskID, studentID)
	observability.ObserveSync(opInteractions, err)
	if err != nil {
		return err
	}

	return s.installThread(taskID, target, thread)
}

// PostInteraction appends a student message to the caller's own private
// thread. The server-returned full list is installed rather than appending
// locally, preserving server-assigned ordering and timestamps.
func (s *TaskStore) PostInteraction(ctx context.Context, taskID, message string) error {
	identity, err := s.identity.Identity()
	if err != nil {
		return fmt.Errorf("%w: %v", api.ErrUnauthenticated, err)
	}

	clean, err := s.cleanMessage(message)
	if err != nil {
		return err
	}

	task, ok := s.Task(taskID)
	if ok && !canParticipate(task, identity) {
		return ErrInteractionDisabled
	}

	thread, err := s.backend.PostInteraction(ctx, taskID, clean)
	observability.ObserveSync(opInteractions, err)
	if err != nil {
		return err
	}

	return s.installThread(taskID, identity.UserID, thread)
}

// ReplyInteraction appends a teacher reply to one student's private thread.
func (s *TaskStore) ReplyInteraction(ctx context.Context, taskID, studentID, message string) error {
	identity, err := s.identity.Identity()
	if err != nil {
		return fmt.Errorf("%w: %v", api.ErrUnauthenticated, err)
	}
	if identity.Role != string(models.RoleTeacher) {
		return ErrTeacherOnly
	}

	clean, err := s.cleanMessage(message)
	if err != nil {
		return err
	}

	thread, err := s.backend.ReplyInteraction(ctx, taskID, studentID, clean)
	observability.ObserveSync(opInteractions, err)
	if err != nil {
		return err
	}

	return s.installThread(taskID, studentID, thread)
}

// RefreshGroupThread replaces the task's group thread wholesale with the
// server's response, keeping the server's arrival order untouched.
func (s *TaskStore) RefreshGroupThread(ctx context.Context, taskID string) error {
	identity, err := s.identity.Identity()
	if err != nil {
		return fmt.Errorf("%w: %v", api.ErrUnauthenticated, err)
	}

	task, ok := s.Task(taskID)
	if ok && !canParticipate(task, identity) {
		return ErrInteractionDisabled
	}

	messages, err := s.backend.GroupInteractions(ctx, taskID)
	observability.ObserveSync(opGroupThread, err)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, idx := s.findTaskLocked(taskID)
	if idx < 0 {
		return ErrTaskNotFound
	}
	current.GroupInteractionMessages = messages
	s.tasks[idx] = current
	return nil
}

// PostGroupMessage posts to the shared thread and optimistically appends the
// single message the server confirms. Callers needing strict consistency
// should RefreshGroupThread instead; the 5-second group poll heals any
// divergence within one interval either way.
func (s *TaskStore) PostGroupMessage(ctx context.Context, taskID, message string, files []api.FileUpload) error {
	identity, err := s.identity.Identity()
	if err != nil {
		return fmt.Errorf("%w: %v", api.ErrUnauthenticated, err)
	}

	task, ok := s.Task(taskID)
	if ok && !canParticipate(task, identity) {
		return ErrInteractionDisabled
	}

	clean := strings.TrimSpace(s.sanitizer.Sanitize(message))
	if clean == "" && len(files) == 0 {
		return ErrEmptyMessage
	}

	created, err := s.backend.PostGroupMessage(ctx, taskID, clean, files)
	observability.ObserveSync(opGroupThread, err)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, idx := s.findTaskLocked(taskID)
	if idx < 0 {
		return ErrTaskNotFound
	}
	current.GroupInteractionMessages = append(current.GroupInteractionMessages, created)
	s.tasks[idx] = current
	return nil
}

func (s *TaskStore) cleanMessage(message string) (string, error) {
	clean := strings.TrimSpace(s.sanitizer.Sanitize(message))
	if clean == "" {
		return "", ErrEmptyMessage
	}
	return clean, nil
}

// installThread writes the thread onto the matching submission within the
// task. Messages are installed as received; the client never reorders.
func (s *TaskStore) installThread(taskID, studentID string, thread api.InteractionThread) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, idx := s.findTaskLocked(taskID)
	if idx < 0 {
		return ErrTaskNotFound
	}

	for i := range task.Submissions {
		if task.Submissions[i].Student.SameAs(studentID) {
			task.Submissions[i].InteractionMessages = thread.Messages
			task.Submissions[i].InteractionEnabled = thread.InteractionEnabled
			s.tasks[idx] = task
			return nil
		}
	}

	return ErrInteractionDisabled
}
