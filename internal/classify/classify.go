// Package classify derives the UI-facing status of a task for one viewer
// from the task data, the viewer identity and the current time. Every
// function here is pure; callers pass the clock in.
package classify

import (
	"time"

	"github.com/classpad-app/classpad-sync/internal/models"
)

// Status is the derived state shown for a task.
type Status string

const (
	// StatusCompleted means the viewer has a finalized submission.
	StatusCompleted Status = "completed"
	// StatusDraft means the viewer has an unfinalized draft.
	StatusDraft Status = "draft"
	// StatusOverdue means the deadline passed without a finalized submission.
	StatusOverdue Status = "overdue"
	// StatusDueSoon means the deadline falls within the lookahead window.
	StatusDueSoon Status = "dueSoon"
	// StatusPending means the task is open with nothing notable yet.
	StatusPending Status = "pending"
)

// DefaultLookahead is the window ahead of the deadline in which an open task
// is flagged as due soon.
const DefaultLookahead = 3 * 24 * time.Hour

// SubmissionFor returns the viewer's submission on the task, if any.
func SubmissionFor(task models.Task, userID string) (models.Submission, bool) {
	submission, idx := task.SubmissionFor(userID)
	return submission, idx >= 0
}

// IsCompleted reports whether the viewer has a finalized submission on the
// task.
func IsCompleted(task models.Task, userID string) bool {
	submission, ok := SubmissionFor(task, userID)
	return ok && submission.IsFinal()
}

// IsDraft reports whether the viewer has an unfinalized draft on the task.
func IsDraft(task models.Task, userID string) bool {
	submission, ok := SubmissionFor(task, userID)
	return ok && submission.IsEditableDraft()
}

// Classify returns the viewer-facing status of the task at the given time.
// Precedence: completed > draft > overdue > dueSoon > pending; the first
// matching state wins. A task without a deadline is never overdue or due
// soon. A lookahead <= 0 falls back to DefaultLookahead.
func Classify(task models.Task, userID string, now time.Time, lookahead time.Duration) Status {
	if IsCompleted(task, userID) {
		return StatusCompleted
	}
	if IsDraft(task, userID) {
		return StatusDraft
	}

	if task.Deadline == nil {
		return StatusPending
	}

	if task.IsPastDue(now) {
		return StatusOverdue
	}

	if lookahead <= 0 {
		lookahead = DefaultLookahead
	}
	if !task.Deadline.After(now.Add(lookahead)) {
		return StatusDueSoon
	}

	return StatusPending
}
