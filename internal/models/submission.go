package models

import "time"

// SubmissionStatus is the lifecycle state of a student submission. Only the
// two values below are valid; a finalized submission never returns to draft,
// it can only be removed entirely via discard while still a draft.
type SubmissionStatus string

const (
	// SubmissionDraft indicates an unfinalized, editable submission.
	SubmissionDraft SubmissionStatus = "draft"
	// SubmissionSubmitted indicates the submission has been finalized.
	SubmissionSubmitted SubmissionStatus = "submitted"
)

// Submission represents one student's work on a task. At most one exists per
// (task, student) pair.
type Submission struct {
	Student             EntityRef            `json:"student"`
	Status              SubmissionStatus     `json:"status"`
	Content             string               `json:"content"`
	Files               []FileInfo           `json:"files"`
	DraftedAt           *time.Time           `json:"draftedAt"`
	SubmittedAt         *time.Time           `json:"submittedAt"`
	IsAutoSubmitted     bool                 `json:"isAutoSubmitted"`
	AutoSubmittedAt     *time.Time           `json:"autoSubmittedAt"`
	Remarks             string               `json:"remarks"`
	InteractionEnabled  bool                 `json:"interactionEnabled"`
	InteractionMessages []InteractionMessage `json:"interactionMessages"`
}

// IsFinal reports whether the submission has been finalized. SubmittedAt is
// checked alongside the status so that a partially populated payload with
// either signal still counts as final.
func (s Submission) IsFinal() bool {
	return s.Status == SubmissionSubmitted || s.SubmittedAt != nil
}

// IsEditableDraft reports whether the submission is an unfinalized draft.
func (s Submission) IsEditableDraft() bool {
	return s.Status == SubmissionDraft && !s.IsFinal()
}
