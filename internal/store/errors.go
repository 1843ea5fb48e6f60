package store

import "errors"

var (
	// ErrTaskNotFound indicates the task id is not present in the local cache.
	ErrTaskNotFound = errors.New("task not found")
	// ErrAlreadySubmitted indicates an attempt to finalize a submission that
	// is already final. Rejected before any request is sent.
	ErrAlreadySubmitted = errors.New("submission already finalized")
	// ErrNotDraft indicates a draft-only operation was attempted without an
	// editable draft in place.
	ErrNotDraft = errors.New("no draft submission to operate on")
	// ErrWordLimitExceeded indicates the submission content is over the
	// configured word limit. Rejected before any request is sent.
	ErrWordLimitExceeded = errors.New("content exceeds the word limit")
	// ErrOperationInFlight indicates another mutation for the same task has
	// not finished yet.
	ErrOperationInFlight = errors.New("another operation for this task is in flight")
	// ErrInteractionDisabled indicates the caller has no finalized submission
	// and therefore no access to the task's message threads.
	ErrInteractionDisabled = errors.New("messaging requires a finalized submission")
	// ErrTeacherOnly indicates a teacher-only operation was attempted by a
	// non-teacher.
	ErrTeacherOnly = errors.New("operation restricted to teachers")
	// ErrEmptyMessage indicates a message body was empty after sanitization.
	ErrEmptyMessage = errors.New("message is empty")
)
