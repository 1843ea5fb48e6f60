package models

import (
	"encoding/json"
	"time"
)

// TaskStatus is the teacher-controlled lifecycle state of a task.
type TaskStatus string

const (
	// TaskActive means the task accepts submissions.
	TaskActive TaskStatus = "active"
	// TaskCompleted means the task has been closed by the teacher.
	TaskCompleted TaskStatus = "completed"
	// TaskArchived means the task is hidden from active views.
	TaskArchived TaskStatus = "archived"
)

// Task represents a classroom assignment together with its submissions and
// group discussion thread as cached on the client.
type Task struct {
	ID                       string         `json:"id"`
	Title                    string         `json:"title"`
	Description              string         `json:"description"`
	Instructions             string         `json:"instructions"`
	Classroom                EntityRef      `json:"classroom"`
	Deadline                 *time.Time     `json:"deadline"`
	MaxSubmissions           int            `json:"maxSubmissions"`
	Attachments              []FileInfo     `json:"attachments"`
	Status                   TaskStatus     `json:"status"`
	Submissions              []Submission   `json:"submissions"`
	GroupInteractionMessages []GroupMessage `json:"groupInteractionMessages"`
	CreatedAt                time.Time      `json:"createdAt"`
}

// IsPastDue reports whether the deadline has already passed. Tasks without a
// deadline are never past due.
func (t Task) IsPastDue(reference time.Time) bool {
	return t.Deadline != nil && reference.After(*t.Deadline)
}

// SubmissionFor returns the submission belonging to the given student and its
// index, or -1 when the student has not drafted or submitted anything.
func (t Task) SubmissionFor(studentID string) (Submission, int) {
	for i, submission := range t.Submissions {
		if submission.Student.SameAs(studentID) {
			return submission, i
		}
	}
	return Submission{}, -1
}

// FileInfo describes one stored file attached to a task, a submission or a
// group message.
type FileInfo struct {
	ID           string `json:"id"`
	OriginalName string `json:"originalName"`
	Mimetype     string `json:"mimetype"`
	Size         int64  `json:"size"`
}

// UnmarshalJSON tolerates the two field names the API uses for the stored
// file name (task and submission files carry originalName, group message
// attachments carry filename).
func (f *FileInfo) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID           string `json:"id"`
		MongoID      string `json:"_id"`
		OriginalName string `json:"originalName"`
		Filename     string `json:"filename"`
		Mimetype     string `json:"mimetype"`
		Size         int64  `json:"size"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	id := raw.ID
	if id == "" {
		id = raw.MongoID
	}
	name := raw.OriginalName
	if name == "" {
		name = raw.Filename
	}

	*f = FileInfo{ID: id, OriginalName: name, Mimetype: raw.Mimetype, Size: raw.Size}
	return nil
}
