package models

import "time"

// SenderRole identifies which side of a thread authored a message.
type SenderRole string

const (
	// RoleStudent marks messages authored by a student.
	RoleStudent SenderRole = "student"
	// RoleTeacher marks messages authored by the teacher.
	RoleTeacher SenderRole = "teacher"
)

// InteractionMessage is one entry in the private teacher-student thread
// attached to a submission. Ordering is assigned by the server and must be
// preserved as received.
type InteractionMessage struct {
	Sender     EntityRef  `json:"sender"`
	SenderRole SenderRole `json:"senderRole"`
	Message    string     `json:"message"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// GroupMessage is one entry in the shared per-task thread visible to the
// teacher and to every student with a finalized submission.
type GroupMessage struct {
	Sender      EntityRef  `json:"sender"`
	SenderRole  SenderRole `json:"senderRole"`
	Message     string     `json:"message,omitempty"`
	Attachments []FileInfo `json:"attachments"`
	CreatedAt   time.Time  `json:"createdAt"`
}
