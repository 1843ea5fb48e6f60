package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/classpad-app/classpad-sync/internal/models"
)

// FileUpload is one file attached to a multipart request.
type FileUpload struct {
	Name    string
	Content io.Reader
}

// SubmitRequest carries a draft-or-final submission payload.
type SubmitRequest struct {
	Content       string
	Status        models.SubmissionStatus
	RemoveFileIDs []string
	Files         []FileUpload
}

// TaskForm carries the fields for creating or fully replacing a task.
type TaskForm struct {
	Title          string
	Description    string
	ClassroomID    string
	Instructions   string
	Deadline       *time.Time
	MaxSubmissions int
	Attachments    []FileUpload
}

// MySubmissionResult is the server's report of the caller's submission state
// for one task.
type MySubmissionResult struct {
	HasSubmission bool               `json:"hasSubmission"`
	Submission    *models.Submission `json:"submission"`
	UserID        string             `json:"userId"`
	IsOverdue     bool               `json:"isOverdue"`
}

// ListTasks fetches all tasks visible to the caller, optionally scoped to one
// classroom.
func (c *Client) ListTasks(ctx context.Context, classroomID string) ([]models.Task, error) {
	query := url.Values{}
	if classroomID != "" {
		query.Set("classroom", classroomID)
	}

	var tasks []models.Task
	if err := c.do(ctx, http.MethodGet, "/tasks", query, nil, "", &tasks, "failed to load tasks"); err != nil {
		return nil, err
	}
	return tasks, nil
}

// GetTask fetches a single task by id.
func (c *Client) GetTask(ctx context.Context, taskID string) (models.Task, error) {
	var task models.Task
	if err := c.do(ctx, http.MethodGet, "/tasks/"+taskID, nil, nil, "", &task, "failed to load task"); err != nil {
		return models.Task{}, err
	}
	return task, nil
}

// MySubmission fetches the caller's submission status for one task.
func (c *Client) MySubmission(ctx context.Context, taskID string) (MySubmissionResult, error) {
	var result MySubmissionResult
	if err := c.do(ctx, http.MethodGet, "/tasks/"+taskID+"/my-submission", nil, nil, "", &result, "failed to load submission status"); err != nil {
		return MySubmissionResult{}, err
	}
	return result, nil
}

// Submit sends a draft or final submission and returns the server's
// authoritative copy of the whole task.
func (c *Client) Submit(ctx context.Context, taskID string, payload SubmitRequest) (models.Task, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	if err := writer.WriteField("content", payload.Content); err != nil {
		return models.Task{}, fmt.Errorf("failed to encode submission: %w", err)
	}
	if err := writer.WriteField("status", string(payload.Status)); err != nil {
		return models.Task{}, fmt.Errorf("failed to encode submission: %w", err)
	}

	removals, err := json.Marshal(payload.RemoveFileIDs)
	if err != nil {
		return models.Task{}, fmt.Errorf("failed to encode file removals: %w", err)
	}
	if err := writer.WriteField("filesToRemove", string(removals)); err != nil {
		return models.Task{}, fmt.Errorf("failed to encode submission: %w", err)
	}

	if err := writeFileParts(writer, "files", payload.Files); err != nil {
		return models.Task{}, err
	}

	if err := writer.Close(); err != nil {
		return models.Task{}, fmt.Errorf("failed to finalize form: %w", err)
	}

	var task models.Task
	if err := c.do(ctx, http.MethodPost, "/tasks/"+taskID+"/submit", nil, body, writer.FormDataContentType(), &task, "failed to submit"); err != nil {
		return models.Task{}, err
	}
	return task, nil
}

// DiscardDraft deletes the caller's draft submission for the given task.
func (c *Client) DiscardDraft(ctx context.Context, taskID string) error {
	return c.do(ctx, http.MethodDelete, "/tasks/"+taskID+"/draft", nil, nil, "", nil, "failed to discard draft")
}

// CreateTask creates a new task.
func (c *Client) CreateTask(ctx context.Context, form TaskForm) (models.Task, error) {
	return c.sendTaskForm(ctx, http.MethodPost, "/tasks", form, "failed to create task")
}

// UpdateTask replaces a task wholesale.
func (c *Client) UpdateTask(ctx context.Context, taskID string, form TaskForm) (models.Task, error) {
	return c.sendTaskForm(ctx, http.MethodPut, "/tasks/"+taskID, form, "failed to update task")
}

// DeleteTask removes a task.
func (c *Client) DeleteTask(ctx context.Context, taskID string) error {
	return c.do(ctx, http.MethodDelete, "/tasks/"+taskID, nil, nil, "", nil, "failed to delete task")
}

// SetRemarks stores teacher remarks on one student's submission and returns
// the updated task.
func (c *Client) SetRemarks(ctx context.Context, taskID, studentID, remarks string) (models.Task, error) {
	payload, err := json.Marshal(map[string]string{"remarks": remarks})
	if err != nil {
		return models.Task{}, fmt.Errorf("failed to encode remarks: %w", err)
	}

	var task models.Task
	path := "/tasks/" + taskID + "/submissions/" + studentID + "/remarks"
	if err := c.do(ctx, http.MethodPost, path, nil, bytes.NewReader(payload), "application/json", &task, "failed to save remarks"); err != nil {
		return models.Task{}, err
	}
	return task, nil
}

func (c *Client) sendTaskForm(ctx context.Context, method, path string, form TaskForm, fallback string) (models.Task, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	fields := map[string]string{
		"title":          form.Title,
		"description":    form.Description,
		"classroom":      form.ClassroomID,
		"instructions":   form.Instructions,
		"maxSubmissions": strconv.Itoa(form.MaxSubmissions),
	}
	if form.Deadline != nil {
		fields["deadline"] = form.Deadline.UTC().Format(time.RFC3339)
	}

	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			return models.Task{}, fmt.Errorf("failed to encode task form: %w", err)
		}
	}

	if err := writeFileParts(writer, "attachments", form.Attachments); err != nil {
		return models.Task{}, err
	}

	if err := writer.Close(); err != nil {
		return models.Task{}, fmt.Errorf("failed to finalize form: %w", err)
	}

	var task models.Task
	if err := c.do(ctx, method, path, nil, body, writer.FormDataContentType(), &task, fallback); err != nil {
		return models.Task{}, err
	}
	return task, nil
}

// writeFileParts appends each upload as its own part, sniffing the real
// content type from the bytes rather than trusting the file extension.
func writeFileParts(writer *multipart.Writer, field string, files []FileUpload) error {
	for _, file := range files {
		data, err := io.ReadAll(file.Content)
		if err != nil {
			return fmt.Errorf("failed to read file %q: %w", file.Name, err)
		}

		detected := mimetype.Detect(data)

		header := textproto.MIMEHeader{}
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, escapeQuotes(file.Name)))
		header.Set("Content-Type", detected.String())

		part, err := writer.CreatePart(header)
		if err != nil {
			return fmt.Errorf("failed to create part for %q: %w", file.Name, err)
		}
		if _, err := part.Write(data); err != nil {
			return fmt.Errorf("failed to write file %q: %w", file.Name, err)
		}
	}
	return nil
}

func escapeQuotes(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}
