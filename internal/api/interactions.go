package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"

	"github.com/classpad-app/classpad-sync/internal/models"
)

// InteractionThread is the server's view of one private thread: the ordered
// message list plus the gate flag for further messaging.
type InteractionThread struct {
	Messages           []models.InteractionMessage `json:"messages"`
	InteractionEnabled bool                        `json:"interactionEnabled"`
}

// Interactions fetches the private thread for a task. Teachers pass the
// student id they are viewing; students leave it empty to address their own
// thread.
func (c *Client) Interactions(ctx context.Context, taskID, studentID string) (InteractionThread, error) {
	query := url.Values{}
	if studentID != "" {
		query.Set("studentId", studentID)
	}

	var thread InteractionThread
	if err := c.do(ctx, http.MethodGet, "/tasks/"+taskID+"/interactions", query, nil, "", &thread, "failed to load messages"); err != nil {
		return InteractionThread{}, err
	}
	return thread, nil
}

// PostInteraction appends a student message to the caller's own private
// thread. The server returns the full thread with its authoritative ordering.
func (c *Client) PostInteraction(ctx context.Context, taskID, message string) (InteractionThread, error) {
	payload, err := json.Marshal(map[string]string{"message": message})
	if err != nil {
		return InteractionThread{}, fmt.Errorf("failed to encode message: %w", err)
	}

	var thread InteractionThread
	if err := c.do(ctx, http.MethodPost, "/tasks/"+taskID+"/interactions", nil, bytes.NewReader(payload), "application/json", &thread, "failed to send message"); err != nil {
		return InteractionThread{}, err
	}
	return thread, nil
}

// ReplyInteraction appends a teacher reply to one student's private thread.
func (c *Client) ReplyInteraction(ctx context.Context, taskID, studentID, message string) (InteractionThread, error) {
	payload, err := json.Marshal(map[string]string{"studentId": studentID, "message": message})
	if err != nil {
		return InteractionThread{}, fmt.Errorf("failed to encode reply: %w", err)
	}

	var thread InteractionThread
	if err := c.do(ctx, http.MethodPost, "/tasks/"+taskID+"/interactions/reply", nil, bytes.NewReader(payload), "application/json", &thread, "failed to send reply"); err != nil {
		return InteractionThread{}, err
	}
	return thread, nil
}

// GroupInteractions fetches the shared per-task thread. The returned order is
// the server's arrival order and must never be re-sorted locally.
func (c *Client) GroupInteractions(ctx context.Context, taskID string) ([]models.GroupMessage, error) {
	var messages []models.GroupMessage
	if err := c.do(ctx, http.MethodGet, "/tasks/"+taskID+"/group-interactions", nil, nil, "", &messages, "failed to load discussion"); err != nil {
		return nil, err
	}
	return messages, nil
}

// PostGroupMessage posts one message (text, attachments or both) to the
// shared thread and returns the single created message.
func (c *Client) PostGroupMessage(ctx context.Context, taskID, message string, files []FileUpload) (models.GroupMessage, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	if err := writer.WriteField("message", message); err != nil {
		return models.GroupMessage{}, fmt.Errorf("failed to encode message: %w", err)
	}
	if err := writeFileParts(writer, "attachments", files); err != nil {
		return models.GroupMessage{}, err
	}
	if err := writer.Close(); err != nil {
		return models.GroupMessage{}, fmt.Errorf("failed to finalize form: %w", err)
	}

	var created models.GroupMessage
	if err := c.do(ctx, http.MethodPost, "/tasks/"+taskID+"/group-interactions", nil, body, writer.FormDataContentType(), &created, "failed to post to discussion"); err != nil {
		return models.GroupMessage{}, err
	}
	return created, nil
}
