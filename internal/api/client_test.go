package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/classpad-app/classpad-sync/internal/auth"
	"github.com/classpad-app/classpad-sync/internal/models"
)

type staticTokens struct {
	token string
	err   error
}

func (s staticTokens) Token() (string, error) {
	return s.token, s.err
}

func newTestClient(url string) *Client {
	return NewClient(url, staticTokens{token: "test-token"}, zerolog.Nop())
}

func TestClientSendsAuthAndCorrelationHeaders(t *testing.T) {
	var gotAuth, gotCorrelation string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotCorrelation = r.Header.Get("X-Correlation-ID")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).ListTasks(context.Background(), "")
	require.NoError(t, err)
	require.Equal(t, "Bearer test-token", gotAuth)
	require.NotEmpty(t, gotCorrelation)
}

func TestClientUnauthenticatedShortCircuits(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
	}))
	defer server.Close()

	client := NewClient(server.URL, staticTokens{err: auth.ErrNoCredential}, zerolog.Nop())

	_, err := client.ListTasks(context.Background(), "")
	require.ErrorIs(t, err, ErrUnauthenticated)
	require.Zero(t, requests)
}

func TestClientSurfacesServerMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "only the teacher may do that"})
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).GetTask(context.Background(), "task-1")

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusForbidden, statusErr.Code)
	require.Equal(t, "only the teacher may do that", statusErr.Message)
}

func TestClientFallbackMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).GetTask(context.Background(), "task-1")

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, "failed to load task", statusErr.Message)
}

func TestClientNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	_, err := newTestClient(server.URL).ListTasks(context.Background(), "")

	var requestErr *RequestError
	require.ErrorAs(t, err, &requestErr)
}

func TestListTasksScopesClassroom(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("classroom")
		_, _ = w.Write([]byte(`[{"id":"task-1","title":"Essay","submissions":[{"student":"s-1","status":"submitted"}]}]`))
	}))
	defer server.Close()

	tasks, err := newTestClient(server.URL).ListTasks(context.Background(), "class-9")
	require.NoError(t, err)
	require.Equal(t, "class-9", gotQuery)
	require.Len(t, tasks, 1)
	require.Equal(t, "s-1", tasks[0].Submissions[0].Student.ID)
}

func TestMySubmissionDecode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/tasks/task-1/my-submission", r.URL.Path)
		_, _ = w.Write([]byte(`{"hasSubmission":true,"userId":"s-1","isOverdue":false,"submission":{"student":{"id":"s-1","name":"Ana"},"status":"draft"}}`))
	}))
	defer server.Close()

	result, err := newTestClient(server.URL).MySubmission(context.Background(), "task-1")
	require.NoError(t, err)
	require.True(t, result.HasSubmission)
	require.Equal(t, "s-1", result.UserID)
	require.NotNil(t, result.Submission)
	require.Equal(t, models.SubmissionDraft, result.Submission.Status)
}

func TestSubmitEncodesMultipart(t *testing.T) {
	var (
		gotContent  string
		gotStatus   string
		gotRemovals string
		fileNames   []string
		fileTypes   []string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		gotContent = r.FormValue("content")
		gotStatus = r.FormValue("status")
		gotRemovals = r.FormValue("filesToRemove")
		for _, header := range r.MultipartForm.File["files"] {
			fileNames = append(fileNames, header.Filename)
			fileTypes = append(fileTypes, header.Header.Get("Content-Type"))
		}
		_, _ = w.Write([]byte(`{"id":"task-1","title":"Essay"}`))
	}))
	defer server.Close()

	task, err := newTestClient(server.URL).Submit(context.Background(), "task-1", SubmitRequest{
		Content:       "final answer",
		Status:        models.SubmissionSubmitted,
		RemoveFileIDs: []string{"f-1"},
		Files:         []FileUpload{{Name: "notes.txt", Content: strings.NewReader("plain text notes")}},
	})
	require.NoError(t, err)
	require.Equal(t, "task-1", task.ID)
	require.Equal(t, "final answer", gotContent)
	require.Equal(t, "submitted", gotStatus)
	require.JSONEq(t, `["f-1"]`, gotRemovals)
	require.Equal(t, []string{"notes.txt"}, fileNames)
	require.Len(t, fileTypes, 1)
	require.True(t, strings.HasPrefix(fileTypes[0], "text/plain"))
}

func TestDiscardDraftUsesDelete(t *testing.T) {
	var gotMethod, gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
	}))
	defer server.Close()

	require.NoError(t, newTestClient(server.URL).DiscardDraft(context.Background(), "task-1"))
	require.Equal(t, http.MethodDelete, gotMethod)
	require.Equal(t, "/tasks/task-1/draft", gotPath)
}

func TestSetRemarksPostsJSON(t *testing.T) {
	var gotPath string
	var gotBody map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		payload, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(payload, &gotBody))
		_, _ = w.Write([]byte(`{"id":"task-1"}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).SetRemarks(context.Background(), "task-1", "s-1", "good work")
	require.NoError(t, err)
	require.Equal(t, "/tasks/task-1/submissions/s-1/remarks", gotPath)
	require.Equal(t, "good work", gotBody["remarks"])
}

func TestInteractionsQuery(t *testing.T) {
	var gotStudent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotStudent = r.URL.Query().Get("studentId")
		_, _ = w.Write([]byte(`{"messages":[{"sender":"t-1","senderRole":"teacher","message":"see my note"}],"interactionEnabled":true}`))
	}))
	defer server.Close()

	thread, err := newTestClient(server.URL).Interactions(context.Background(), "task-1", "s-1")
	require.NoError(t, err)
	require.Equal(t, "s-1", gotStudent)
	require.True(t, thread.InteractionEnabled)
	require.Len(t, thread.Messages, 1)
	require.Equal(t, models.RoleTeacher, thread.Messages[0].SenderRole)
}

func TestPostGroupMessageMultipart(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		require.Equal(t, "hello all", r.FormValue("message"))
		_, _ = w.Write([]byte(`{"sender":{"id":"s-1","name":"Ana"},"senderRole":"student","message":"hello all"}`))
	}))
	defer server.Close()

	created, err := newTestClient(server.URL).PostGroupMessage(context.Background(), "task-1", "hello all", nil)
	require.NoError(t, err)
	require.Equal(t, "hello all", created.Message)
	require.Equal(t, "s-1", created.Sender.ID)
}
