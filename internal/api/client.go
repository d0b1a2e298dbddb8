// Package api is the client for the SmartPM indexing service, which creates
// and edits projects and tasks, enriches tasks with AI descriptions and
// renders project handbooks.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tgienger/smartpm/internal/models"
)

// Client issues requests against the indexing service
type Client struct {
	baseURL string
	client  *http.Client
}

// New creates a client for the service at baseURL
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the service address
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Error is a non-success response. Message is taken from the body's message
// or detail field when present.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// IsNotFound reports whether err is a 404 from the service
func IsNotFound(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

type errorBody struct {
	Message string          `json:"message"`
	Detail  json.RawMessage `json:"detail"`
}

func (b errorBody) text() string {
	if b.Message != "" {
		return b.Message
	}
	var detail string
	if len(b.Detail) > 0 && json.Unmarshal(b.Detail, &detail) == nil {
		return detail
	}
	return ""
}

// CreateProjectRequest is the body of POST /index/project
type CreateProjectRequest struct {
	UserID      string `json:"userId"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// EditProjectRequest is the body of PUT /index/edit/project. Nil fields are
// omitted so the service leaves them unchanged.
type EditProjectRequest struct {
	ProjectID   string  `json:"projectId"`
	UserID      string  `json:"userId"`
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

// CreateTaskRequest is the body of POST /index/task/enrich_and_index
type CreateTaskRequest struct {
	ProjectID       string               `json:"projectId"`
	Title           string               `json:"task_title"`
	UserDescription string               `json:"user_description"`
	Status          models.Status        `json:"status"`
	Model           models.ModelSelector `json:"selected_model"`
	UserID          string               `json:"userId"`
}

// EditTaskRequest is the body of PUT /index/edit/task. Nil fields are omitted.
type EditTaskRequest struct {
	TaskID          string  `json:"taskId"`
	ProjectID       string  `json:"projectId"`
	UserID          string  `json:"userId"`
	Title           *string `json:"task_title,omitempty"`
	UserDescription *string `json:"user_description,omitempty"`
	AIDescription   *string `json:"ai_description,omitempty"`
}

// Empty reports whether the request carries no field changes
func (r EditTaskRequest) Empty() bool {
	return r.Title == nil && r.UserDescription == nil && r.AIDescription == nil
}

type deleteProjectRequest struct {
	ProjectID string `json:"projectId"`
	UserID    string `json:"userId"`
}

type deleteTaskRequest struct {
	TaskID    string `json:"taskId"`
	ProjectID string `json:"projectId"`
}

type handbookRequest struct {
	UserID    string               `json:"userId"`
	ProjectID string               `json:"projectId"`
	Model     models.ModelSelector `json:"selected_model"`
}

// CreateProject creates a project owned by req.UserID
func (c *Client) CreateProject(ctx context.Context, req CreateProjectRequest) error {
	_, err := c.send(ctx, http.MethodPost, "/index/project", req, "Failed to create project")
	return err
}

// EditProject applies a partial project update
func (c *Client) EditProject(ctx context.Context, req EditProjectRequest) error {
	_, err := c.send(ctx, http.MethodPut, "/index/edit/project", req, "Failed to edit project")
	return err
}

// DeleteProject deletes a project and its tasks. A 404 means the project is
// already gone and counts as success.
func (c *Client) DeleteProject(ctx context.Context, projectID, userID string) error {
	_, err := c.send(ctx, http.MethodDelete, "/index/delete/project",
		deleteProjectRequest{ProjectID: projectID, UserID: userID}, "Failed to delete project")
	if IsNotFound(err) {
		return nil
	}
	return err
}

// CreateTask creates a task and has the service enrich and index it
func (c *Client) CreateTask(ctx context.Context, req CreateTaskRequest) error {
	_, err := c.send(ctx, http.MethodPost, "/index/task/enrich_and_index", req, "Failed to create task")
	return err
}

// EditTask applies a partial update of the textual task fields. A 404 whose
// message says "not found" counts as success.
func (c *Client) EditTask(ctx context.Context, req EditTaskRequest) error {
	_, err := c.send(ctx, http.MethodPut, "/index/edit/task", req, "Failed to edit task")
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound &&
		strings.Contains(strings.ToLower(apiErr.Message), "not found") {
		return nil
	}
	return err
}

// DeleteTask deletes a task. A 404 means the task is already gone and counts
// as success.
func (c *Client) DeleteTask(ctx context.Context, taskID, projectID string) error {
	_, err := c.send(ctx, http.MethodDelete, "/index/delete/task",
		deleteTaskRequest{TaskID: taskID, ProjectID: projectID}, "Failed to delete task")
	if IsNotFound(err) {
		return nil
	}
	return err
}

// HandbookPDF asks the service to render the project handbook and returns the
// PDF bytes
func (c *Client) HandbookPDF(ctx context.Context, userID, projectID string, model models.ModelSelector) ([]byte, error) {
	return c.send(ctx, http.MethodPost, "/index/project/handbook/pdf",
		handbookRequest{UserID: userID, ProjectID: projectID, Model: model}, "Failed to generate handbook")
}

// Health reports whether the service is up and its index is ready
func (c *Client) Health(ctx context.Context) (bool, error) {
	body, err := c.send(ctx, http.MethodGet, "/index/health", nil, "Health check failed")
	if err != nil {
		return false, err
	}
	var resp struct {
		OK bool `json:"ok"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return false, fmt.Errorf("failed to decode health response: %w", err)
	}
	return resp.OK, nil
}

func (c *Client) send(ctx context.Context, method, path string, payload any, fallback string) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fallback, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var eb errorBody
		msg := fallback
		if json.Unmarshal(body, &eb) == nil && eb.text() != "" {
			msg = eb.text()
		}
		return nil, &Error{Status: resp.StatusCode, Message: msg}
	}

	return body, nil
}
