// Package postgrest reads and writes the projects and tasks tables of the
// hosted store through its PostgREST interface (/rest/v1/<table>).
package postgrest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tgienger/smartpm/internal/models"
	"github.com/tgienger/smartpm/internal/store"
)

const (
	projectSelect = "id,name,description,user_id"
	taskSelect    = "id,project_id,title,description,ai_description,story_points,status"
	restPrefix    = "/rest/v1/"
)

// TokenSource supplies the signed-in user's access token. An empty token
// falls back to the anon key.
type TokenSource interface {
	Token() string
}

// Client implements store.TableStore over HTTP
type Client struct {
	baseURL string
	apiKey  string
	tokens  TokenSource
	client  *http.Client
}

var _ store.TableStore = (*Client)(nil)

// Error is a failed PostgREST request
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("store request failed with status %d", e.Status)
	}
	return e.Message
}

type errorBody struct {
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
	Code    string `json:"code"`
}

// New creates a client for the store at baseURL
func New(baseURL, apiKey string, tokens TokenSource, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		tokens:  tokens,
		client:  &http.Client{Timeout: timeout},
	}
}

// ListProjects returns the projects owned by userID
func (c *Client) ListProjects(ctx context.Context, userID string) ([]models.Project, error) {
	q := url.Values{}
	q.Set("select", projectSelect)
	q.Set("user_id", "eq."+userID)

	var rows []projectRow
	if err := c.do(ctx, http.MethodGet, "projects", q, nil, &rows); err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}

	projects := make([]models.Project, 0, len(rows))
	for _, r := range rows {
		projects = append(projects, r.project())
	}
	return projects, nil
}

// GetProject reads a single project row
func (c *Client) GetProject(ctx context.Context, projectID string) (*models.Project, error) {
	q := url.Values{}
	q.Set("select", projectSelect)
	q.Set("id", "eq."+projectID)

	var rows []projectRow
	if err := c.do(ctx, http.MethodGet, "projects", q, nil, &rows); err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	if len(rows) == 0 {
		return nil, store.ErrProjectNotFound
	}
	p := rows[0].project()
	return &p, nil
}

type projectRow struct {
	ID          json.RawMessage `json:"id"`
	Name        string          `json:"name"`
	Description *string         `json:"description"`
	UserID      json.RawMessage `json:"user_id"`
}

func (r projectRow) project() models.Project {
	p := models.Project{
		ID:      rawID(r.ID),
		Name:    r.Name,
		OwnerID: rawID(r.UserID),
	}
	if r.Description != nil {
		p.Description = *r.Description
	}
	return p
}

type taskRow struct {
	ID              json.RawMessage `json:"id"`
	ProjectID       json.RawMessage `json:"project_id"`
	Title           string          `json:"title"`
	UserDescription *string         `json:"description"`
	AIDescription   *string         `json:"ai_description"`
	StoryPoints     *int            `json:"story_points"`
	Status          *string         `json:"status"`
}

// ListTasks returns every task of projectID ordered by id
func (c *Client) ListTasks(ctx context.Context, projectID string) ([]models.Task, error) {
	q := url.Values{}
	q.Set("select", taskSelect)
	q.Set("project_id", "eq."+projectID)
	q.Set("order", "id")

	var rows []taskRow
	if err := c.do(ctx, http.MethodGet, "tasks", q, nil, &rows); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	tasks := make([]models.Task, 0, len(rows))
	for _, r := range rows {
		t := models.Task{
			ID:            rawID(r.ID),
			ProjectID:     rawID(r.ProjectID),
			Title:         r.Title,
			AIDescription: r.AIDescription,
			StoryPoints:   r.StoryPoints,
			Status:        models.StatusTodo,
		}
		if r.UserDescription != nil {
			t.UserDescription = *r.UserDescription
		}
		if r.Status != nil {
			t.Status = models.ParseStatus(*r.Status)
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

// UpdateTaskStatus patches the status column of one task
func (c *Client) UpdateTaskStatus(ctx context.Context, taskID string, status models.Status) error {
	if err := store.ValidateStatus(status); err != nil {
		return err
	}
	if err := c.patchTask(ctx, taskID, map[string]any{"status": status}); err != nil {
		return fmt.Errorf("update task status: %w", err)
	}
	return nil
}

// UpdateTaskStoryPoints patches the story_points column of one task
func (c *Client) UpdateTaskStoryPoints(ctx context.Context, taskID string, points int) error {
	if err := store.ValidatePoints(points); err != nil {
		return err
	}
	if err := c.patchTask(ctx, taskID, map[string]any{"story_points": points}); err != nil {
		return fmt.Errorf("update story points: %w", err)
	}
	return nil
}

func (c *Client) patchTask(ctx context.Context, taskID string, fields map[string]any) error {
	q := url.Values{}
	q.Set("id", "eq."+taskID)
	q.Set("select", "id")

	var updated []struct {
		ID json.RawMessage `json:"id"`
	}
	if err := c.do(ctx, http.MethodPatch, "tasks", q, fields, &updated); err != nil {
		return err
	}
	if len(updated) == 0 {
		return store.ErrTaskNotFound
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, table string, query url.Values, body any, out any) error {
	endpoint := c.baseURL + restPrefix + table + "?" + query.Encode()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.bearer())
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Prefer", "return=representation")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var eb errorBody
		_ = json.Unmarshal(respBody, &eb)
		return &Error{Status: resp.StatusCode, Code: eb.Code, Message: eb.Message}
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) bearer() string {
	if c.tokens != nil {
		if tok := c.tokens.Token(); tok != "" {
			return tok
		}
	}
	return c.apiKey
}

// rawID accepts both string and numeric identifiers
func rawID(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}
