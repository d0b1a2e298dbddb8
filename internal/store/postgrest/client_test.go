package postgrest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tgienger/smartpm/internal/models"
	"github.com/tgienger/smartpm/internal/store"
)

type staticToken string

func (s staticToken) Token() string { return string(s) }

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", "anon-key", staticToken("user-token"), time.Second)
}

func TestListProjects(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/rest/v1/projects", r.URL.Path)
		assert.Equal(t, "eq.user-1", r.URL.Query().Get("user_id"))
		assert.Equal(t, projectSelect, r.URL.Query().Get("select"))
		assert.Equal(t, "anon-key", r.Header.Get("apikey"))
		assert.Equal(t, "Bearer user-token", r.Header.Get("Authorization"))

		_, _ = io.WriteString(w, `[{"id":"p1","name":"Alpha","description":null,"user_id":"user-1"},
			{"id":42,"name":"Beta","description":"b","user_id":"user-1"}]`)
	})

	projects, err := c.ListProjects(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, projects, 2)
	assert.Equal(t, models.Project{ID: "p1", Name: "Alpha", OwnerID: "user-1"}, projects[0])
	assert.Equal(t, "42", projects[1].ID)
	assert.Equal(t, "b", projects[1].Description)
}

func TestGetProjectNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "eq.p9", r.URL.Query().Get("id"))
		_, _ = io.WriteString(w, `[]`)
	})

	_, err := c.GetProject(context.Background(), "p9")
	assert.ErrorIs(t, err, store.ErrProjectNotFound)
}

func TestListTasksNormalisesStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/tasks", r.URL.Path)
		assert.Equal(t, "eq.p1", r.URL.Query().Get("project_id"))
		assert.Equal(t, "id", r.URL.Query().Get("order"))
		_, _ = io.WriteString(w, `[
			{"id":"t1","project_id":"p1","title":"a","description":"d","ai_description":"ai","story_points":3,"status":"inProgress"},
			{"id":"t2","project_id":"p1","title":"b","description":null,"ai_description":null,"story_points":null,"status":"none"},
			{"id":"t3","project_id":"p1","title":"c","status":null}
		]`)
	})

	tasks, err := c.ListTasks(context.Background(), "p1")
	require.NoError(t, err)
	require.Len(t, tasks, 3)

	assert.Equal(t, models.StatusInProgress, tasks[0].Status)
	assert.Equal(t, "ai", tasks[0].AIText())
	require.NotNil(t, tasks[0].StoryPoints)
	assert.Equal(t, 3, *tasks[0].StoryPoints)

	assert.Equal(t, models.StatusTodo, tasks[1].Status)
	assert.Nil(t, tasks[1].AIDescription)
	assert.Nil(t, tasks[1].StoryPoints)
	assert.Equal(t, models.StatusTodo, tasks[2].Status)
}

func TestUpdateTaskStatusSendsOnlyStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "eq.t1", r.URL.Query().Get("id"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]any{"status": "done"}, body)
		_, _ = io.WriteString(w, `[{"id":"t1"}]`)
	})

	require.NoError(t, c.UpdateTaskStatus(context.Background(), "t1", models.StatusDone))
}

func TestUpdateTaskStoryPoints(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]any{"story_points": float64(8)}, body)
		_, _ = io.WriteString(w, `[]`)
	})

	err := c.UpdateTaskStoryPoints(context.Background(), "t1", 8)
	assert.ErrorIs(t, err, store.ErrTaskNotFound)
}

func TestValidationHappensBeforeNetwork(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
	})

	assert.ErrorIs(t, c.UpdateTaskStatus(context.Background(), "t1", "none"), store.ErrInvalidStatus)
	assert.ErrorIs(t, c.UpdateTaskStoryPoints(context.Background(), "t1", -2), store.ErrInvalidPoints)
	assert.Zero(t, calls)
}

func TestErrorBodyMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"message":"JWT expired","code":"PGRST301"}`)
	})

	_, err := c.ListTasks(context.Background(), "p1")
	require.Error(t, err)

	var storeErr *Error
	require.True(t, errors.As(err, &storeErr))
	assert.Equal(t, http.StatusUnauthorized, storeErr.Status)
	assert.Equal(t, "PGRST301", storeErr.Code)
	assert.Equal(t, "JWT expired", storeErr.Message)
}

func TestBearerFallsBackToKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer anon-key", r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `[]`)
	}))
	defer srv.Close()

	c := New(srv.URL, "anon-key", staticToken(""), time.Second)
	_, err := c.ListProjects(context.Background(), "u")
	require.NoError(t, err)
}
