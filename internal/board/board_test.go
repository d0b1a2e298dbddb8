package board

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tgienger/smartpm/internal/api"
	"github.com/tgienger/smartpm/internal/models"
	"github.com/tgienger/smartpm/internal/session"
	"github.com/tgienger/smartpm/internal/store"
)

// ============================================================================
// TEST HELPERS
// ============================================================================

var errNetwork = errors.New("network down")

type fakeStore struct {
	mu          sync.Mutex
	project     *models.Project
	tasks       []models.Task
	listErr     error
	statusErr   error
	pointsErr   error
	onList      func(call int)
	listCalls   int
	statusCalls []models.Status
	pointCalls  []int
}

func (s *fakeStore) ListProjects(ctx context.Context, userID string) ([]models.Project, error) {
	return nil, nil
}

func (s *fakeStore) GetProject(ctx context.Context, projectID string) (*models.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.project == nil || s.project.ID != projectID {
		return nil, store.ErrProjectNotFound
	}
	p := *s.project
	return &p, nil
}

func (s *fakeStore) ListTasks(ctx context.Context, projectID string) ([]models.Task, error) {
	s.mu.Lock()
	s.listCalls++
	call := s.listCalls
	hook := s.onList
	s.mu.Unlock()

	if hook != nil {
		hook(call)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]models.Task, len(s.tasks))
	copy(out, s.tasks)
	return out, nil
}

func (s *fakeStore) UpdateTaskStatus(ctx context.Context, taskID string, status models.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statusCalls = append(s.statusCalls, status)
	if s.statusErr != nil {
		return s.statusErr
	}
	for i := range s.tasks {
		if s.tasks[i].ID == taskID {
			s.tasks[i].Status = status
		}
	}
	return nil
}

func (s *fakeStore) UpdateTaskStoryPoints(ctx context.Context, taskID string, points int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pointCalls = append(s.pointCalls, points)
	if s.pointsErr != nil {
		return s.pointsErr
	}
	for i := range s.tasks {
		if s.tasks[i].ID == taskID {
			s.tasks[i].StoryPoints = &points
		}
	}
	return nil
}

type fakeAPI struct {
	mu      sync.Mutex
	creates []api.CreateTaskRequest
	edits   []api.EditTaskRequest
	deletes []string
	err     error
}

func (a *fakeAPI) CreateTask(ctx context.Context, req api.CreateTaskRequest) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.creates = append(a.creates, req)
	return a.err
}

func (a *fakeAPI) EditTask(ctx context.Context, req api.EditTaskRequest) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.edits = append(a.edits, req)
	return a.err
}

func (a *fakeAPI) DeleteTask(ctx context.Context, taskID, projectID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.deletes = append(a.deletes, taskID)
	return a.err
}

func (a *fakeAPI) calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.creates) + len(a.edits) + len(a.deletes)
}

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

func seedTasks() []models.Task {
	return []models.Task{
		{ID: "t1", ProjectID: "p1", Title: "Write plan", UserDescription: "draft", Status: models.StatusTodo, StoryPoints: intPtr(3)},
		{ID: "t2", ProjectID: "p1", Title: "Review", Status: "inReview"},
		{ID: "t3", ProjectID: "p2", Title: "Elsewhere", Status: models.StatusDone},
		{ID: "t4", ProjectID: "p1", Title: "Legacy", Status: "none", AIDescription: strPtr("ai text")},
	}
}

// newTestBoard returns a loaded board over a fake store and API
func newTestBoard(t *testing.T) (*Board, *fakeStore, *fakeAPI) {
	t.Helper()
	fs := &fakeStore{
		project: &models.Project{ID: "p1", Name: "Alpha", OwnerID: "user-1"},
		tasks:   seedTasks(),
	}
	fa := &fakeAPI{}
	b := New("p1", fs, fa, session.New("user-1", "token"))
	require.NoError(t, b.Load(context.Background()))
	return b, fs, fa
}

func statusOf(t *testing.T, b *Board, id string) models.Status {
	t.Helper()
	task, ok := b.Task(id)
	require.True(t, ok, "task %s missing", id)
	return task.Status
}

// ============================================================================
// LOAD
// ============================================================================

func TestLoadKeepsOnlyProjectTasksWithValidStatus(t *testing.T) {
	b, _, _ := newTestBoard(t)

	tasks := b.Tasks()
	require.Len(t, tasks, 3)
	for _, task := range tasks {
		assert.Equal(t, "p1", task.ProjectID)
		assert.True(t, task.Status.Valid(), "status %q", task.Status)
	}
	assert.Equal(t, models.StatusInReview, statusOf(t, b, "t2"))
	assert.Equal(t, models.StatusTodo, statusOf(t, b, "t4"))
	assert.False(t, b.Loading())
	assert.NoError(t, b.Err())
}

func TestColumnsHaveEveryStatus(t *testing.T) {
	b, _, _ := newTestBoard(t)

	cols := b.Columns()
	require.Len(t, cols, len(models.Statuses))
	assert.Len(t, cols[models.StatusTodo], 2)
	assert.Equal(t, "t1", cols[models.StatusTodo][0].ID)
	assert.Equal(t, "t4", cols[models.StatusTodo][1].ID)
	assert.Len(t, cols[models.StatusInReview], 1)
	assert.Empty(t, cols[models.StatusInProgress])
	assert.Empty(t, cols[models.StatusDone])
}

func TestLoadFailureRecordsErrorAndKeepsTasks(t *testing.T) {
	b, fs, _ := newTestBoard(t)
	fs.listErr = errNetwork

	err := b.Load(context.Background())
	assert.ErrorIs(t, err, errNetwork)
	assert.ErrorIs(t, b.Err(), errNetwork)
	assert.Len(t, b.Tasks(), 3)
	assert.False(t, b.Loading())

	b.ClearErr()
	assert.NoError(t, b.Err())
}

func TestOvertakenLoadIsDiscarded(t *testing.T) {
	fs := &fakeStore{tasks: seedTasks()}
	b := New("p1", fs, &fakeAPI{}, session.New("user-1", ""))

	started := make(chan struct{})
	release := make(chan struct{})
	fs.onList = func(call int) {
		if call == 1 {
			close(started)
			<-release
		}
	}

	done := make(chan error, 1)
	go func() { done <- b.Load(context.Background()) }()
	<-started
	assert.True(t, b.Loading())

	// the newer load sees only one task
	fs.mu.Lock()
	fs.tasks = fs.tasks[:1]
	fs.mu.Unlock()
	require.NoError(t, b.Load(context.Background()))

	fs.mu.Lock()
	fs.tasks = seedTasks()
	fs.mu.Unlock()
	close(release)
	require.NoError(t, <-done)

	assert.Len(t, b.Tasks(), 1)
	assert.False(t, b.Loading())
}

func TestOpenReadsProjectAndTasks(t *testing.T) {
	fs := &fakeStore{
		project: &models.Project{ID: "p1", Name: "Alpha", OwnerID: "user-1"},
		tasks:   seedTasks(),
	}
	b := New("p1", fs, &fakeAPI{}, session.New("user-1", ""))

	require.NoError(t, b.Open(context.Background()))
	require.NotNil(t, b.Project())
	assert.Equal(t, "Alpha", b.Project().Name)
	assert.Len(t, b.Tasks(), 3)
}

func TestOpenMissingProject(t *testing.T) {
	fs := &fakeStore{tasks: seedTasks()}
	b := New("p1", fs, &fakeAPI{}, session.New("user-1", ""))

	err := b.Open(context.Background())
	assert.ErrorIs(t, err, store.ErrProjectNotFound)
	assert.Nil(t, b.Project())
	assert.Error(t, b.Err())
}

// ============================================================================
// MOVE
// ============================================================================

func TestStartMoveIsImmediate(t *testing.T) {
	b, fs, _ := newTestBoard(t)

	move, err := b.StartMove("t1", models.StatusDone)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDone, statusOf(t, b, "t1"))
	assert.Empty(t, fs.statusCalls)

	require.NoError(t, move.Persist(context.Background()))
	assert.Equal(t, []models.Status{models.StatusDone}, fs.statusCalls)
	assert.Equal(t, models.StatusDone, statusOf(t, b, "t1"))
	assert.NoError(t, b.Err())
}

func TestMoveFailureRollsBack(t *testing.T) {
	b, fs, _ := newTestBoard(t)
	fs.statusErr = errNetwork

	err := b.MoveTask(context.Background(), "t1", models.StatusDone)
	assert.ErrorIs(t, err, errNetwork)
	assert.Equal(t, models.StatusTodo, statusOf(t, b, "t1"))
	require.Error(t, b.Err())
	assert.Contains(t, b.Err().Error(), "Failed to move task")
}

func TestMoveToSameStatusMakesNoCall(t *testing.T) {
	b, fs, _ := newTestBoard(t)

	require.NoError(t, b.MoveTask(context.Background(), "t1", models.StatusTodo))
	assert.Empty(t, fs.statusCalls)
}

func TestMoveRejectsUnknownTaskAndStatus(t *testing.T) {
	b, fs, _ := newTestBoard(t)

	_, err := b.StartMove("missing", models.StatusDone)
	assert.ErrorIs(t, err, ErrTaskNotFound)
	_, err = b.StartMove("t1", "none")
	assert.ErrorIs(t, err, ErrInvalidStatus)
	assert.Empty(t, fs.statusCalls)
}

func TestMoveRequiresSession(t *testing.T) {
	b, fs, _ := newTestBoard(t)
	b.session.End()

	_, err := b.StartMove("t1", models.StatusDone)
	assert.ErrorIs(t, err, session.ErrNotAuthenticated)
	assert.Equal(t, models.StatusTodo, statusOf(t, b, "t1"))
	assert.Empty(t, fs.statusCalls)
}

func TestStaleMoveFailureIsDiscarded(t *testing.T) {
	b, fs, _ := newTestBoard(t)
	ctx := context.Background()

	first, err := b.StartMove("t1", models.StatusDone)
	require.NoError(t, err)
	second, err := b.StartMove("t1", models.StatusInReview)
	require.NoError(t, err)
	assert.Greater(t, second.Seq, first.Seq)

	fs.statusErr = errNetwork
	assert.Error(t, first.Persist(ctx))
	assert.Equal(t, models.StatusInReview, statusOf(t, b, "t1"))
	assert.NoError(t, b.Err())

	fs.statusErr = nil
	require.NoError(t, second.Persist(ctx))
	assert.Equal(t, models.StatusInReview, statusOf(t, b, "t1"))
}

func TestLatestMoveFailureRollsBackToLastSavedStatus(t *testing.T) {
	b, fs, _ := newTestBoard(t)
	ctx := context.Background()

	first, err := b.StartMove("t1", models.StatusDone)
	require.NoError(t, err)
	second, err := b.StartMove("t1", models.StatusInProgress)
	require.NoError(t, err)

	require.NoError(t, first.Persist(ctx))
	assert.Equal(t, models.StatusInProgress, statusOf(t, b, "t1"))

	fs.statusErr = errNetwork
	assert.Error(t, second.Persist(ctx))
	assert.Equal(t, models.StatusDone, statusOf(t, b, "t1"))
	assert.Error(t, b.Err())
}

func TestReloadKeepsUnsettledMove(t *testing.T) {
	b, fs, _ := newTestBoard(t)
	ctx := context.Background()

	move, err := b.StartMove("t1", models.StatusDone)
	require.NoError(t, err)

	require.NoError(t, b.Load(ctx))
	assert.Equal(t, models.StatusDone, statusOf(t, b, "t1"))

	fs.statusErr = errNetwork
	assert.Error(t, move.Persist(ctx))
	assert.Equal(t, models.StatusTodo, statusOf(t, b, "t1"))
}

func TestMovesOfDifferentTasksAreIndependent(t *testing.T) {
	b, fs, _ := newTestBoard(t)
	ctx := context.Background()

	m1, err := b.StartMove("t1", models.StatusDone)
	require.NoError(t, err)
	m2, err := b.StartMove("t2", models.StatusTodo)
	require.NoError(t, err)

	fs.statusErr = errNetwork
	assert.Error(t, m1.Persist(ctx))
	fs.statusErr = nil
	require.NoError(t, m2.Persist(ctx))

	assert.Equal(t, models.StatusTodo, statusOf(t, b, "t1"))
	assert.Equal(t, models.StatusTodo, statusOf(t, b, "t2"))
}

// ============================================================================
// CREATE
// ============================================================================

func TestCreateTaskEmptyTitleMakesNoCall(t *testing.T) {
	b, fs, fa := newTestBoard(t)
	listed := fs.listCalls

	err := b.CreateTask(context.Background(), NewTask{Title: "   ", UserDescription: "x"})
	assert.ErrorIs(t, err, ErrEmptyTitle)
	assert.Zero(t, fa.calls())
	assert.Equal(t, listed, fs.listCalls)
}

func TestCreateTaskSignedOut(t *testing.T) {
	b, _, fa := newTestBoard(t)
	b.session.End()

	err := b.CreateTask(context.Background(), NewTask{Title: "New"})
	require.ErrorIs(t, err, session.ErrNotAuthenticated)
	assert.Equal(t, "User not authenticated.", err.Error())
	assert.Zero(t, fa.calls())
}

func TestCreateTaskSendsRequestThenReloads(t *testing.T) {
	b, fs, fa := newTestBoard(t)
	listed := fs.listCalls

	err := b.CreateTask(context.Background(), NewTask{
		Title:           " Ship it ",
		UserDescription: " soon ",
		Status:          models.StatusInProgress,
	})
	require.NoError(t, err)
	require.Len(t, fa.creates, 1)
	assert.Equal(t, api.CreateTaskRequest{
		ProjectID:       "p1",
		Title:           "Ship it",
		UserDescription: "soon",
		Status:          models.StatusInProgress,
		Model:           models.DefaultModel,
		UserID:          "user-1",
	}, fa.creates[0])
	assert.Equal(t, listed+1, fs.listCalls)
}

func TestCreateTaskSucceedsWhenReloadFails(t *testing.T) {
	b, fs, fa := newTestBoard(t)
	fs.listErr = errNetwork

	require.NoError(t, b.CreateTask(context.Background(), NewTask{Title: "Ship"}))
	assert.Len(t, fa.creates, 1)
	assert.ErrorIs(t, b.Err(), errNetwork)
	assert.Len(t, b.Tasks(), 3)
}

func TestSuccessfulLoadClearsError(t *testing.T) {
	b, fs, _ := newTestBoard(t)
	fs.listErr = errNetwork
	require.Error(t, b.Load(context.Background()))
	require.Error(t, b.Err())

	fs.mu.Lock()
	fs.listErr = nil
	fs.mu.Unlock()
	require.NoError(t, b.Load(context.Background()))
	assert.NoError(t, b.Err())
}

func TestCreateTaskFailureLeavesBoardUntouched(t *testing.T) {
	b, _, fa := newTestBoard(t)
	fa.err = &api.Error{Status: http.StatusBadGateway, Message: "Enrich+Index failed"}

	err := b.CreateTask(context.Background(), NewTask{Title: "New", Status: "bogus"})
	require.Error(t, err)
	assert.Equal(t, "Enrich+Index failed", b.Err().Error())
	assert.Len(t, b.Tasks(), 3)
	assert.Equal(t, models.StatusTodo, fa.creates[0].Status)
}

// ============================================================================
// DELETE
// ============================================================================

func TestDeleteTaskRemovesLocally(t *testing.T) {
	b, _, fa := newTestBoard(t)

	require.NoError(t, b.DeleteTask(context.Background(), "t2"))
	assert.Equal(t, []string{"t2"}, fa.deletes)
	_, ok := b.Task("t2")
	assert.False(t, ok)
	assert.Len(t, b.Tasks(), 2)
}

func TestDeleteTaskNotFoundIsSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/index/delete/task", r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"detail":"Task t1 not found"}`)
	}))
	defer srv.Close()

	fs := &fakeStore{tasks: seedTasks()}
	b := New("p1", fs, api.New(srv.URL, time.Second), session.New("user-1", ""))
	require.NoError(t, b.Load(context.Background()))

	require.NoError(t, b.DeleteTask(context.Background(), "t1"))
	_, ok := b.Task("t1")
	assert.False(t, ok)
	assert.NoError(t, b.Err())
}

func TestDeleteTaskFailureKeepsTask(t *testing.T) {
	b, _, fa := newTestBoard(t)
	fa.err = &api.Error{Status: http.StatusInternalServerError, Message: "Failed to delete task"}

	assert.Error(t, b.DeleteTask(context.Background(), "t1"))
	_, ok := b.Task("t1")
	assert.True(t, ok)
	assert.Error(t, b.Err())
}
