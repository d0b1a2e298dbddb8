package forms

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tgienger/smartpm/internal/api"
	"github.com/tgienger/smartpm/internal/board"
	"github.com/tgienger/smartpm/internal/models"
	"github.com/tgienger/smartpm/internal/projects"
	"github.com/tgienger/smartpm/internal/session"
)

type fakeProjects struct {
	creates int
	edits   []string
	err     error
	block   chan struct{}
}

func (f *fakeProjects) Create(ctx context.Context, name, description string) error {
	f.creates++
	if f.block != nil {
		<-f.block
	}
	return f.err
}

func (f *fakeProjects) Edit(ctx context.Context, projectID, name, description string) error {
	f.edits = append(f.edits, projectID+":"+name+":"+description)
	return f.err
}

type fakeTasks struct {
	creates []board.NewTask
	edits   []board.TaskFields
	err     error
	current map[string]models.Task
}

func (f *fakeTasks) CreateTask(ctx context.Context, nt board.NewTask) error {
	f.creates = append(f.creates, nt)
	return f.err
}

func (f *fakeTasks) EditTask(ctx context.Context, taskID string, fields board.TaskFields) (board.EditResult, error) {
	f.edits = append(f.edits, fields)
	if perr, ok := f.err.(*board.PartialEditError); ok {
		return perr.Result, perr
	}
	return board.EditResult{TextUpdated: true}, f.err
}

func (f *fakeTasks) Task(id string) (models.Task, bool) {
	t, ok := f.current[id]
	return t, ok
}

func (f *fakeTasks) calls() int {
	return len(f.creates) + len(f.edits)
}

// ============================================================================
// PROJECT FORM
// ============================================================================

func TestProjectFormCreate(t *testing.T) {
	fp := &fakeProjects{}
	f := NewProjectForm(fp)

	f.OpenCreate()
	assert.True(t, f.IsOpen())
	assert.Equal(t, Create, f.Mode())
	assert.Equal(t, ProjectValues{}, f.Values())

	f.SetValues(ProjectValues{Name: "Alpha", Description: "d"})
	require.NoError(t, f.Submit(context.Background()))
	assert.Equal(t, 1, fp.creates)
	assert.False(t, f.IsOpen())
	assert.NoError(t, f.Err())
}

func TestProjectFormEmptyNameNeverReachesNetwork(t *testing.T) {
	fp := &fakeProjects{}
	f := NewProjectForm(fp)
	f.OpenCreate()
	f.SetValues(ProjectValues{Name: "   ", Description: "kept"})

	assert.ErrorIs(t, f.Submit(context.Background()), ErrNameRequired)
	assert.Zero(t, fp.creates)
	assert.True(t, f.IsOpen())
	assert.ErrorIs(t, f.Err(), ErrNameRequired)
	assert.Equal(t, "kept", f.Values().Description)
}

func TestProjectFormEditNoChanges(t *testing.T) {
	fp := &fakeProjects{}
	f := NewProjectForm(fp)
	f.OpenEdit(models.Project{ID: "p1", Name: "Alpha", Description: "d"})
	assert.Equal(t, ProjectValues{Name: "Alpha", Description: "d"}, f.Values())

	f.SetValues(ProjectValues{Name: " Alpha", Description: "d "})
	err := f.Submit(context.Background())
	assert.ErrorIs(t, err, projects.ErrNoChanges)
	assert.Equal(t, "No changes detected. Please modify the title or description.", err.Error())
	assert.Empty(t, fp.edits)
	assert.True(t, f.IsOpen())
}

func TestProjectFormEditSubmits(t *testing.T) {
	fp := &fakeProjects{}
	f := NewProjectForm(fp)
	f.OpenEdit(models.Project{ID: "p1", Name: "Alpha", Description: "d"})
	f.SetValues(ProjectValues{Name: "Beta", Description: "d"})

	require.NoError(t, f.Submit(context.Background()))
	assert.Equal(t, []string{"p1:Beta:d"}, fp.edits)
	assert.False(t, f.IsOpen())
}

func TestProjectFormFailureKeepsValues(t *testing.T) {
	fp := &fakeProjects{err: errors.New("Failed to create project")}
	f := NewProjectForm(fp)
	f.OpenCreate()
	f.SetValues(ProjectValues{Name: "Alpha", Description: "d"})

	assert.Error(t, f.Submit(context.Background()))
	assert.True(t, f.IsOpen())
	assert.False(t, f.Submitting())
	assert.EqualError(t, f.Err(), "Failed to create project")
	assert.Equal(t, ProjectValues{Name: "Alpha", Description: "d"}, f.Values())
}

func TestProjectFormEscapeDiscards(t *testing.T) {
	fp := &fakeProjects{}
	f := NewProjectForm(fp)
	f.OpenCreate()
	f.SetValues(ProjectValues{Name: "Alpha"})

	f.Escape()
	assert.False(t, f.IsOpen())
	assert.ErrorIs(t, f.Submit(context.Background()), ErrNotOpen)
	assert.Zero(t, fp.creates)

	f.OpenCreate()
	assert.Equal(t, ProjectValues{}, f.Values())
}

func TestProjectFormLateResponseDoesNotTouchNewSession(t *testing.T) {
	fp := &fakeProjects{block: make(chan struct{}), err: errors.New("late failure")}
	f := NewProjectForm(fp)
	f.OpenCreate()
	f.SetValues(ProjectValues{Name: "Alpha"})

	result := make(chan error, 1)
	go func() { result <- f.Submit(context.Background()) }()
	require.Eventually(t, f.Submitting, time.Second, time.Millisecond)

	assert.ErrorIs(t, f.Submit(context.Background()), ErrBusy)

	f.Escape()
	f.OpenCreate()
	close(fp.block)
	assert.Error(t, <-result)

	assert.True(t, f.IsOpen())
	assert.NoError(t, f.Err())
	assert.False(t, f.Submitting())
}

// ============================================================================
// TASK FORM
// ============================================================================

func TestTaskFormCreateEmptyTitle(t *testing.T) {
	ft := &fakeTasks{}
	f := NewTaskForm(ft)
	f.OpenCreate(models.StatusInProgress, models.ModelGemini)
	f.SetValues(TaskValues{Title: "", UserDescription: "details"})

	assert.ErrorIs(t, f.Submit(context.Background()), ErrTitleRequired)
	assert.Zero(t, ft.calls())
	assert.True(t, f.IsOpen())
	assert.Equal(t, "details", f.Values().UserDescription)
}

func TestTaskFormCreateCarriesColumnAndModel(t *testing.T) {
	ft := &fakeTasks{}
	f := NewTaskForm(ft)
	f.OpenCreate(models.StatusInReview, models.ModelOpenAI)
	f.SetModel(models.ModelGemini)
	f.SetValues(TaskValues{Title: "Ship", UserDescription: "soon"})

	require.NoError(t, f.Submit(context.Background()))
	assert.Equal(t, []board.NewTask{{
		Title:           "Ship",
		UserDescription: "soon",
		Status:          models.StatusInReview,
		Model:           models.ModelGemini,
	}}, ft.creates)
	assert.False(t, f.IsOpen())
}

func TestTaskFormOpenCreateDefaultsColumn(t *testing.T) {
	f := NewTaskForm(&fakeTasks{})
	f.OpenCreate("", models.ModelOpenAI)
	assert.Equal(t, models.StatusTodo, f.Status())
}

func TestTaskFormEdit(t *testing.T) {
	points := 3
	task := models.Task{ID: "t1", Title: "Write", UserDescription: "d", StoryPoints: &points}

	tests := []struct {
		name    string
		values  TaskValues
		wantErr error
	}{
		{"no changes", TaskValues{Title: "Write", UserDescription: "d", StoryPoints: "3"}, board.ErrNoChanges},
		{"blank points unchanged", TaskValues{Title: "Write", UserDescription: "d"}, board.ErrNoChanges},
		{"negative points", TaskValues{Title: "Write", UserDescription: "d", StoryPoints: "-2"}, ErrInvalidStoryPoints},
		{"non numeric points", TaskValues{Title: "Write", UserDescription: "d", StoryPoints: "lots"}, ErrInvalidStoryPoints},
		{"empty title", TaskValues{Title: " ", StoryPoints: "3"}, ErrTitleRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ft := &fakeTasks{}
			f := NewTaskForm(ft)
			f.OpenEdit(task)
			f.SetValues(tt.values)

			assert.ErrorIs(t, f.Submit(context.Background()), tt.wantErr)
			assert.Zero(t, ft.calls())
			assert.True(t, f.IsOpen())
		})
	}
}

func TestTaskFormEditSeedsValues(t *testing.T) {
	points := 5
	ai := "generated"
	f := NewTaskForm(&fakeTasks{})
	f.OpenEdit(models.Task{ID: "t1", Title: "a", UserDescription: "b", AIDescription: &ai, StoryPoints: &points, Status: models.StatusDone})

	assert.Equal(t, TaskValues{Title: "a", UserDescription: "b", AIDescription: "generated", StoryPoints: "5"}, f.Values())
	assert.Equal(t, models.StatusDone, f.Status())
	assert.Equal(t, Edit, f.Mode())
}

func TestTaskFormEditSubmitsFields(t *testing.T) {
	ft := &fakeTasks{}
	f := NewTaskForm(ft)
	f.OpenEdit(models.Task{ID: "t1", Title: "a", UserDescription: "b"})
	f.SetValues(TaskValues{Title: "a", UserDescription: "b", StoryPoints: " 8 "})

	require.NoError(t, f.Submit(context.Background()))
	require.Len(t, ft.edits, 1)
	require.NotNil(t, ft.edits[0].StoryPoints)
	assert.Equal(t, 8, *ft.edits[0].StoryPoints)
	assert.False(t, f.IsOpen())
}

func TestTaskFormPartialEditReseedsOriginal(t *testing.T) {
	points := 8
	ft := &fakeTasks{
		err: &board.PartialEditError{Result: board.EditResult{PointsUpdated: true}, TextErr: errors.New("Failed to edit task")},
		current: map[string]models.Task{
			"t1": {ID: "t1", Title: "a", UserDescription: "b", StoryPoints: &points},
		},
	}
	f := NewTaskForm(ft)
	f.OpenEdit(models.Task{ID: "t1", Title: "a", UserDescription: "b"})
	f.SetValues(TaskValues{Title: "renamed", UserDescription: "b", StoryPoints: "8"})

	assert.Error(t, f.Submit(context.Background()))
	assert.True(t, f.IsOpen())
	assert.Equal(t, "renamed", f.Values().Title)
	require.NotNil(t, f.Task().StoryPoints)
	assert.Equal(t, 8, *f.Task().StoryPoints)

	ft.err = nil
	require.NoError(t, f.Submit(context.Background()))
	require.Len(t, ft.edits, 2)
	retry := board.DiffTask(ft.current["t1"], ft.edits[1])
	assert.Nil(t, retry.StoryPoints)
	require.NotNil(t, retry.Text.Title)
	assert.Equal(t, "renamed", *retry.Text.Title)
}

// flakyStore fails the first task listing after it is armed
type flakyStore struct {
	failNext bool
}

func (s *flakyStore) ListProjects(context.Context, string) ([]models.Project, error) {
	return nil, nil
}

func (s *flakyStore) GetProject(context.Context, string) (*models.Project, error) {
	return &models.Project{ID: "p1", Name: "Alpha"}, nil
}

func (s *flakyStore) ListTasks(context.Context, string) ([]models.Task, error) {
	if s.failNext {
		s.failNext = false
		return nil, errors.New("store unavailable")
	}
	return nil, nil
}

func (s *flakyStore) UpdateTaskStatus(context.Context, string, models.Status) error { return nil }

func (s *flakyStore) UpdateTaskStoryPoints(context.Context, string, int) error { return nil }

type countingAPI struct {
	creates int
}

func (a *countingAPI) CreateTask(context.Context, api.CreateTaskRequest) error {
	a.creates++
	return nil
}

func (a *countingAPI) EditTask(context.Context, api.EditTaskRequest) error { return nil }

func (a *countingAPI) DeleteTask(context.Context, string, string) error { return nil }

func TestTaskFormClosesWhenOnlyRefreshFails(t *testing.T) {
	fs := &flakyStore{failNext: true}
	fa := &countingAPI{}
	b := board.New("p1", fs, fa, session.New("user-1", "token"))

	f := NewTaskForm(b)
	f.OpenCreate(models.StatusTodo, models.ModelOpenAI)
	f.SetValues(TaskValues{Title: "Ship"})

	require.NoError(t, f.Submit(context.Background()))
	assert.False(t, f.IsOpen())
	assert.NoError(t, f.Err())
	assert.Equal(t, 1, fa.creates)
	assert.Error(t, b.Err())

	assert.ErrorIs(t, f.Submit(context.Background()), ErrNotOpen)
	assert.Equal(t, 1, fa.creates)
}

func TestParseStoryPoints(t *testing.T) {
	p, err := ParseStoryPoints("")
	require.NoError(t, err)
	assert.Nil(t, p)

	p, err = ParseStoryPoints(" 13 ")
	require.NoError(t, err)
	assert.Equal(t, 13, *p)

	_, err = ParseStoryPoints("1.5")
	assert.ErrorIs(t, err, ErrInvalidStoryPoints)
}
