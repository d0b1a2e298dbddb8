package forms

import (
	"context"
	"strconv"
	"strings"

	"github.com/tgienger/smartpm/internal/board"
	"github.com/tgienger/smartpm/internal/models"
)

// TaskSubmitter performs task writes; *board.Board implements it
type TaskSubmitter interface {
	CreateTask(ctx context.Context, nt board.NewTask) error
	EditTask(ctx context.Context, taskID string, fields board.TaskFields) (board.EditResult, error)
	Task(id string) (models.Task, bool)
}

// TaskValues are the entered task fields. StoryPoints is the raw text; an
// empty value leaves the estimate unchanged.
type TaskValues struct {
	Title           string
	UserDescription string
	AIDescription   string
	StoryPoints     string
}

// TaskForm is the create/edit task dialog. A create form targets one status
// column and carries the model selector used for enrichment.
type TaskForm struct {
	lifecycle

	submitter TaskSubmitter
	original  models.Task
	status    models.Status
	model     models.ModelSelector
	values    TaskValues
}

// NewTaskForm creates a closed form
func NewTaskForm(submitter TaskSubmitter) *TaskForm {
	return &TaskForm{submitter: submitter}
}

// OpenCreate opens a blank form that creates a task in status using model
func (f *TaskForm) OpenCreate(status models.Status, model models.ModelSelector) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.begin(Create)
	if !status.Valid() {
		status = models.StatusTodo
	}
	f.original = models.Task{}
	f.status = status
	f.model = model
	f.values = TaskValues{}
}

// OpenEdit opens the form seeded from t
func (f *TaskForm) OpenEdit(t models.Task) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.begin(Edit)
	f.original = t
	f.status = t.Status
	f.values = valuesOf(t)
}

func valuesOf(t models.Task) TaskValues {
	v := TaskValues{
		Title:           t.Title,
		UserDescription: t.UserDescription,
		AIDescription:   t.AIText(),
	}
	if t.StoryPoints != nil {
		v.StoryPoints = strconv.Itoa(*t.StoryPoints)
	}
	return v
}

// Status returns the column a create form targets
func (f *TaskForm) Status() models.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

// Model returns the model selector of a create form
func (f *TaskForm) Model() models.ModelSelector {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.model
}

// SetModel changes the model selector
func (f *TaskForm) SetModel(m models.ModelSelector) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.model = m
}

// Task returns the task being edited
func (f *TaskForm) Task() models.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.original
}

// Values returns the entered fields
func (f *TaskForm) Values() TaskValues {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.values
}

// SetValues replaces the entered fields
func (f *TaskForm) SetValues(v TaskValues) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values = v
}

// ParseStoryPoints reads an estimate. Blank means no value.
func ParseStoryPoints(raw string) (*int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return nil, ErrInvalidStoryPoints
	}
	return &n, nil
}

// Submit validates and sends the form. Validation failures never reach the
// network.
func (f *TaskForm) Submit(ctx context.Context) error {
	f.mu.Lock()
	if !f.open {
		f.mu.Unlock()
		return ErrNotOpen
	}
	v := f.values
	mode := f.mode
	original := f.original
	status := f.status
	model := f.model

	if strings.TrimSpace(v.Title) == "" {
		err := f.reject(ErrTitleRequired)
		f.mu.Unlock()
		return err
	}

	var fields board.TaskFields
	if mode == Edit {
		points, err := ParseStoryPoints(v.StoryPoints)
		if err != nil {
			err = f.reject(err)
			f.mu.Unlock()
			return err
		}
		fields = board.TaskFields{
			Title:           v.Title,
			UserDescription: v.UserDescription,
			AIDescription:   v.AIDescription,
			StoryPoints:     points,
		}
		if board.DiffTask(original, fields).Empty() {
			err := f.reject(board.ErrNoChanges)
			f.mu.Unlock()
			return err
		}
	}

	gen, err := f.start()
	f.mu.Unlock()
	if err != nil {
		return err
	}

	if mode == Edit {
		_, err = f.submitter.EditTask(ctx, original.ID, fields)
	} else {
		err = f.submitter.CreateTask(ctx, board.NewTask{
			Title:           v.Title,
			UserDescription: v.UserDescription,
			Status:          status,
			Model:           model,
		})
	}

	if f.finish(gen, err) && board.IsPartial(err) {
		// diff the retry against what was already written
		if t, ok := f.submitter.Task(original.ID); ok {
			f.mu.Lock()
			if f.gen == gen {
				f.original = t
			}
			f.mu.Unlock()
		}
	}
	return err
}
