package board

import (
	"context"
	"errors"
	"strings"

	"github.com/tgienger/smartpm/internal/api"
	"github.com/tgienger/smartpm/internal/models"
	"github.com/tgienger/smartpm/internal/store"
)

// TaskFields are the editable values of a task as entered by the user. A nil
// StoryPoints leaves the estimate unchanged.
type TaskFields struct {
	Title           string
	UserDescription string
	AIDescription   string
	StoryPoints     *int
}

// TextChange holds the textual fields that differ. Nil fields are unchanged.
type TextChange struct {
	Title           *string
	UserDescription *string
	AIDescription   *string
}

// Empty reports whether no text field changed
func (c TextChange) Empty() bool {
	return c.Title == nil && c.UserDescription == nil && c.AIDescription == nil
}

// Change is the difference between a task and the values entered for it
type Change struct {
	StoryPoints *int
	Text        TextChange
}

// Empty reports whether nothing changed
func (c Change) Empty() bool {
	return c.StoryPoints == nil && c.Text.Empty()
}

// DiffTask compares trimmed field values against the current task
func DiffTask(current models.Task, fields TaskFields) Change {
	var c Change

	if v := strings.TrimSpace(fields.Title); v != strings.TrimSpace(current.Title) {
		c.Text.Title = &v
	}
	if v := strings.TrimSpace(fields.UserDescription); v != strings.TrimSpace(current.UserDescription) {
		c.Text.UserDescription = &v
	}
	if v := strings.TrimSpace(fields.AIDescription); v != strings.TrimSpace(current.AIText()) {
		c.Text.AIDescription = &v
	}
	if fields.StoryPoints != nil && (current.StoryPoints == nil || *current.StoryPoints != *fields.StoryPoints) {
		p := *fields.StoryPoints
		c.StoryPoints = &p
	}
	return c
}

// EditResult reports which half of an edit was written
type EditResult struct {
	PointsUpdated bool
	TextUpdated   bool
}

// EditTask writes the fields that differ from the task's current values.
// Story points go straight to the store and text goes through the indexing
// service; the two writes are independent. When one fails the other is kept
// and a *PartialEditError is returned. Any successful write triggers a reload.
func (b *Board) EditTask(ctx context.Context, taskID string, fields TaskFields) (EditResult, error) {
	var res EditResult

	current, ok := b.Task(taskID)
	if !ok {
		return res, ErrTaskNotFound
	}
	if strings.TrimSpace(fields.Title) == "" {
		return res, ErrEmptyTitle
	}
	if fields.StoryPoints != nil {
		if err := store.ValidatePoints(*fields.StoryPoints); err != nil {
			return res, err
		}
	}
	change := DiffTask(current, fields)
	if change.Empty() {
		return res, ErrNoChanges
	}
	if _, err := b.session.RequireUser(); err != nil {
		return res, err
	}

	var perr PartialEditError
	if change.StoryPoints != nil {
		if err := b.UpdateStoryPoints(ctx, taskID, *change.StoryPoints); err != nil {
			perr.PointsErr = err
		} else {
			res.PointsUpdated = true
		}
	}
	if !change.Text.Empty() {
		if err := b.UpdateText(ctx, taskID, change.Text); err != nil {
			perr.TextErr = err
		} else {
			res.TextUpdated = true
		}
	}

	if res.PointsUpdated || res.TextUpdated {
		// a failed reload is recorded by Load and does not undo the edit
		_ = b.Load(ctx)
	}

	if perr.PointsErr != nil || perr.TextErr != nil {
		perr.Result = res
		b.record("edit task", &perr)
		return res, &perr
	}
	return res, nil
}

// UpdateStoryPoints writes a task's estimate to the store and applies it to
// the board
func (b *Board) UpdateStoryPoints(ctx context.Context, taskID string, points int) error {
	if err := store.ValidatePoints(points); err != nil {
		return err
	}
	if _, err := b.session.RequireUser(); err != nil {
		return err
	}
	if err := b.store.UpdateTaskStoryPoints(ctx, taskID, points); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if i := b.indexOf(taskID); i >= 0 {
		b.tasks[i].StoryPoints = &points
	}
	return nil
}

// UpdateText sends the changed text fields of a task to the indexing service
// and applies them to the board
func (b *Board) UpdateText(ctx context.Context, taskID string, change TextChange) error {
	if change.Empty() {
		return ErrNoChanges
	}
	if change.Title != nil && strings.TrimSpace(*change.Title) == "" {
		return ErrEmptyTitle
	}
	userID, err := b.session.RequireUser()
	if err != nil {
		return err
	}

	err = b.api.EditTask(ctx, api.EditTaskRequest{
		TaskID:          taskID,
		ProjectID:       b.projectID,
		UserID:          userID,
		Title:           change.Title,
		UserDescription: change.UserDescription,
		AIDescription:   change.AIDescription,
	})
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if i := b.indexOf(taskID); i >= 0 {
		t := &b.tasks[i]
		if change.Title != nil {
			t.Title = *change.Title
		}
		if change.UserDescription != nil {
			t.UserDescription = *change.UserDescription
		}
		if change.AIDescription != nil {
			ai := *change.AIDescription
			t.AIDescription = &ai
		}
	}
	return nil
}

// IsPartial reports whether err is an edit that was only partly written
func IsPartial(err error) bool {
	var perr *PartialEditError
	return errors.As(err, &perr) && (perr.Result.PointsUpdated || perr.Result.TextUpdated)
}
