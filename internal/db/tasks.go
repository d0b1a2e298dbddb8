package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/tgienger/smartpm/internal/models"
	"github.com/tgienger/smartpm/internal/store"
)

const taskColumns = `id, project_id, title, description, ai_description, story_points, status`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (models.Task, error) {
	var (
		t      models.Task
		ai     sql.NullString
		points sql.NullInt64
		status string
	)
	if err := row.Scan(&t.ID, &t.ProjectID, &t.Title, &t.UserDescription, &ai, &points, &status); err != nil {
		return models.Task{}, err
	}
	if ai.Valid {
		t.AIDescription = &ai.String
	}
	if points.Valid {
		p := int(points.Int64)
		t.StoryPoints = &p
	}
	t.Status = models.ParseStatus(status)
	return t, nil
}

// CreateTask inserts a task. The id is generated here; an invalid status
// falls back to todo.
func (db *DB) CreateTask(ctx context.Context, t models.Task) (*models.Task, error) {
	if strings.TrimSpace(t.Title) == "" {
		return nil, store.ErrEmptyTitle
	}
	if _, err := db.GetProject(ctx, t.ProjectID); err != nil {
		return nil, err
	}
	if !t.Status.Valid() {
		t.Status = models.StatusTodo
	}
	if t.StoryPoints != nil {
		if err := store.ValidatePoints(*t.StoryPoints); err != nil {
			return nil, err
		}
	}

	id := uuid.NewString()
	_, err := db.ExecContext(ctx, `
		INSERT INTO tasks (id, project_id, title, description, ai_description, story_points, status)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, id, t.ProjectID, strings.TrimSpace(t.Title), strings.TrimSpace(t.UserDescription),
		t.AIDescription, t.StoryPoints, string(t.Status))
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}

	return db.GetTask(ctx, id)
}

// GetTask retrieves a task by ID
func (db *DB) GetTask(ctx context.Context, id string) (*models.Task, error) {
	t, err := scanTask(db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return &t, nil
}

// ListTasks returns all tasks for a project in insertion order
func (db *DB) ListTasks(ctx context.Context, projectID string) ([]models.Task, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE project_id = ?
		ORDER BY created_at, rowid
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	tasks := []models.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// UpdateTaskStatus moves a task to another column
func (db *DB) UpdateTaskStatus(ctx context.Context, id string, status models.Status) error {
	if err := store.ValidateStatus(status); err != nil {
		return err
	}
	return db.execTaskUpdate(ctx, `
		UPDATE tasks SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?
	`, string(status), id)
}

// UpdateTaskStoryPoints sets the estimate of a task
func (db *DB) UpdateTaskStoryPoints(ctx context.Context, id string, points int) error {
	if err := store.ValidatePoints(points); err != nil {
		return err
	}
	return db.execTaskUpdate(ctx, `
		UPDATE tasks SET story_points = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?
	`, points, id)
}

// TaskText holds the textual task fields of a partial update. Nil fields are
// left unchanged.
type TaskText struct {
	Title           *string
	UserDescription *string
	AIDescription   *string
}

// UpdateTaskText applies a partial update of the textual fields of a task in
// projectID
func (db *DB) UpdateTaskText(ctx context.Context, id, projectID string, text TaskText) error {
	current, err := db.GetTask(ctx, id)
	if err != nil {
		return err
	}
	if current.ProjectID != projectID {
		return store.ErrTaskNotFound
	}

	title := current.Title
	desc := current.UserDescription
	ai := current.AIDescription
	if text.Title != nil {
		if strings.TrimSpace(*text.Title) == "" {
			return store.ErrEmptyTitle
		}
		title = strings.TrimSpace(*text.Title)
	}
	if text.UserDescription != nil {
		desc = strings.TrimSpace(*text.UserDescription)
	}
	if text.AIDescription != nil {
		v := strings.TrimSpace(*text.AIDescription)
		ai = &v
	}

	return db.execTaskUpdate(ctx, `
		UPDATE tasks SET title = ?, description = ?, ai_description = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, title, desc, ai, id)
}

// DeleteTask deletes a task of projectID
func (db *DB) DeleteTask(ctx context.Context, id, projectID string) error {
	res, err := db.ExecContext(ctx, "DELETE FROM tasks WHERE id = ? AND project_id = ?", id, projectID)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrTaskNotFound
	}
	return nil
}

func (db *DB) execTaskUpdate(ctx context.Context, query string, args ...any) error {
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrTaskNotFound
	}
	return nil
}
