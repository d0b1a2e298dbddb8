// Package store defines the table store the client reads projects and tasks
// from. Two implementations exist: postgrest talks to the hosted store over
// HTTP and db keeps the same tables in a local sqlite file.
package store

import (
	"context"
	"errors"

	"github.com/tgienger/smartpm/internal/models"
)

var (
	ErrProjectNotFound = errors.New("project not found")
	ErrTaskNotFound    = errors.New("task not found")
	ErrInvalidStatus   = errors.New("invalid task status")
	ErrInvalidPoints   = errors.New("story points must be a non-negative integer")
	ErrEmptyName       = errors.New("project name must not be empty")
	ErrEmptyTitle      = errors.New("task title must not be empty")
	ErrMissingOwner    = errors.New("project owner must not be empty")
)

// TableStore is the direct row access the client performs against the
// projects and tasks tables
type TableStore interface {
	ListProjects(ctx context.Context, userID string) ([]models.Project, error)
	GetProject(ctx context.Context, projectID string) (*models.Project, error)
	ListTasks(ctx context.Context, projectID string) ([]models.Task, error)
	UpdateTaskStatus(ctx context.Context, taskID string, status models.Status) error
	UpdateTaskStoryPoints(ctx context.Context, taskID string, points int) error
}

// ValidateStatus rejects anything outside the four board statuses
func ValidateStatus(s models.Status) error {
	if !s.Valid() {
		return ErrInvalidStatus
	}
	return nil
}

// ValidatePoints rejects negative estimates
func ValidatePoints(points int) error {
	if points < 0 {
		return ErrInvalidPoints
	}
	return nil
}
