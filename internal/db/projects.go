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

// CreateProject creates a new project owned by userID
func (db *DB) CreateProject(ctx context.Context, userID, name, description string) (*models.Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, store.ErrEmptyName
	}
	if userID == "" {
		return nil, store.ErrMissingOwner
	}

	id := uuid.NewString()
	_, err := db.ExecContext(ctx, `
		INSERT INTO projects (id, name, description, user_id) VALUES (?, ?, ?, ?)
	`, id, name, strings.TrimSpace(description), userID)
	if err != nil {
		return nil, fmt.Errorf("insert project: %w", err)
	}

	return db.GetProject(ctx, id)
}

// GetProject retrieves a project by ID
func (db *DB) GetProject(ctx context.Context, id string) (*models.Project, error) {
	p := &models.Project{}
	err := db.QueryRowContext(ctx, `
		SELECT id, name, description, user_id
		FROM projects WHERE id = ?
	`, id).Scan(&p.ID, &p.Name, &p.Description, &p.OwnerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrProjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

// ListProjects returns the projects owned by userID in creation order
func (db *DB) ListProjects(ctx context.Context, userID string) ([]models.Project, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, name, description, user_id
		FROM projects WHERE user_id = ? ORDER BY created_at, rowid
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	projects := []models.Project{}
	for rows.Next() {
		var p models.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.OwnerID); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// UpdateProject applies a partial update. Nil fields are left unchanged.
func (db *DB) UpdateProject(ctx context.Context, id, userID string, name, description *string) error {
	current, err := db.GetProject(ctx, id)
	if err != nil {
		return err
	}
	if current.OwnerID != userID {
		return store.ErrProjectNotFound
	}

	newName := current.Name
	newDesc := current.Description
	if name != nil {
		if strings.TrimSpace(*name) == "" {
			return store.ErrEmptyName
		}
		newName = strings.TrimSpace(*name)
	}
	if description != nil {
		newDesc = strings.TrimSpace(*description)
	}

	_, err = db.ExecContext(ctx, `
		UPDATE projects SET name = ?, description = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, newName, newDesc, id)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	return nil
}

// DeleteProject deletes a project and all its tasks
func (db *DB) DeleteProject(ctx context.Context, id, userID string) error {
	res, err := db.ExecContext(ctx, "DELETE FROM projects WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrProjectNotFound
	}
	return nil
}
