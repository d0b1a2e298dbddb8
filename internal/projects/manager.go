// Package projects holds the signed-in user's project list. A single Manager
// is shared by every view; the list changes only through its methods.
package projects

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/sahilm/fuzzy"

	"github.com/tgienger/smartpm/internal/api"
	"github.com/tgienger/smartpm/internal/models"
	"github.com/tgienger/smartpm/internal/session"
)

// Lister reads the projects owned by a user
type Lister interface {
	ListProjects(ctx context.Context, userID string) ([]models.Project, error)
}

// ProjectAPI is the part of the indexing service that writes projects
type ProjectAPI interface {
	CreateProject(ctx context.Context, req api.CreateProjectRequest) error
	EditProject(ctx context.Context, req api.EditProjectRequest) error
	DeleteProject(ctx context.Context, projectID, userID string) error
}

// Manager owns the project collection and the search query
type Manager struct {
	lister  Lister
	api     ProjectAPI
	session *session.Session
	logger  *slog.Logger

	mu       sync.RWMutex
	projects []models.Project
	query    string
	loading  bool
	loadGen  uint64
	err      error
}

// New creates an empty manager. A nil logger uses slog.Default.
func New(lister Lister, projectAPI ProjectAPI, sess *session.Session, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		lister:  lister,
		api:     projectAPI,
		session: sess,
		logger:  logger,
	}
}

// Load refreshes the list from the store. Signed out, the list is emptied
// without a request.
func (m *Manager) Load(ctx context.Context) error {
	userID, ok := m.session.Identity()

	m.mu.Lock()
	if !ok {
		m.projects = nil
		m.mu.Unlock()
		return nil
	}
	m.loadGen++
	gen := m.loadGen
	// only show the loading state while there is nothing to show
	m.loading = len(m.projects) == 0
	m.err = nil
	m.mu.Unlock()

	projects, err := m.lister.ListProjects(ctx, userID)

	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.loadGen {
		return nil
	}
	m.loading = false
	if err != nil {
		m.err = err
		m.logger.Warn("failed to load projects", slog.String("user_id", userID), slog.Any("error", err))
		return err
	}
	m.projects = projects
	return nil
}

// Loading reports whether the first load is in flight
func (m *Manager) Loading() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loading
}

// Err returns the last load or mutation error
func (m *Manager) Err() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.err
}

// ClearErr forgets the last error
func (m *Manager) ClearErr() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = nil
}

// Projects returns every loaded project in store order
func (m *Manager) Projects() []models.Project {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Project, len(m.projects))
	copy(out, m.projects)
	return out
}

// Project returns the project with id
func (m *Manager) Project(id string) (models.Project, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.projects {
		if p.ID == id {
			return p, true
		}
	}
	return models.Project{}, false
}

// SetQuery sets the search query applied by Visible
func (m *Manager) SetQuery(q string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.query = q
}

// Query returns the current search query
func (m *Manager) Query() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.query
}

type nameSource []models.Project

func (s nameSource) String(i int) string { return s[i].Name }
func (s nameSource) Len() int            { return len(s) }

// Visible returns the projects whose name fuzzily matches the query, best
// match first. An empty query returns every project in store order.
func (m *Manager) Visible() []models.Project {
	m.mu.RLock()
	defer m.mu.RUnlock()

	q := strings.TrimSpace(m.query)
	if q == "" {
		out := make([]models.Project, len(m.projects))
		copy(out, m.projects)
		return out
	}

	matches := fuzzy.FindFrom(q, nameSource(m.projects))
	out := make([]models.Project, 0, len(matches))
	for _, match := range matches {
		out = append(out, m.projects[match.Index])
	}
	return out
}

// Create creates a project owned by the signed-in user and reloads. Create,
// Edit and Delete succeed once the service accepts the write; a failed reload
// is reported through Err.
func (m *Manager) Create(ctx context.Context, name, description string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrNameRequired
	}
	userID, err := m.session.RequireUser()
	if err != nil {
		return err
	}

	err = m.api.CreateProject(ctx, api.CreateProjectRequest{
		UserID:      userID,
		Name:        name,
		Description: strings.TrimSpace(description),
	})
	if err != nil {
		m.record("create project", err)
		return err
	}
	_ = m.Load(ctx)
	return nil
}

// ProjectChange holds the project fields that differ. Nil fields are unchanged.
type ProjectChange struct {
	Name        *string
	Description *string
}

// Empty reports whether nothing changed
func (c ProjectChange) Empty() bool {
	return c.Name == nil && c.Description == nil
}

// DiffProject compares trimmed values against the current project
func DiffProject(current models.Project, name, description string) ProjectChange {
	var c ProjectChange
	if v := strings.TrimSpace(name); v != strings.TrimSpace(current.Name) {
		c.Name = &v
	}
	if v := strings.TrimSpace(description); v != strings.TrimSpace(current.Description) {
		c.Description = &v
	}
	return c
}

// Edit sends the changed fields of a project and reloads
func (m *Manager) Edit(ctx context.Context, projectID, name, description string) error {
	userID, err := m.session.RequireUser()
	if err != nil {
		return err
	}
	current, ok := m.Project(projectID)
	if !ok {
		return ErrProjectNotFound
	}
	if strings.TrimSpace(name) == "" {
		return ErrNameRequired
	}
	change := DiffProject(current, name, description)
	if change.Empty() {
		return ErrNoChanges
	}

	err = m.api.EditProject(ctx, api.EditProjectRequest{
		ProjectID:   projectID,
		UserID:      userID,
		Name:        change.Name,
		Description: change.Description,
	})
	if err != nil {
		m.record("edit project", err)
		return err
	}
	_ = m.Load(ctx)
	return nil
}

// Delete deletes a project and its tasks. A project the service no longer
// knows counts as deleted.
func (m *Manager) Delete(ctx context.Context, projectID string) error {
	userID, err := m.session.RequireUser()
	if err != nil {
		return err
	}
	if err := m.api.DeleteProject(ctx, projectID, userID); err != nil {
		m.record("delete project", err)
		return err
	}

	m.mu.Lock()
	kept := m.projects[:0:0]
	for _, p := range m.projects {
		if p.ID != projectID {
			kept = append(kept, p)
		}
	}
	m.projects = kept
	m.mu.Unlock()

	_ = m.Load(ctx)
	return nil
}

func (m *Manager) record(op string, err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
	m.logger.Warn("project operation failed", slog.String("op", op), slog.Any("error", err))
}
