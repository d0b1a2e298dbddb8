package forms

import (
	"context"
	"strings"

	"github.com/tgienger/smartpm/internal/models"
	"github.com/tgienger/smartpm/internal/projects"
)

// ProjectSubmitter performs project writes; *projects.Manager implements it
type ProjectSubmitter interface {
	Create(ctx context.Context, name, description string) error
	Edit(ctx context.Context, projectID, name, description string) error
}

// ProjectValues are the entered project fields
type ProjectValues struct {
	Name        string
	Description string
}

// ProjectForm is the create/edit project dialog
type ProjectForm struct {
	lifecycle

	submitter ProjectSubmitter
	original  models.Project
	values    ProjectValues
}

// NewProjectForm creates a closed form
func NewProjectForm(submitter ProjectSubmitter) *ProjectForm {
	return &ProjectForm{submitter: submitter}
}

// OpenCreate opens the form with blank fields
func (f *ProjectForm) OpenCreate() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.begin(Create)
	f.original = models.Project{}
	f.values = ProjectValues{}
}

// OpenEdit opens the form seeded from p
func (f *ProjectForm) OpenEdit(p models.Project) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.begin(Edit)
	f.original = p
	f.values = ProjectValues{Name: p.Name, Description: p.Description}
}

// Project returns the project being edited
func (f *ProjectForm) Project() models.Project {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.original
}

// Values returns the entered fields
func (f *ProjectForm) Values() ProjectValues {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.values
}

// SetValues replaces the entered fields
func (f *ProjectForm) SetValues(v ProjectValues) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values = v
}

// Submit validates and sends the form. Validation failures never reach the
// network.
func (f *ProjectForm) Submit(ctx context.Context) error {
	f.mu.Lock()
	if !f.open {
		f.mu.Unlock()
		return ErrNotOpen
	}
	v := f.values
	mode := f.mode
	original := f.original

	if strings.TrimSpace(v.Name) == "" {
		err := f.reject(ErrNameRequired)
		f.mu.Unlock()
		return err
	}
	if mode == Edit && projects.DiffProject(original, v.Name, v.Description).Empty() {
		err := f.reject(projects.ErrNoChanges)
		f.mu.Unlock()
		return err
	}
	gen, err := f.start()
	f.mu.Unlock()
	if err != nil {
		return err
	}

	if mode == Edit {
		err = f.submitter.Edit(ctx, original.ID, v.Name, v.Description)
	} else {
		err = f.submitter.Create(ctx, v.Name, v.Description)
	}

	f.finish(gen, err)
	return err
}
