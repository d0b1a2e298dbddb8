package devapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tgienger/smartpm/internal/models"
	"github.com/tgienger/smartpm/internal/store"
)

type createProjectRequest struct {
	UserID      string `json:"userId"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type editProjectRequest struct {
	ProjectID   string  `json:"projectId"`
	UserID      string  `json:"userId"`
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

type projectRef struct {
	ProjectID string `json:"projectId"`
	UserID    string `json:"userId"`
}

type handbookRequest struct {
	UserID    string               `json:"userId"`
	ProjectID string               `json:"projectId"`
	Model     models.ModelSelector `json:"selected_model"`
}

// handleHealth reports that the index is ready.
func (s *Server) handleHealth(c *gin.Context) {
	respondSuccess(c, gin.H{"service": "index"})
}

// handleCreateProject creates a project owned by the requesting user.
func (s *Server) handleCreateProject(c *gin.Context) {
	var req createProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		s.respondError(c, http.StatusBadRequest, "Project name is required", nil)
		return
	}
	if req.UserID == "" {
		s.respondError(c, http.StatusBadRequest, "userId is required", nil)
		return
	}

	project, err := s.db.CreateProject(c.Request.Context(), req.UserID, req.Name, req.Description)
	if err != nil {
		s.respondStoreError(c, err)
		return
	}
	respondSuccess(c, gin.H{"project": project})
}

// handleEditProject renames or re-describes a project.
func (s *Server) handleEditProject(c *gin.Context) {
	var req editProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ProjectID == "" {
		s.respondError(c, http.StatusBadRequest, "projectId is required", nil)
		return
	}

	err := s.db.UpdateProject(c.Request.Context(), req.ProjectID, req.UserID, req.Name, req.Description)
	if err != nil {
		s.respondStoreError(c, err)
		return
	}
	respondSuccess(c, gin.H{"projectId": req.ProjectID})
}

// handleDeleteProject removes a project and all of its tasks.
func (s *Server) handleDeleteProject(c *gin.Context) {
	var req projectRef
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := s.db.DeleteProject(c.Request.Context(), req.ProjectID, req.UserID); err != nil {
		s.respondStoreError(c, err)
		return
	}
	respondSuccess(c, gin.H{"status": "deleted"})
}

// handleHandbookPDF renders the project and its tasks as a PDF document.
func (s *Server) handleHandbookPDF(c *gin.Context) {
	var req handbookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := c.Request.Context()
	project, err := s.db.GetProject(ctx, req.ProjectID)
	if err == nil && project.OwnerID != req.UserID {
		err = store.ErrProjectNotFound
	}
	if err != nil {
		s.respondStoreError(c, err)
		return
	}

	tasks, err := s.db.ListTasks(ctx, project.ID)
	if err != nil {
		s.respondStoreError(c, err)
		return
	}

	c.Data(http.StatusOK, "application/pdf", renderPDF(handbookLines(*project, tasks)))
}

// handbookLines lays out the handbook text: the project header followed by
// one section per board column.
func handbookLines(project models.Project, tasks []models.Task) []string {
	lines := []string{project.Name, ""}
	if project.Description != "" {
		lines = append(lines, project.Description, "")
	}

	for _, status := range models.Statuses {
		lines = append(lines, status.Label())
		n := 0
		for _, t := range tasks {
			if t.Status != status {
				continue
			}
			n++
			points := "N/A"
			if t.StoryPoints != nil {
				points = fmt.Sprint(*t.StoryPoints)
			}
			lines = append(lines, fmt.Sprintf("- %s (%s points)", t.Title, points))
			if t.UserDescription != "" {
				lines = append(lines, "  "+t.UserDescription)
			}
			if ai := t.AIText(); ai != "" {
				lines = append(lines, "  "+ai)
			}
		}
		if n == 0 {
			lines = append(lines, "  No tasks")
		}
		lines = append(lines, "")
	}
	return lines
}

// respondStoreError maps database errors onto status codes and details.
func (s *Server) respondStoreError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrProjectNotFound):
		s.respondError(c, http.StatusNotFound, "Project not found", nil)
	case errors.Is(err, store.ErrTaskNotFound):
		s.respondError(c, http.StatusNotFound, "Task not found", nil)
	case errors.Is(err, store.ErrEmptyName),
		errors.Is(err, store.ErrEmptyTitle),
		errors.Is(err, store.ErrMissingOwner),
		errors.Is(err, store.ErrInvalidStatus),
		errors.Is(err, store.ErrInvalidPoints):
		s.respondError(c, http.StatusBadRequest, err.Error(), nil)
	default:
		s.respondError(c, http.StatusInternalServerError, "Internal server error", err)
	}
}
