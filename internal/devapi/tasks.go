package devapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tgienger/smartpm/internal/db"
	"github.com/tgienger/smartpm/internal/models"
	"github.com/tgienger/smartpm/internal/store"
)

type enrichRequest struct {
	ProjectID       string               `json:"projectId"`
	Title           string               `json:"task_title"`
	UserDescription string               `json:"user_description"`
	Status          string               `json:"status"`
	Model           models.ModelSelector `json:"selected_model"`
	UserID          string               `json:"userId"`
}

type editTaskRequest struct {
	TaskID          string  `json:"taskId"`
	ProjectID       string  `json:"projectId"`
	UserID          string  `json:"userId"`
	Title           *string `json:"task_title"`
	UserDescription *string `json:"user_description"`
	AIDescription   *string `json:"ai_description"`
}

type deleteTaskRequest struct {
	TaskID    string `json:"taskId"`
	ProjectID string `json:"projectId"`
}

// handleEnrichAndIndex creates a task with a generated description and
// estimate.
func (s *Server) handleEnrichAndIndex(c *gin.Context) {
	var req enrichRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		s.respondError(c, http.StatusBadRequest, "Task title is required", nil)
		return
	}

	enriched := s.enricher.Enrich(req.Title, req.UserDescription, req.Model)
	points := enriched.StoryPoints
	task, err := s.db.CreateTask(c.Request.Context(), models.Task{
		ProjectID:       req.ProjectID,
		Title:           req.Title,
		UserDescription: req.UserDescription,
		AIDescription:   &enriched.AIDescription,
		StoryPoints:     &points,
		Status:          models.ParseStatus(req.Status),
	})
	if err != nil {
		s.respondStoreError(c, err)
		return
	}

	s.logger.Info("task indexed",
		"task_id", task.ID,
		"project_id", task.ProjectID,
		"model", string(req.Model),
		"story_points", points,
	)
	respondSuccess(c, gin.H{"task": task})
}

// handleEditTask applies a partial text update. When the title or
// description changes without an explicit AI description, the AI description
// is generated again.
func (s *Server) handleEditTask(c *gin.Context) {
	var req editTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := c.Request.Context()
	current, err := s.db.GetTask(ctx, req.TaskID)
	if err == nil && current.ProjectID != req.ProjectID {
		err = store.ErrTaskNotFound
	}
	if errors.Is(err, store.ErrTaskNotFound) {
		s.respondError(c, http.StatusNotFound, fmt.Sprintf("Task %s not found", req.TaskID), nil)
		return
	}
	if err != nil {
		s.respondStoreError(c, err)
		return
	}

	text := db.TaskText{
		Title:           req.Title,
		UserDescription: req.UserDescription,
		AIDescription:   req.AIDescription,
	}
	if text.AIDescription == nil && (req.Title != nil || req.UserDescription != nil) {
		title := current.Title
		if req.Title != nil {
			title = *req.Title
		}
		desc := current.UserDescription
		if req.UserDescription != nil {
			desc = *req.UserDescription
		}
		regenerated := s.enricher.Enrich(title, desc, models.DefaultModel).AIDescription
		text.AIDescription = &regenerated
	}

	if err := s.db.UpdateTaskText(ctx, req.TaskID, req.ProjectID, text); err != nil {
		s.respondStoreError(c, err)
		return
	}
	respondSuccess(c, gin.H{"taskId": req.TaskID})
}

// handleDeleteTask removes a task from its project.
func (s *Server) handleDeleteTask(c *gin.Context) {
	var req deleteTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := s.db.DeleteTask(c.Request.Context(), req.TaskID, req.ProjectID); err != nil {
		s.respondStoreError(c, err)
		return
	}
	respondSuccess(c, gin.H{"status": "deleted"})
}
