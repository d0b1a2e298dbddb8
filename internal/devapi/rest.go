package devapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tgienger/smartpm/internal/models"
	"github.com/tgienger/smartpm/internal/store"
)

// PostgREST error codes used by the table routes
const (
	codeBadFilter  = "PGRST100"
	codeBadPayload = "PGRST102"
	codeCheck      = "23514"
	codeInternal   = "XX000"
)

type taskPatch struct {
	Status      *string `json:"status"`
	StoryPoints *int    `json:"story_points"`
}

// eqFilter returns the value of an "eq." filter on column. ok is false when
// the column is not filtered.
func eqFilter(c *gin.Context, column string) (value string, ok bool, err error) {
	raw, present := c.GetQuery(column)
	if !present {
		return "", false, nil
	}
	value, found := strings.CutPrefix(raw, "eq.")
	if !found {
		return "", false, errors.New("unsupported filter on " + column)
	}
	return value, true, nil
}

// handleSelectProjects lists projects filtered by owner or id.
func (s *Server) handleSelectProjects(c *gin.Context) {
	userID, byUser, err := eqFilter(c, "user_id")
	if err != nil {
		s.respondRESTError(c, http.StatusBadRequest, codeBadFilter, err.Error(), nil)
		return
	}
	id, byID, err := eqFilter(c, "id")
	if err != nil {
		s.respondRESTError(c, http.StatusBadRequest, codeBadFilter, err.Error(), nil)
		return
	}

	ctx := c.Request.Context()
	switch {
	case byID:
		project, err := s.db.GetProject(ctx, id)
		if errors.Is(err, store.ErrProjectNotFound) || (err == nil && byUser && project.OwnerID != userID) {
			c.JSON(http.StatusOK, []models.Project{})
			return
		}
		if err != nil {
			s.respondRESTError(c, http.StatusInternalServerError, codeInternal, "query failed", err)
			return
		}
		c.JSON(http.StatusOK, []models.Project{*project})
	case byUser:
		projects, err := s.db.ListProjects(ctx, userID)
		if err != nil {
			s.respondRESTError(c, http.StatusInternalServerError, codeInternal, "query failed", err)
			return
		}
		c.JSON(http.StatusOK, projects)
	default:
		s.respondRESTError(c, http.StatusBadRequest, codeBadFilter, "a user_id or id filter is required", nil)
	}
}

// handleSelectTasks lists the tasks of one project.
func (s *Server) handleSelectTasks(c *gin.Context) {
	projectID, ok, err := eqFilter(c, "project_id")
	if err == nil && !ok {
		err = errors.New("a project_id filter is required")
	}
	if err != nil {
		s.respondRESTError(c, http.StatusBadRequest, codeBadFilter, err.Error(), nil)
		return
	}

	tasks, err := s.db.ListTasks(c.Request.Context(), projectID)
	if err != nil {
		s.respondRESTError(c, http.StatusInternalServerError, codeInternal, "query failed", err)
		return
	}
	c.JSON(http.StatusOK, tasks)
}

// handleUpdateTasks patches the status or story points of one task and
// returns the updated ids.
func (s *Server) handleUpdateTasks(c *gin.Context) {
	id, ok, err := eqFilter(c, "id")
	if err == nil && !ok {
		err = errors.New("an id filter is required")
	}
	if err != nil {
		s.respondRESTError(c, http.StatusBadRequest, codeBadFilter, err.Error(), nil)
		return
	}

	var patch taskPatch
	if err := json.NewDecoder(c.Request.Body).Decode(&patch); err != nil {
		s.respondRESTError(c, http.StatusBadRequest, codeBadPayload, "invalid request body", nil)
		return
	}
	if patch.Status == nil && patch.StoryPoints == nil {
		s.respondRESTError(c, http.StatusBadRequest, codeBadPayload, "nothing to update", nil)
		return
	}

	ctx := c.Request.Context()
	if patch.Status != nil {
		err = s.db.UpdateTaskStatus(ctx, id, models.Status(*patch.Status))
	}
	if err == nil && patch.StoryPoints != nil {
		err = s.db.UpdateTaskStoryPoints(ctx, id, *patch.StoryPoints)
	}

	switch {
	case err == nil:
		c.JSON(http.StatusOK, []gin.H{{"id": id}})
	case errors.Is(err, store.ErrTaskNotFound):
		c.JSON(http.StatusOK, []gin.H{})
	case errors.Is(err, store.ErrInvalidStatus), errors.Is(err, store.ErrInvalidPoints):
		s.respondRESTError(c, http.StatusBadRequest, codeCheck, err.Error(), nil)
	default:
		s.respondRESTError(c, http.StatusInternalServerError, codeInternal, "update failed", err)
	}
}

// respondRESTError writes a PostgREST shaped error body.
func (s *Server) respondRESTError(c *gin.Context, status int, code, message string, err error) {
	if err != nil {
		s.logger.Error("table request failed", "path", c.FullPath(), "error", err.Error())
	}
	c.JSON(status, gin.H{"message": message, "code": code})
}
