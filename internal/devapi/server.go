// Package devapi is a local stand-in for the indexing service and the hosted
// table store. It serves the /index endpoints and the /rest/v1 table routes
// the client uses from a sqlite database, so the client runs with no external
// services.
package devapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tgienger/smartpm/internal/db"
)

// Server provides the HTTP handlers of the stand-in backend.
type Server struct {
	engine   *gin.Engine
	db       *db.DB
	enricher Enricher
	logger   *slog.Logger
}

// New constructs the HTTP server with routes and middleware configured.
func New(database *db.DB, enricher Enricher, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if enricher == nil {
		enricher = StubEnricher{}
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	srv := &Server{
		engine:   router,
		db:       database,
		enricher: enricher,
		logger:   logger,
	}
	router.Use(srv.requestLogger())

	srv.registerRoutes()
	return srv
}

// Engine exposes the underlying Gin engine.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// registerRoutes wires the index and table handlers together.
func (s *Server) registerRoutes() {
	index := s.engine.Group("/index")
	{
		index.GET("/health", s.handleHealth)
		index.POST("/project", s.handleCreateProject)
		index.PUT("/edit/project", s.handleEditProject)
		index.DELETE("/delete/project", s.handleDeleteProject)
		index.POST("/task/enrich_and_index", s.handleEnrichAndIndex)
		index.PUT("/edit/task", s.handleEditTask)
		index.DELETE("/delete/task", s.handleDeleteTask)
		index.POST("/project/handbook/pdf", s.handleHandbookPDF)
	}

	rest := s.engine.Group("/rest/v1")
	{
		rest.GET("/projects", s.handleSelectProjects)
		rest.GET("/tasks", s.handleSelectTasks)
		rest.PATCH("/tasks", s.handleUpdateTasks)
	}
}

// requestLogger logs every request at debug level and failures at warn.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		attrs := []any{
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("latency", time.Since(start)),
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			s.logger.Warn("request failed", attrs...)
			return
		}
		s.logger.Debug("request", attrs...)
	}
}

// respondError logs the error and returns it as the detail of a JSON body.
func (s *Server) respondError(c *gin.Context, status int, detail string, err error) {
	if err != nil {
		s.logger.Error("request failed", slog.String("path", c.FullPath()), slog.String("error", err.Error()))
	}
	c.JSON(status, gin.H{"ok": false, "detail": detail})
}

// respondSuccess wraps a payload in the index response envelope.
func respondSuccess(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, gin.H{"ok": true, "data": payload})
}
