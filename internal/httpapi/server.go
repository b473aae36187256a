// Package httpapi exposes a read-only view of the queue over HTTP, for
// dashboards and health checks. It never mutates job state: submission,
// cancellation, and requeue stay CLI/library operations.
package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gigq/gigq/internal/gigq"
)

// ErrorResponse is the JSON body returned for any non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// Server wraps the Gin engine serving the status API.
type Server struct {
	queue      *gigq.Queue
	logger     *slog.Logger
	engine     *gin.Engine
	httpServer *http.Server
}

// NewServer builds a Server bound to addr, backed by queue. environment
// "production" runs gin in release mode; anything else runs debug mode.
func NewServer(addr string, queue *gigq.Queue, environment string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	s := &Server{queue: queue, logger: logger}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(s.requestLogger())

	engine.GET("/healthz", s.health)
	engine.GET("/jobs", s.listJobs)
	engine.GET("/jobs/:id", s.getJob)
	engine.GET("/workflows/:id", s.listWorkflowJobs)

	s.engine = engine
	s.httpServer = &http.Server{Addr: addr, Handler: engine}
	return s
}

// ListenAndServe starts the HTTP server, blocking until it stops.
func (s *Server) ListenAndServe() error {
	s.logger.Info("status API listening", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		s.logger.Debug("request", "method", c.Request.Method, "path", c.Request.URL.Path, "status", c.Writer.Status())
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) getJob(c *gin.Context) {
	id := c.Param("id")

	record, err := s.queue.GetStatus(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (s *Server) listJobs(c *gin.Context) {
	filter := gigq.ListFilter{
		Status: c.Query("status"),
	}

	jobs, err := s.queue.List(c.Request.Context(), filter)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if jobs == nil {
		jobs = []gigq.JobSummary{}
	}
	c.JSON(http.StatusOK, jobs)
}

func (s *Server) listWorkflowJobs(c *gin.Context) {
	workflowID := c.Param("id")

	jobs, err := s.queue.List(c.Request.Context(), gigq.ListFilter{WorkflowID: workflowID})
	if err != nil {
		s.respondError(c, err)
		return
	}
	if jobs == nil {
		jobs = []gigq.JobSummary{}
	}
	c.JSON(http.StatusOK, jobs)
}

func (s *Server) respondError(c *gin.Context, err error) {
	if gigqErr, ok := err.(*gigq.Error); ok && gigqErr.Kind == gigq.KindNotFound {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "not found", Details: gigqErr.Message})
		return
	}
	s.logger.Error("request failed", "error", err)
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
}
