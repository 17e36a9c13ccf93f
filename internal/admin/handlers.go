package admin

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nao-namake/bitbank-decision-core/internal/logger"
)

// CycleRunner is the narrow interface the HTTP layer needs from
// cycle.Manager, so this package doesn't import cycle directly (keeps
// the dependency graph one-directional: cmd -> {cycle, admin}).
type CycleRunner interface {
	Pause(reason string) error
	Resume() error
}

// Server bundles the scheduler-trigger and admin-override gin routes.
type Server struct {
	scheduler *SchedulerVerifier
	totp      *TOTPVerifier
	runner    CycleRunner
	onTrigger func(ctx *gin.Context)
	log       *logger.Logger
}

// NewServer builds the admin/trigger HTTP surface.
func NewServer(scheduler *SchedulerVerifier, totp *TOTPVerifier, runner CycleRunner, onTrigger func(ctx *gin.Context)) *Server {
	return &Server{scheduler: scheduler, totp: totp, runner: runner, onTrigger: onTrigger, log: logger.Named("admin")}
}

// Register mounts every route this package owns onto r.
func (s *Server) Register(r *gin.Engine) {
	r.POST("/v1/cycle", s.requireSchedulerAuth, s.onTrigger)

	adminGroup := r.Group("/v1/admin", s.requireTOTP)
	adminGroup.POST("/pause", s.handlePause)
	adminGroup.POST("/resume", s.handleResume)
}

func (s *Server) requireSchedulerAuth(c *gin.Context) {
	header := c.GetHeader("Authorization")
	token := strings.TrimPrefix(header, "Bearer ")
	if token == "" || token == header {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
		return
	}
	if err := s.scheduler.Verify(c.Request.Context(), token); err != nil {
		s.log.Warnf("scheduler auth rejected: %v", err)
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	c.Next()
}

func (s *Server) requireTOTP(c *gin.Context) {
	code := c.GetHeader("X-TOTP-Code")
	if !s.totp.Validate(code) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or missing TOTP code"})
		return
	}
	c.Next()
}

type pauseRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) handlePause(c *gin.Context) {
	var req pauseRequest
	_ = c.ShouldBindJSON(&req)
	if err := s.runner.Pause(req.Reason); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "paused"})
}

func (s *Server) handleResume(c *gin.Context) {
	if err := s.runner.Resume(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "resumed"})
}
