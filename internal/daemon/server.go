package daemon

import (
	"context"
	"errors"
	"net/http"
	"pushsync/internal/logger"
	"pushsync/internal/model"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

type HistoryReader interface {
	GetRecent(limit int) ([]model.History, error)
	GetFailed() ([]model.History, error)
}

type ChangeLister interface {
	List() ([]string, error)
	Reset() error
}

type Server struct {
	echo      *echo.Echo
	scheduler *Scheduler
	history   HistoryReader
	changes   ChangeLister
	port      int
}

// NewServer exposes the scheduler state over HTTP. history and changes may
// be nil when the corresponding store is disabled.
func NewServer(scheduler *Scheduler, history HistoryReader, changes ChangeLister, port int) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{
		echo:      e,
		scheduler: scheduler,
		history:   history,
		changes:   changes,
		port:      port,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.echo.GET("/status", s.handleStatus)
	s.echo.GET("/tasks", s.handleTasks)
	s.echo.GET("/history", s.handleHistory)
	s.echo.GET("/changes", s.handleChanges)
	s.echo.DELETE("/changes", s.handleResetChanges)
	s.echo.POST("/stop", s.handleStop)
}

func (s *Server) Start() {
	go func() {
		addr := "127.0.0.1:" + strconv.Itoa(s.port)
		logger.Log.Info("daemon server started",
			zap.String("addr", addr))

		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Error("daemon server error", zap.Error(err))
		}
	}()
}

func (s *Server) Stop(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) handleStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, s.scheduler.Snapshot())
}

func (s *Server) handleTasks(c echo.Context) error {
	return c.JSON(http.StatusOK, s.scheduler.Snapshot().Tasks)
}

func (s *Server) handleStop(c echo.Context) error {
	s.scheduler.RequestExit()
	return c.JSON(http.StatusOK, map[string]string{"status": "stopping"})
}

func (s *Server) handleHistory(c echo.Context) error {
	if s.history == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "history disabled"})
	}

	var (
		histories []model.History
		err       error
	)

	if c.QueryParam("failed") == "true" {
		histories, err = s.history.GetFailed()
	} else {
		n := 20
		if nStr := c.QueryParam("n"); nStr != "" {
			if parsed, err := strconv.Atoi(nStr); err == nil && parsed > 0 {
				n = parsed
			}
		}
		histories, err = s.history.GetRecent(n)
	}

	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, histories)
}

func (s *Server) handleChanges(c echo.Context) error {
	if s.changes == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "change list disabled"})
	}

	paths, err := s.changes.List()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, paths)
}

func (s *Server) handleResetChanges(c echo.Context) error {
	if s.changes == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "change list disabled"})
	}

	if err := s.changes.Reset(); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.NoContent(http.StatusNoContent)
}
