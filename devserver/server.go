package devserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
)

// Server serves the scripted agent endpoint. It exposes the same routes as
// the real backend: POST /api/features/:id/chat streams the script as SSE,
// and POST /api/features/:id/chat/stop aborts an in-flight playback.
type Server struct {
	echo   *echo.Echo
	script *Script

	mu     sync.Mutex
	active map[string]*playback
}

type playback struct {
	cancel context.CancelFunc
}

// New creates a server that plays script for every chat request.
func New(script *Script) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:   e,
		script: script,
		active: map[string]*playback{},
	}
	e.POST("/api/features/:id/chat", s.handleChat)
	e.POST("/api/features/:id/chat/stop", s.handleStop)
	return s
}

// Handler exposes the server's routes, e.g. for httptest.
func (s *Server) Handler() http.Handler { return s.echo }

// Start listens on addr and serves until Shutdown.
func (s *Server) Start(addr string) error {
	slog.Info("devserver listening", "addr", addr, "steps", len(s.script.Steps))
	return s.echo.Start(addr)
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) handleChat(c echo.Context) error {
	featureID := c.Param("id")

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()
	pb := &playback{cancel: cancel}
	s.mu.Lock()
	if prev := s.active[featureID]; prev != nil {
		prev.cancel()
	}
	s.active[featureID] = pb
	s.mu.Unlock()
	defer s.release(featureID, pb)

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set("Cache-Control", "no-cache")
	resp.WriteHeader(http.StatusOK)

	slog.Info("playback started", "feature", featureID)
	for _, step := range s.script.Steps {
		if step.Delay > 0 {
			select {
			case <-time.After(step.Delay):
			case <-ctx.Done():
				return nil
			}
		} else if ctx.Err() != nil {
			return nil
		}
		if _, err := fmt.Fprintf(resp, "data: %s\n\n", step.Payload); err != nil {
			return nil
		}
		resp.Flush()
	}
	fmt.Fprint(resp, "data: [DONE]\n\n")
	resp.Flush()
	return nil
}

func (s *Server) handleStop(c echo.Context) error {
	featureID := c.Param("id")

	s.mu.Lock()
	pb := s.active[featureID]
	delete(s.active, featureID)
	s.mu.Unlock()

	if pb == nil {
		return c.JSON(http.StatusOK, map[string]bool{"stopped": false})
	}
	pb.cancel()
	slog.Info("playback stopped", "feature", featureID)
	return c.JSON(http.StatusOK, map[string]bool{"stopped": true})
}

// release clears the playback registration unless a newer playback for the
// same feature has already replaced it.
func (s *Server) release(featureID string, pb *playback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active[featureID] == pb {
		delete(s.active, featureID)
	}
}
