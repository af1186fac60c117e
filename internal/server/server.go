// File: internal/server/server.go
package server

import (
	"context"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/xkilldash9x/eid-agent/api/schemas"
	"github.com/xkilldash9x/eid-agent/internal/config"
	"github.com/xkilldash9x/eid-agent/internal/oracle"
)

// TaskExecutor runs one automation task to its terminal Outcome. Satisfied
// by tasks.Agent; an interface here so orchestrator tests can script it.
type TaskExecutor interface {
	Execute(ctx context.Context, intent schemas.IntentResult, publisher schemas.Publisher, solver schemas.CheckpointSolver) schemas.Outcome
}

// Server is the session orchestrator: it owns the session registry, routes
// inbound text through the oracle, dispatches automation tasks, and relays
// checkpoint traffic.
type Server struct {
	cfg      config.Config
	oracle   oracle.Classifier
	executor TaskExecutor
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu       sync.Mutex
	sessions map[string]*session
	wg       sync.WaitGroup
}

// New builds the orchestrator.
func New(cfg config.Config, classifier oracle.Classifier, executor TaskExecutor, logger *zap.Logger) *Server {
	return &Server{
		cfg:      cfg,
		oracle:   classifier,
		executor: executor,
		logger:   logger.Named("orchestrator"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// The portal frontend connects cross-origin.
				return true
			},
		},
		sessions: make(map[string]*session),
	}
}

// Router returns the HTTP handler: the websocket endpoint plus a health
// probe.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/ws", s.handleWS)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r
}

// handleWS upgrades the connection and starts the session's pumps and
// worker.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade websocket.", zap.Error(err))
		return
	}

	sess := newSession(r.Context(), s, conn)

	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()
	s.wg.Add(1)

	s.logger.Info("Session connected.", zap.String("session_id", sess.id))
	sess.start()
}

// dropSession removes a finished session from the registry.
func (s *Server) dropSession(id string) {
	s.mu.Lock()
	if _, ok := s.sessions[id]; ok {
		delete(s.sessions, id)
		s.wg.Done()
	}
	s.mu.Unlock()
	s.logger.Info("Session disconnected.", zap.String("session_id", id))
}

// Shutdown closes every live session and waits for them to drain.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	toClose := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		toClose = append(toClose, sess)
	}
	s.mu.Unlock()

	for _, sess := range toClose {
		sess.close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
