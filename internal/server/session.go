// File: internal/server/session.go
package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/eid-agent/api/schemas"
	"github.com/xkilldash9x/eid-agent/internal/checkpoint"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Maximum message size allowed from peer.
	maxMessageSize = 32768

	// Outbound buffer; checkpoint images are the only large payloads and
	// there is at most one in flight per session.
	sendBufferSize = 256
	// Pending user requests beyond the in-flight one.
	inboxSize = 16
)

// ErrSessionClosed is returned by Publish after teardown has begun.
var ErrSessionClosed = errors.New("session is closed")

const greeting = "Connected to the E-ID assistant. Tell me what you need: register, download, or update an E-ID."

// session is one connected user: the websocket pumps, a serial task worker,
// and the checkpoint bridge. All task work for the session happens on the
// worker goroutine; captcha solutions bypass it straight to the bridge.
type session struct {
	id     string
	server *Server
	conn   *websocket.Conn
	logger *zap.Logger

	send   chan []byte
	inbox  chan string
	bridge *checkpoint.Bridge

	ctx    context.Context
	cancel context.CancelFunc

	closeOnce sync.Once
}

var _ schemas.Publisher = (*session)(nil)

func newSession(parent context.Context, srv *Server, conn *websocket.Conn) *session {
	// The session outlives the upgrade request; only explicit teardown or
	// connection loss ends it.
	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))

	id := uuid.New().String()
	s := &session{
		id:     id,
		server: srv,
		conn:   conn,
		logger: srv.logger.Named("session").With(zap.String("session_id", id[:8])),
		send:   make(chan []byte, sendBufferSize),
		inbox:  make(chan string, inboxSize),
		ctx:    ctx,
		cancel: cancel,
	}
	s.bridge = checkpoint.NewBridge(s, srv.cfg.Checkpoint.Timeout, s.logger)
	return s
}

// start launches the pumps and the worker, then blocks on the read pump so
// the HTTP handler holds the connection.
func (s *session) start() {
	go s.writePump()
	go s.worker()
	_ = s.Publish(schemas.NewAgentLog(greeting))
	s.readPump()
}

// Publish marshals one wire message onto the send queue. Safe for
// concurrent use; fails rather than blocks when the peer cannot keep up.
func (s *session) Publish(message any) error {
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal outbound message: %w", err)
	}
	select {
	case <-s.ctx.Done():
		return ErrSessionClosed
	case s.send <- data:
		return nil
	default:
		return fmt.Errorf("session send buffer full")
	}
}

// readPump consumes inbound frames until the connection dies. It never
// blocks on task work: user messages queue to the worker and captcha
// solutions resolve the bridge directly, so an answer can arrive while a
// task is suspended.
func (s *session) readPump() {
	defer s.close()

	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.logger.Warn("Websocket read error.", zap.Error(err))
			}
			return
		}

		var msg schemas.InboundMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.logger.Warn("Discarding malformed inbound message.", zap.Error(err))
			continue
		}

		switch msg.Type {
		case schemas.MsgUserMessage:
			select {
			case s.inbox <- msg.Text:
			default:
				_ = s.Publish(schemas.NewAgentResult(
					schemas.Failure("Too many queued requests. Please wait for the current one to finish.")))
			}
		case schemas.MsgCaptchaSolution:
			// Delivered outside the worker so a suspended task can resume.
			// With nothing pending this is a silent no-op.
			s.bridge.Deliver(msg.Code)
		default:
			s.logger.Debug("Ignoring unknown message type.", zap.String("type", msg.Type))
		}
	}
}

// writePump owns all writes to the connection.
func (s *session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case message := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.ctx.Done():
			_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// worker serializes task handling: one user message at a time per session,
// in arrival order.
func (s *session) worker() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case text := <-s.inbox:
			s.handleUserMessage(text)
		}
	}
}

// handleUserMessage drives one inbound text to its guaranteed reply: an
// ai_reply clarification or exactly one terminal agent_result. Teardown is
// the only silent exit.
func (s *session) handleUserMessage(text string) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Panic during message dispatch.", zap.Any("panic", r))
			_ = s.Publish(schemas.NewAgentResult(
				schemas.Failure("Something went wrong while handling your request. Please try again.")))
		}
	}()

	result := s.server.oracle.Classify(s.ctx, text)
	s.logger.Info("Intent classified.", zap.String("intent", string(result.Intent)))

	if prompt := clarificationFor(result); prompt != "" {
		_ = s.Publish(schemas.NewAIReply(prompt))
		return
	}

	outcome := s.server.executor.Execute(s.ctx, result, s, s.bridge)
	if s.ctx.Err() != nil {
		// Disconnect mid-task is a teardown, not an error; no Outcome.
		return
	}
	_ = s.Publish(schemas.NewAgentResult(outcome))
}

// clarificationFor returns the prompt to relay instead of starting a task,
// or "" when the intent is runnable. The oracle's own prompt wins; field
// gaps it missed get a generated one.
func clarificationFor(result schemas.IntentResult) string {
	if result.Data.MissingInfo != "" {
		return result.Data.MissingInfo
	}

	switch result.Intent {
	case schemas.IntentRegister:
		if result.Data.Name == "" || result.Data.DOB == "" || result.Data.Gender == "" ||
			result.Data.Phone == "" || result.Data.Address == "" {
			return "To register I need your full name, date of birth, gender, phone number, and address."
		}
	case schemas.IntentDownload:
		if !schemas.IsValidEID(result.Data.EID) {
			return "To download your E-ID document I need your 12-digit E-ID number."
		}
	case schemas.IntentUpdate:
		if !schemas.IsValidEID(result.Data.EID) {
			return "To update your record I need your 12-digit E-ID number."
		}
		if result.Data.Name == "" && result.Data.Phone == "" && result.Data.Address == "" {
			return "Tell me which of name, phone, or address you want to change, and the new value."
		}
	default:
		return "I can register a new E-ID, download an E-ID document, or update an existing record. What would you like to do?"
	}
	return ""
}

// close tears the session down: the in-flight task is abandoned, any
// pending checkpoint is cancelled via context, the browser session closes
// through the task's defer, and no Outcome is reported.
func (s *session) close() {
	s.closeOnce.Do(func() {
		s.cancel()
		s.conn.Close()
		s.server.dropSession(s.id)
	})
}
