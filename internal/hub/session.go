package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 45 * time.Second
	pingPeriod = 15 * time.Second
)

// session is one live WebSocket connection. A dedicated reader goroutine
// dispatches inbound events sequentially, which preserves the client's own
// event order; outbound frames go through a buffered channel drained by a
// single writer goroutine.
type session struct {
	hub    *Hub
	conn   *websocket.Conn
	logger *slog.Logger

	id     string
	send   chan []byte
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once

	maxPayload  int64
	authTimeout time.Duration
}

func newSession(parent context.Context, h *Hub, conn *websocket.Conn, sendBuffer int, maxPayload int64, authTimeout time.Duration, logger *slog.Logger) *session {
	ctx, cancel := context.WithCancel(parent)
	return &session{
		hub:         h,
		conn:        conn,
		logger:      logger,
		id:          uuid.NewString(),
		send:        make(chan []byte, sendBuffer),
		ctx:         ctx,
		cancel:      cancel,
		maxPayload:  maxPayload,
		authTimeout: authTimeout,
	}
}

var _ Sender = (*session)(nil)

// run blocks until the connection closes.
func (s *session) run() {
	s.hub.Connect(s.id, s)
	defer s.close()

	if s.authTimeout > 0 {
		timer := time.AfterFunc(s.authTimeout, func() {
			if conn, ok := s.hub.Registry().Lookup(s.id); ok && !conn.Authenticated() {
				s.logger.Info("closing unauthenticated connection", "conn_id", s.id)
				s.close()
			}
		})
		defer timer.Stop()
	}

	go s.writeLoop()
	s.readLoop()
}

func (s *session) close() {
	s.once.Do(func() {
		s.cancel()
		_ = s.conn.Close()
		s.hub.Disconnect(s.id)
	})
}

// Send queues an outbound event. Returns false when the frame was dropped:
// the buffer is full or the connection is going away. Frames are never
// retried.
func (s *session) Send(event string, payload any) bool {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("event marshal failed", "event", event, "error", err)
		return false
	}
	frame, err := json.Marshal(Frame{Event: event, Data: data})
	if err != nil {
		return false
	}
	select {
	case <-s.ctx.Done():
		return false
	case s.send <- frame:
		return true
	default:
		return false
	}
}

func (s *session) readLoop() {
	s.conn.SetReadLimit(s.maxPayload)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		s.dispatch(data)
	}
}

func (s *session) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case frame := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				s.close()
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.close()
				return
			}
		}
	}
}

// dispatch routes one inbound frame. Panics inside a handler are confined
// to the offending event: logged, converted to a generic error frame, and
// the connection lives on.
func (s *session) dispatch(raw []byte) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("handler panic", "conn_id", s.id, "panic", r)
			s.Send(EventError, ErrorPayload{Code: CodeInternal, Message: "internal error"})
		}
	}()

	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		s.Send(EventError, ErrorPayload{Code: CodeInvalidPayload, Message: "malformed frame"})
		return
	}

	switch frame.Event {
	case EventAuthenticate:
		var p AuthenticatePayload
		if !s.decode(frame.Data, &p) {
			return
		}
		s.hub.Authenticate(s.ctx, s.id, s, p)
	case EventJoinChannel:
		var p JoinChannelPayload
		if !s.decode(frame.Data, &p) {
			return
		}
		s.hub.JoinChannel(s.ctx, s.id, s, p)
	case EventSendMessage:
		var p SendMessagePayload
		if !s.decode(frame.Data, &p) {
			return
		}
		s.hub.SendMessage(s.ctx, s.id, s, p)
	case EventTypingStart:
		var p TypingPayload
		if !s.decode(frame.Data, &p) {
			return
		}
		s.hub.TypingStart(s.id, s, p)
	case EventTypingStop:
		var p TypingPayload
		if !s.decode(frame.Data, &p) {
			return
		}
		s.hub.TypingStop(s.id, s, p)
	case EventUpdatePresence:
		var p UpdatePresencePayload
		if !s.decode(frame.Data, &p) {
			return
		}
		s.hub.UpdatePresence(s.id, s, p)
	default:
		s.Send(EventError, ErrorPayload{
			Code:    CodeInvalidPayload,
			Message: fmt.Sprintf("unknown event %q", frame.Event),
		})
	}
}

func (s *session) decode(data json.RawMessage, dst any) bool {
	if len(data) == 0 {
		s.Send(EventError, ErrorPayload{Code: CodeInvalidPayload, Message: "missing event data"})
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		s.Send(EventError, ErrorPayload{Code: CodeInvalidPayload, Message: "malformed event data"})
		return false
	}
	return true
}
