package server

import (
	"bytes"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/udisondev/chessd/internal/controller"
	"github.com/udisondev/chessd/internal/protocol"
)

// sessionCounter allocates process-unique, monotonically increasing ids.
var sessionCounter atomic.Uint64

func nextSessionID() string {
	return fmt.Sprintf("session_%d", sessionCounter.Add(1))
}

const defaultSendQueueSize = 256

// Session is the per-connection state: a transport, a framing buffer, and an
// identifier. Inbound bytes arrive in arbitrary chunks and are split into
// newline-delimited messages, delivered to the controller in order.
type Session struct {
	id        string
	transport *Transport
	ctrl      *controller.Controller

	active atomic.Bool
	buf    []byte // inbound fragment carry, touched only by the receive loop

	closeCb func(sessionID string) // server-side, set before Start

	sendCh    chan []byte
	closeCh   chan struct{}
	closeOnce sync.Once
}

// NewSession creates a session around the shared controller.
func NewSession(t *Transport, ctrl *controller.Controller, sendQueueSize int) *Session {
	if sendQueueSize <= 0 {
		sendQueueSize = defaultSendQueueSize
	}
	s := &Session{
		id:        nextSessionID(),
		transport: t,
		ctrl:      ctrl,
		sendCh:    make(chan []byte, sendQueueSize),
		closeCh:   make(chan struct{}),
	}
	slog.Info("session created", "session", s.id)
	return s
}

// ID returns the immutable session identifier.
func (s *Session) ID() string {
	return s.id
}

// Active reports whether the session still accepts traffic.
func (s *Session) Active() bool {
	return s.active.Load()
}

// SetCloseCallback registers the server-side close notification.
func (s *Session) SetCloseCallback(cb func(sessionID string)) {
	s.closeCb = cb
}

// Start installs the transport callbacks, emits the session_created
// handshake as the first outbound line, and begins receiving. Idempotent.
func (s *Session) Start() {
	if !s.active.CompareAndSwap(false, true) {
		return
	}

	s.transport.SetCloseCallback(func() { s.Close() })
	go s.writePump()

	// Handshake is queued before the receive loop starts so it is always
	// the first line the peer sees.
	s.SendMessage(&protocol.SessionCreated{
		Type:      protocol.TypeSessionCreated,
		SessionID: s.id,
	})

	s.transport.Start(s.onPayload)
	slog.Debug("session started", "session", s.id)
}

// onPayload appends one raw chunk to the framing buffer and delivers every
// complete newline-delimited message. A trailing unterminated fragment stays
// in the buffer.
func (s *Session) onPayload(p []byte) {
	if !s.active.Load() {
		return
	}

	s.buf = append(s.buf, p...)
	for {
		i := bytes.IndexByte(s.buf, '\n')
		if i < 0 {
			return
		}
		line := make([]byte, i)
		copy(line, s.buf[:i])
		s.buf = s.buf[i+1:]
		s.handleLine(line)
	}
}

func (s *Session) handleLine(line []byte) {
	reply := s.ctrl.HandleMessage(s.id, line)
	if reply != nil {
		s.SendMessage(reply)
	}
}

// SendMessage encodes one message and queues it as a line.
func (s *Session) SendMessage(msg any) {
	data, err := protocol.Marshal(msg)
	if err != nil {
		slog.Error("encoding message failed", "session", s.id, "error", err)
		return
	}
	s.Send(data)
}

// Send appends the newline delimiter and queues the line for the write pump.
// A full queue means a client that cannot keep up; it is disconnected.
func (s *Session) Send(line []byte) {
	if !s.active.Load() {
		return
	}

	out := make([]byte, 0, len(line)+1)
	out = append(out, line...)
	out = append(out, '\n')

	select {
	case s.sendCh <- out:
	default:
		slog.Warn("send queue full, disconnecting slow client", "session", s.id)
		s.Close()
	}
}

// writePump is the dedicated writer goroutine: it keeps the per-session send
// path serial so per-receiver ordering holds.
func (s *Session) writePump() {
	for {
		select {
		case out := <-s.sendCh:
			s.transport.Send(out)
		case <-s.closeCh:
			return
		}
	}
}

// Close shuts the session down: transport closed, server notified, and a
// synthetic disconnect routed to the controller. Idempotent.
func (s *Session) Close() {
	if !s.active.CompareAndSwap(true, false) {
		return
	}
	s.closeOnce.Do(func() { close(s.closeCh) })
	s.transport.Close()

	if s.closeCb != nil {
		s.closeCb(s.id)
	}
	s.ctrl.RouteDisconnect(s.id)
	slog.Info("session closed", "session", s.id)
}
