// Package server owns the listening socket, the session registry, and the
// fan-out primitives. It accepts connections, wraps each in a transport and a
// session around the shared controller, and sweeps closed sessions
// periodically.
package server

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/udisondev/chessd/internal/config"
	"github.com/udisondev/chessd/internal/controller"
	"github.com/udisondev/chessd/internal/protocol"
)

// Server accepts client connections and routes fan-out traffic. The registry
// mutex is separate from the coordinator mutex and is only ever taken second.
type Server struct {
	cfg  config.Server
	ctrl *controller.Controller

	mu       sync.Mutex
	sessions map[string]*Session
	listener net.Listener

	cleanupMu sync.Mutex
	closed    []string // session ids whose close callback has fired
}

// New creates a server and injects its unicast/broadcast callbacks into the
// controller, so the controller never depends on the server type.
func New(cfg config.Server, ctrl *controller.Controller) *Server {
	s := &Server{
		cfg:      cfg,
		ctrl:     ctrl,
		sessions: make(map[string]*Session),
	}
	ctrl.SetSendCallbacks(s.Unicast, s.Broadcast)
	return s
}

// Addr returns the listening address, or nil before Run.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// SessionCount returns the number of registered sessions.
func (s *Server) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Run binds the configured listener and serves until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := s.listen()
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// listen opens the TCP or Unix-domain listener per config. In Unix mode any
// stale socket path is unlinked first and the socket is chmodded 0666 so
// local clients of any user can connect.
func (s *Server) listen() (net.Listener, error) {
	if s.cfg.Local {
		path := s.cfg.SocketPath
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("removing stale socket %s: %w", path, err)
		}
		ln, err := net.Listen("unix", path)
		if err != nil {
			return nil, fmt.Errorf("listening on unix socket %s: %w", path, err)
		}
		if err := os.Chmod(path, 0o666); err != nil {
			ln.Close()
			return nil, fmt.Errorf("chmod socket %s: %w", path, err)
		}
		slog.Info("server listening", "socket", path)
		return ln, nil
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.BindAddress, s.cfg.Port)
	ln, err := net.Listen("tcp4", addr)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", addr, err)
	}
	slog.Info("server listening", "address", ln.Addr())
	return ln, nil
}

// Serve accepts connections from the given listener until ctx is canceled.
// Exposed for tests with custom listeners.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-ctx.Done()
		// Closing the listener unblocks the accept loop.
		ln.Close()
		s.closeAllSessions()
		if s.cfg.Local {
			os.Remove(s.cfg.SocketPath)
		}
		return nil
	})

	g.Go(func() error {
		return s.acceptLoop(ctx, ln)
	})

	g.Go(func() error {
		s.cleanupLoop(ctx)
		return nil
	})

	return g.Wait()
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			slog.Error("failed to accept new connection", "error", err)
			continue
		}

		t := NewTransport(conn)
		sess := NewSession(t, s.ctrl, s.cfg.SendQueueSize)
		sess.SetCloseCallback(s.handleSessionClosed)

		s.mu.Lock()
		s.sessions[sess.ID()] = sess
		s.mu.Unlock()

		sess.Start()
		slog.Info("client connected", "session", sess.ID(), "remote", conn.RemoteAddr())
	}
}

// handleSessionClosed queues a closed session for the next cleanup sweep.
// The disconnect itself is routed to the controller by the session close
// path, so the coordinator reacts immediately.
func (s *Server) handleSessionClosed(sessionID string) {
	s.cleanupMu.Lock()
	s.closed = append(s.closed, sessionID)
	s.cleanupMu.Unlock()
}

// cleanupLoop periodically drains the closed-session queue and removes the
// sessions from the registry. Low priority; removal latency only delays
// freeing the session object, not the disconnect handling.
func (s *Server) cleanupLoop(ctx context.Context) {
	interval := s.cfg.CleanupInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepClosed()
		}
	}
}

func (s *Server) sweepClosed() {
	s.cleanupMu.Lock()
	if len(s.closed) == 0 {
		s.cleanupMu.Unlock()
		return
	}
	toRemove := s.closed
	s.closed = nil
	s.cleanupMu.Unlock()

	s.mu.Lock()
	for _, id := range toRemove {
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	slog.Debug("cleaned up closed sessions", "count", len(toRemove))
}

func (s *Server) closeAllSessions() {
	s.mu.Lock()
	sessions := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.Close()
	}
}

// Unicast sends one message to exactly the session with the given id.
// Silent no-op when the session is absent or inactive.
func (s *Server) Unicast(sessionID string, msg any) {
	s.mu.Lock()
	sess := s.sessions[sessionID]
	s.mu.Unlock()

	if sess == nil || !sess.Active() {
		slog.Warn("unicast dropped: session not found", "session", sessionID)
		return
	}
	sess.SendMessage(msg)
}

// Broadcast sends one message to every active session, or to every active
// session except the originating one. The message is encoded once; each
// session's serial send path preserves per-receiver ordering.
func (s *Server) Broadcast(originID string, msg any, toAll bool) {
	data, err := protocol.Marshal(msg)
	if err != nil {
		slog.Error("encoding broadcast failed", "error", err)
		return
	}

	s.mu.Lock()
	targets := make([]*Session, 0, len(s.sessions))
	for id, sess := range s.sessions {
		if !toAll && id == originID {
			continue
		}
		if !sess.Active() {
			continue
		}
		targets = append(targets, sess)
	}
	s.mu.Unlock()

	for _, sess := range targets {
		sess.Send(data)
	}
	slog.Debug("broadcast sent", "receivers", len(targets), "to_all", toAll)
}
