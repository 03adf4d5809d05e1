package server

import (
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
)

const readBufSize = 4096

// Transport is a framed-byte channel over one accepted connection. It runs a
// dedicated receive loop surfacing raw payloads to a consumer and fires a
// one-shot close callback when the peer goes away.
type Transport struct {
	conn    net.Conn
	running atomic.Bool
	started atomic.Bool

	writeMu sync.Mutex

	closeCb   func()
	closeOnce sync.Once
}

// NewTransport wraps an accepted connection.
func NewTransport(conn net.Conn) *Transport {
	t := &Transport{conn: conn}
	t.running.Store(true)
	return t
}

// SetCloseCallback registers a one-shot notification fired when the peer
// closes the connection or a read error occurs. Must be set before Start.
func (t *Transport) SetCloseCallback(cb func()) {
	t.closeCb = cb
}

// Start begins the receive loop. Each successful read yields one payload
// chunk to onPayload; no framing is implied. A second call is a no-op.
func (t *Transport) Start(onPayload func([]byte)) {
	if !t.started.CompareAndSwap(false, true) {
		return
	}
	go t.readLoop(onPayload)
}

func (t *Transport) readLoop(onPayload func([]byte)) {
	buf := make([]byte, readBufSize)
	for {
		n, err := t.conn.Read(buf)
		if n > 0 {
			payload := make([]byte, n)
			copy(payload, buf[:n])
			onPayload(payload)
		}
		if err != nil {
			t.running.Store(false)
			t.notifyClosed()
			return
		}
	}
}

// Send writes one frame. Best effort: a write error marks the transport
// not-running but is not fatal to the process.
func (t *Transport) Send(p []byte) {
	if !t.running.Load() {
		return
	}
	t.writeMu.Lock()
	_, err := t.conn.Write(p)
	t.writeMu.Unlock()
	if err != nil {
		slog.Warn("transport write failed", "remote", t.conn.RemoteAddr(), "error", err)
		t.running.Store(false)
	}
}

// Running reports whether the transport can still carry traffic.
func (t *Transport) Running() bool {
	return t.running.Load()
}

// Close shuts down both directions. Idempotent. The pending read unblocks
// with an error, which fires the close callback from the receive loop.
func (t *Transport) Close() {
	t.running.Store(false)
	t.conn.Close()
}

func (t *Transport) notifyClosed() {
	t.closeOnce.Do(func() {
		if t.closeCb != nil {
			t.closeCb()
		}
	})
}
