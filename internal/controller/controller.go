// Package controller parses inbound command envelopes, dispatches them to the
// game coordinator, and assembles replies. Multi-reply commands (game-file
// replay) stream their lines through server-injected callbacks instead of
// returning a value; the controller never touches a session directly.
package controller

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/udisondev/chessd/internal/game"
	"github.com/udisondev/chessd/internal/parser"
	"github.com/udisondev/chessd/internal/protocol"
)

// UnicastFunc delivers one message to exactly one session.
type UnicastFunc func(sessionID string, msg any)

// BroadcastFunc delivers one message to every active session (toAll) or to
// every active session except the originating one.
type BroadcastFunc func(originID string, msg any, toAll bool)

const defaultReplayPace = 50 * time.Millisecond

// Controller is the singleton shared by all sessions.
type Controller struct {
	coord      *game.Coordinator
	parser     parser.Parser
	replayPace time.Duration

	unicast   UnicastFunc
	broadcast BroadcastFunc

	mu      sync.Mutex
	uploads map[string]*upload // key: "<session_id>:<filename>"
}

// upload accumulates one chunked game file for one session.
type upload struct {
	filename       string
	totalSize      int
	chunksTotal    int
	chunksReceived int
	data           []byte
}

// New creates a controller. replayPace is the delay between streamed
// move_result lines during replay; <= 0 selects the default 50ms.
func New(coord *game.Coordinator, p parser.Parser, replayPace time.Duration) *Controller {
	if replayPace <= 0 {
		replayPace = defaultReplayPace
	}
	return &Controller{
		coord:      coord,
		parser:     p,
		replayPace: replayPace,
		uploads:    make(map[string]*upload),
	}
}

// SetSendCallbacks injects the server's fan-out primitives. Called once by
// the server during initialization, before any session starts.
func (c *Controller) SetSendCallbacks(unicast UnicastFunc, broadcast BroadcastFunc) {
	c.unicast = unicast
	c.broadcast = broadcast
}

// HandleMessage processes one framed line from a session and returns the
// reply to unicast back to it. A nil return means the replies were already
// streamed through the unicast callback.
func (c *Controller) HandleMessage(sessionID string, line []byte) (reply any) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic handling message", "session", sessionID, "panic", r)
			reply = protocol.NewError("Internal server error")
		}
	}()

	env, err := protocol.DecodeEnvelope(line)
	if err != nil {
		slog.Debug("malformed envelope", "session", sessionID, "error", err)
		return &protocol.Error{
			Type:    protocol.TypeError,
			Error:   "Invalid JSON format",
			Details: err.Error(),
		}
	}
	if env.Command == "" {
		return protocol.NewError("Invalid message structure")
	}

	slog.Debug("routing message", "session", sessionID, "command", env.Command)

	switch env.Command {
	case protocol.CmdJoinGame:
		return c.handleJoin(sessionID, env)
	case protocol.CmdStartGame:
		return c.handleStart(sessionID)
	case protocol.CmdMakeMove:
		return c.handleMove(sessionID, env)
	case protocol.CmdEndGame:
		return c.handleEnd(sessionID)
	case protocol.CmdDisplayBoard:
		return c.handleBoard()
	case protocol.CmdGetStatus:
		return &protocol.Status{Type: protocol.TypeStatus, Message: c.coord.StatusMessage()}
	case protocol.CmdUploadGame:
		return c.handleUploadChunk(sessionID, env)
	default:
		slog.Warn("unknown command", "session", sessionID, "command", env.Command)
		return protocol.NewError("Unknown command")
	}
}

// RouteDisconnect tells the coordinator a session is gone and drops any
// upload accumulators it owned. Called from the session close path.
func (c *Controller) RouteDisconnect(sessionID string) {
	c.mu.Lock()
	prefix := sessionID + ":"
	for key := range c.uploads {
		if strings.HasPrefix(key, prefix) {
			delete(c.uploads, key)
		}
	}
	c.mu.Unlock()

	bcast, seated := c.coord.Disconnect(sessionID)
	if seated {
		c.emit(sessionID, bcast)
	}
}

func (c *Controller) handleJoin(sessionID string, env *protocol.Envelope) any {
	if env.Color == "" {
		return protocol.NewError("Missing field: color")
	}

	reply, bcast, err := c.coord.Join(sessionID, env.Color, env.SinglePlayer)
	if err != nil {
		return protocol.NewError(err.Error())
	}
	c.emit(sessionID, bcast)
	return reply
}

func (c *Controller) handleStart(sessionID string) any {
	reply, bcast, err := c.coord.Start(sessionID)
	if err != nil {
		return protocol.NewError(err.Error())
	}
	c.emit(sessionID, bcast)
	return reply
}

func (c *Controller) handleMove(sessionID string, env *protocol.Envelope) any {
	if env.Move == "" {
		return protocol.NewError("Missing field: move")
	}

	mv, err := c.parser.ParseMove(env.Move)
	if err != nil {
		slog.Debug("unparseable move", "session", sessionID, "move", env.Move)
		return protocol.NewError("Couldn't parse move")
	}

	reply, bcast, err := c.coord.Move(mv)
	if err != nil {
		return protocol.NewError(err.Error())
	}
	c.emit(sessionID, bcast)
	return reply
}

func (c *Controller) handleEnd(sessionID string) any {
	reply, bcast, err := c.coord.End(sessionID)
	if err != nil {
		return protocol.NewError(err.Error())
	}
	c.emit(sessionID, bcast)
	return reply
}

func (c *Controller) handleBoard() any {
	reply, err := c.coord.Board()
	if err != nil {
		return protocol.NewError(err.Error())
	}
	return reply
}

// emit sends a broadcast intent through the injected callback.
func (c *Controller) emit(originID string, bcast *game.Broadcast) {
	if bcast == nil || c.broadcast == nil {
		return
	}
	c.broadcast(originID, bcast.Message, bcast.ToAll)
}

// send unicasts one streamed line back to the originating session.
func (c *Controller) send(sessionID string, msg any) {
	if c.unicast == nil {
		return
	}
	c.unicast(sessionID, msg)
}
