// Package game holds the shared game coordinator: the player-slot registry,
// the game lifecycle state machine, and the adaptation layer over the rules
// engine. All mutating operations run under a single mutex; state transitions
// are linearizable.
package game

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/udisondev/chessd/internal/parser"
	"github.com/udisondev/chessd/internal/protocol"
	"github.com/udisondev/chessd/internal/rules"
)

// State is the game lifecycle tag. All game substate lives in the
// Coordinator; the tag itself carries no data.
type State int

const (
	WaitingForPlayers State = iota
	ReadyToStart
	InProgress
	GameOver
)

func (s State) String() string {
	switch s {
	case WaitingForPlayers:
		return "WaitingForPlayers"
	case ReadyToStart:
		return "ReadyToStart"
	case InProgress:
		return "InProgress"
	case GameOver:
		return "GameOver"
	}
	return "Unknown"
}

// Rejection reasons. The message text is what goes on the wire.
var (
	ErrInvalidColor   = errors.New("Invalid color")
	ErrWhiteSlotTaken = errors.New("White player slot already taken")
	ErrBlackSlotTaken = errors.New("Black player slot already taken")
	ErrJoinState      = errors.New("Cannot join: game already started")
	ErrStartState     = errors.New("Game is not ready to start")
	ErrNotSeated      = errors.New("Only seated players can start the game")
	ErrNoGame         = errors.New("No game in progress")
	ErrInvalidMove    = errors.New("Invalid move")
)

// Broadcast is a fan-out intent produced by a state transition. The caller
// emits it through the server callbacks after the coordinator returns.
type Broadcast struct {
	Message any
	ToAll   bool
}

// Coordinator owns the chess engine, the player slots, and the state machine.
// There is exactly one per server.
type Coordinator struct {
	mu        sync.Mutex
	state     State
	white     string // session id, "" when vacant
	black     string
	engine    *rules.Engine
	startedAt time.Time
}

// NewCoordinator returns a coordinator in WaitingForPlayers with both slots
// empty and the engine at the opening position.
func NewCoordinator() *Coordinator {
	return &Coordinator{
		state:  WaitingForPlayers,
		engine: rules.NewEngine(),
	}
}

// State returns the current lifecycle state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Seats returns the current slot occupants.
func (c *Coordinator) Seats() (white, black string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.white, c.black
}

// ElapsedSeconds reports truncated seconds since the game entered InProgress,
// or 0 when no game has started.
func (c *Coordinator) ElapsedSeconds() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.startedAt.IsZero() {
		return 0
	}
	return int64(time.Since(c.startedAt).Seconds())
}

// Join seats a player. In single-player mode both slots bind to the same
// session. Re-join by the same session to its own slot is idempotent.
func (c *Coordinator) Join(sessionID, color string, singlePlayer bool) (*protocol.JoinSuccess, *Broadcast, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != WaitingForPlayers {
		return nil, nil, ErrJoinState
	}
	if color != "white" && color != "black" {
		return nil, nil, ErrInvalidColor
	}

	if singlePlayer {
		c.white = sessionID
		c.black = sessionID
	} else if color == "white" {
		if c.white != "" && c.white != sessionID {
			return nil, nil, ErrWhiteSlotTaken
		}
		c.white = sessionID
	} else {
		if c.black != "" && c.black != sessionID {
			return nil, nil, ErrBlackSlotTaken
		}
		c.black = sessionID
	}

	single := c.white != "" && c.white == c.black
	slog.Info("player joined", "session", sessionID, "color", color, "single_player", single)

	var bcast *Broadcast
	if c.white != "" && c.black != "" {
		c.state = ReadyToStart
		slog.Info("state transition", "from", WaitingForPlayers, "to", c.state)
		bcast = &Broadcast{
			ToAll: true,
			Message: &protocol.GameReady{
				Type:         protocol.TypeGameReady,
				Status:       "Both players joined. You can now start the game!",
				WhitePlayer:  c.white,
				BlackPlayer:  c.black,
				SinglePlayer: single,
			},
		}
	} else {
		bcast = &Broadcast{
			Message: &protocol.PlayerJoined{
				Type:   protocol.TypePlayerJoined,
				Color:  color,
				Status: c.statusLocked(),
			},
		}
	}

	reply := &protocol.JoinSuccess{
		Type:         protocol.TypeJoinSuccess,
		SessionID:    sessionID,
		Color:        color,
		Status:       c.statusLocked(),
		SinglePlayer: single,
	}
	return reply, bcast, nil
}

// Start transitions ReadyToStart to InProgress. Only a seated player may
// start; the engine is reset and the game timer begins.
func (c *Coordinator) Start(sessionID string) (*protocol.GameStarted, *Broadcast, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != ReadyToStart {
		return nil, nil, ErrStartState
	}
	if sessionID != c.white && sessionID != c.black {
		return nil, nil, ErrNotSeated
	}

	c.engine.Reset()
	c.state = InProgress
	c.startedAt = time.Now()
	slog.Info("game started", "white", c.white, "black", c.black)

	msg := &protocol.GameStarted{
		Type:        protocol.TypeGameStarted,
		Status:      c.statusLocked(),
		WhitePlayer: c.white,
		BlackPlayer: c.black,
	}
	return msg, &Broadcast{Message: msg}, nil
}

// Move applies one parsed move. On checkmate or stalemate the state machine
// transitions to GameOver.
func (c *Coordinator) Move(mv parser.Move) (*protocol.MoveResult, *Broadcast, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != InProgress {
		return nil, nil, ErrNoGame
	}

	strike, err := c.engine.Apply(mv)
	if err != nil {
		slog.Debug("move rejected", "notation", mv.Notation, "error", err)
		return nil, nil, ErrInvalidMove
	}

	slog.Info("move applied",
		"color", strike.Color,
		"piece", strike.Piece,
		"from", strike.CaseSrc,
		"to", strike.CaseDest,
		"strike", strike.StrikeNumber)

	if strike.Checkmate || strike.Stalemate {
		c.state = GameOver
		slog.Info("state transition", "from", InProgress, "to", c.state)
	}

	res := &protocol.MoveResult{
		Type:   protocol.TypeMoveResult,
		Strike: strike,
		Board:  protocol.BoardInfo{FEN: c.engine.FEN()},
	}
	return res, &Broadcast{Message: res}, nil
}

// End resets the game from any state back to WaitingForPlayers.
func (c *Coordinator) End(sessionID string) (*protocol.GameReset, *Broadcast, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	slog.Info("game ended", "session", sessionID, "state", c.state)
	c.resetLocked()

	msg := &protocol.GameReset{
		Type:   protocol.TypeGameReset,
		Reason: "ended_by_player",
		Status: c.statusLocked(),
	}
	return msg, &Broadcast{Message: msg}, nil
}

// Board returns the formatted board. Only legal while a game is in progress.
func (c *Coordinator) Board() (*protocol.BoardDisplay, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != InProgress {
		return nil, ErrNoGame
	}
	return &protocol.BoardDisplay{
		Type:   protocol.TypeBoardDisplay,
		Status: "ok",
		Data:   protocol.BoardData{Board: c.engine.FormattedBoard()},
	}, nil
}

// Disconnect handles a session going away. If the session held either slot
// the game fully resets and a game_reset broadcast intent is returned for the
// remaining sessions; otherwise it is a no-op on the state machine.
func (c *Coordinator) Disconnect(sessionID string) (*Broadcast, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if sessionID != c.white && sessionID != c.black {
		return nil, false
	}

	slog.Info("seated player disconnected, resetting game", "session", sessionID)
	c.resetLocked()

	return &Broadcast{
		Message: &protocol.GameReset{
			Type:   protocol.TypeGameReset,
			Reason: "all_players_disconnected",
			Status: c.statusLocked(),
		},
	}, true
}

// StatusMessage returns the human-readable status line for get_status.
func (c *Coordinator) StatusMessage() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

func (c *Coordinator) resetLocked() {
	old := c.state
	c.white = ""
	c.black = ""
	c.engine.Reset()
	c.state = WaitingForPlayers
	c.startedAt = time.Time{}
	if old != WaitingForPlayers {
		slog.Info("state transition", "from", old, "to", c.state)
	}
}

func (c *Coordinator) statusLocked() string {
	switch c.state {
	case WaitingForPlayers:
		switch {
		case c.white != "" && c.black == "":
			return "Player 1 (White) joined. Waiting for Player 2 (Black)"
		case c.black != "" && c.white == "":
			return "Player 1 (Black) joined. Waiting for Player 2 (White)"
		default:
			return "Waiting for players to join"
		}
	case ReadyToStart:
		return "Both players joined. Wait for start command to be sent by a player"
	case InProgress:
		if c.engine.CurrentSide() == "white" {
			return "Game in progress - White's turn"
		}
		return "Game in progress - Black's turn"
	}
	return "Game over"
}
