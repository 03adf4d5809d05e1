// Package protocol defines the line-delimited JSON wire format: the inbound
// command envelope and every server-to-client message type.
package protocol

import "github.com/udisondev/chessd/internal/rules"

// Server-to-client message types.
const (
	TypeSessionCreated = "session_created"
	TypeJoinSuccess    = "join_success"
	TypePlayerJoined   = "player_joined"
	TypeGameReady      = "game_ready"
	TypeGameStarted    = "game_started"
	TypeMoveResult     = "move_result"
	TypeBoardDisplay   = "board_display"
	TypeUploadProgress = "upload_progress"
	TypeGameComplete   = "game_complete"
	TypeGameOver       = "game_over"
	TypeGameReset      = "game_reset"
	TypeStatus         = "status"
	TypeError          = "error"
)

// Client-to-server commands.
const (
	CmdJoinGame     = "join_game"
	CmdStartGame    = "start_game"
	CmdMakeMove     = "make_move"
	CmdEndGame      = "end_game"
	CmdDisplayBoard = "display_board"
	CmdGetStatus    = "get_status"
	CmdUploadGame   = "upload_game"
)

// Envelope is one inbound command line.
type Envelope struct {
	Command      string          `json:"command"`
	SinglePlayer bool            `json:"single_player"`
	Color        string          `json:"color"`
	Move         string          `json:"move"`
	Metadata     *UploadMetadata `json:"metadata"`
	Data         string          `json:"data"`
}

// UploadMetadata describes one upload_game chunk.
type UploadMetadata struct {
	Filename     string `json:"filename"`
	TotalSize    int    `json:"total_size"`
	ChunksTotal  int    `json:"chunks_total"`
	ChunkCurrent int    `json:"chunk_current"`
}

// SessionCreated is the handshake, always the first line on a new connection.
type SessionCreated struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
}

// JoinSuccess acknowledges a seated player.
type JoinSuccess struct {
	Type         string `json:"type"`
	SessionID    string `json:"session_id"`
	Color        string `json:"color"`
	Status       string `json:"status"`
	SinglePlayer bool   `json:"single_player"`
}

// PlayerJoined is broadcast to the other sessions when a slot fills.
type PlayerJoined struct {
	Type   string `json:"type"`
	Color  string `json:"color"`
	Status string `json:"status"`
}

// GameReady is broadcast to all sessions once both slots are occupied.
type GameReady struct {
	Type         string `json:"type"`
	Status       string `json:"status"`
	WhitePlayer  string `json:"white_player"`
	BlackPlayer  string `json:"black_player"`
	SinglePlayer bool   `json:"single_player"`
}

// GameStarted announces the transition to play.
type GameStarted struct {
	Type        string `json:"type"`
	Status      string `json:"status"`
	WhitePlayer string `json:"white_player"`
	BlackPlayer string `json:"black_player"`
}

// BoardInfo carries the post-move position.
type BoardInfo struct {
	FEN string `json:"fen"`
}

// MoveResult reports one accepted move.
type MoveResult struct {
	Type   string        `json:"type"`
	Strike *rules.Strike `json:"strike"`
	Board  BoardInfo     `json:"board"`
}

// BoardData wraps the rendered board.
type BoardData struct {
	Board string `json:"board"`
}

// BoardDisplay carries the formatted ASCII board.
type BoardDisplay struct {
	Type   string    `json:"type"`
	Status string    `json:"status"`
	Data   BoardData `json:"data"`
}

// UploadProgress acks one non-final upload chunk.
type UploadProgress struct {
	Type          string `json:"type"`
	Filename      string `json:"filename"`
	ChunkReceived int    `json:"chunk_received"`
	ChunksTotal   int    `json:"chunks_total"`
	Percent       int    `json:"percent"`
}

// GameComplete terminates a replay that did not end the game.
type GameComplete struct {
	Type       string `json:"type"`
	Filename   string `json:"filename"`
	TotalMoves int    `json:"total_moves"`
}

// GameOver terminates a game reaching checkmate or stalemate during replay.
type GameOver struct {
	Type     string `json:"type"`
	Result   string `json:"result"`
	Filename string `json:"filename,omitempty"`
}

// GameReset announces a full reset back to WaitingForPlayers.
type GameReset struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
	Status string `json:"status"`
}

// Status replies to get_status with a human-readable status line.
type Status struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Error is the reply for every rejected command.
type Error struct {
	Type    string `json:"type"`
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// NewError builds an error reply.
func NewError(msg string) *Error {
	return &Error{Type: TypeError, Error: msg}
}
