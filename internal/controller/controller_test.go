package controller

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/chessd/internal/game"
	"github.com/udisondev/chessd/internal/parser"
	"github.com/udisondev/chessd/internal/protocol"
)

// recorder captures the fan-out calls a controller makes.
type recorder struct {
	mu         sync.Mutex
	unicasts   []recordedSend
	broadcasts []recordedBroadcast
}

type recordedSend struct {
	sessionID string
	msg       any
}

type recordedBroadcast struct {
	originID string
	msg      any
	toAll    bool
}

func (r *recorder) unicast(sessionID string, msg any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unicasts = append(r.unicasts, recordedSend{sessionID: sessionID, msg: msg})
}

func (r *recorder) broadcast(originID string, msg any, toAll bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broadcasts = append(r.broadcasts, recordedBroadcast{originID: originID, msg: msg, toAll: toAll})
}

func (r *recorder) sentTo(sessionID string) []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []any
	for _, s := range r.unicasts {
		if s.sessionID == sessionID {
			out = append(out, s.msg)
		}
	}
	return out
}

func newTestController(t *testing.T) (*Controller, *recorder) {
	t.Helper()
	p, err := parser.New("simple")
	require.NoError(t, err)
	c := New(game.NewCoordinator(), p, time.Millisecond)
	rec := &recorder{}
	c.SetSendCallbacks(rec.unicast, rec.broadcast)
	return c, rec
}

func handle(t *testing.T, c *Controller, sessionID, line string) any {
	t.Helper()
	return c.HandleMessage(sessionID, []byte(line))
}

func errorReply(t *testing.T, reply any) *protocol.Error {
	t.Helper()
	e, ok := reply.(*protocol.Error)
	require.True(t, ok, "expected *protocol.Error, got %T", reply)
	return e
}

func startGame(t *testing.T, c *Controller) {
	t.Helper()
	handle(t, c, "session_w", `{"command":"join_game","color":"white"}`)
	handle(t, c, "session_b", `{"command":"join_game","color":"black"}`)
	reply := handle(t, c, "session_w", `{"command":"start_game"}`)
	_, ok := reply.(*protocol.GameStarted)
	require.True(t, ok, "start_game failed: %+v", reply)
}

func TestController_MalformedJSON(t *testing.T) {
	c, _ := newTestController(t)

	e := errorReply(t, handle(t, c, "session_1", `{not json`))
	assert.Equal(t, "Invalid JSON format", e.Error)
	assert.NotEmpty(t, e.Details)
}

func TestController_MissingCommand(t *testing.T) {
	c, _ := newTestController(t)

	e := errorReply(t, handle(t, c, "session_1", `{"color":"white"}`))
	assert.Equal(t, "Invalid message structure", e.Error)
	assert.Empty(t, e.Details)
}

func TestController_UnknownCommand(t *testing.T) {
	c, _ := newTestController(t)

	e := errorReply(t, handle(t, c, "session_1", `{"command":"fly_rook"}`))
	assert.Equal(t, "Unknown command", e.Error)
}

func TestController_JoinFlow(t *testing.T) {
	c, rec := newTestController(t)

	e := errorReply(t, handle(t, c, "session_w", `{"command":"join_game"}`))
	assert.Equal(t, "Missing field: color", e.Error)

	reply := handle(t, c, "session_w", `{"command":"join_game","color":"white"}`)
	join, ok := reply.(*protocol.JoinSuccess)
	require.True(t, ok)
	assert.Equal(t, "session_w", join.SessionID)
	assert.Equal(t, "white", join.Color)

	// First join is announced to the other sessions only.
	require.Len(t, rec.broadcasts, 1)
	assert.False(t, rec.broadcasts[0].toAll)
	assert.Equal(t, "session_w", rec.broadcasts[0].originID)
	_, ok = rec.broadcasts[0].msg.(*protocol.PlayerJoined)
	assert.True(t, ok)

	handle(t, c, "session_b", `{"command":"join_game","color":"black"}`)

	// Second join readies the game for everyone including the joiner.
	require.Len(t, rec.broadcasts, 2)
	assert.True(t, rec.broadcasts[1].toAll)
	_, ok = rec.broadcasts[1].msg.(*protocol.GameReady)
	assert.True(t, ok)

	e = errorReply(t, handle(t, c, "session_x", `{"command":"join_game","color":"white"}`))
	assert.Equal(t, "White player slot already taken", e.Error)
}

func TestController_MoveFlow(t *testing.T) {
	c, rec := newTestController(t)
	startGame(t, c)

	e := errorReply(t, handle(t, c, "session_w", `{"command":"make_move"}`))
	assert.Equal(t, "Missing field: move", e.Error)

	e = errorReply(t, handle(t, c, "session_w", `{"command":"make_move","move":"not a move"}`))
	assert.Equal(t, "Couldn't parse move", e.Error)

	e = errorReply(t, handle(t, c, "session_w", `{"command":"make_move","move":"e2-e5"}`))
	assert.Equal(t, "Invalid move", e.Error)

	before := len(rec.broadcasts)
	reply := handle(t, c, "session_w", `{"command":"make_move","move":"e2-e4"}`)
	res, ok := reply.(*protocol.MoveResult)
	require.True(t, ok)
	assert.Equal(t, "e2", res.Strike.CaseSrc)
	assert.Equal(t, "e4", res.Strike.CaseDest)
	assert.NotEmpty(t, res.Board.FEN)

	// The accepted move fans out to the other sessions.
	require.Len(t, rec.broadcasts, before+1)
	assert.Same(t, reply, rec.broadcasts[before].msg)
	assert.False(t, rec.broadcasts[before].toAll)
}

func TestController_MoveBeforeStart(t *testing.T) {
	c, _ := newTestController(t)

	e := errorReply(t, handle(t, c, "session_1", `{"command":"make_move","move":"e2-e4"}`))
	assert.Equal(t, "No game in progress", e.Error)
}

func TestController_BoardAndStatus(t *testing.T) {
	c, _ := newTestController(t)

	e := errorReply(t, handle(t, c, "session_1", `{"command":"display_board"}`))
	assert.Equal(t, "No game in progress", e.Error)

	reply := handle(t, c, "session_1", `{"command":"get_status"}`)
	st, ok := reply.(*protocol.Status)
	require.True(t, ok)
	assert.Equal(t, "Waiting for players to join", st.Message)

	startGame(t, c)

	reply = handle(t, c, "session_w", `{"command":"display_board"}`)
	board, ok := reply.(*protocol.BoardDisplay)
	require.True(t, ok)
	assert.Contains(t, board.Data.Board, " a b c d e f g h")
}

func TestController_EndGame(t *testing.T) {
	c, rec := newTestController(t)
	startGame(t, c)

	reply := handle(t, c, "session_b", `{"command":"end_game"}`)
	reset, ok := reply.(*protocol.GameReset)
	require.True(t, ok)
	assert.Equal(t, "ended_by_player", reset.Reason)

	last := rec.broadcasts[len(rec.broadcasts)-1]
	assert.Same(t, reply, last.msg)
}

func TestController_RouteDisconnect(t *testing.T) {
	c, rec := newTestController(t)
	startGame(t, c)

	c.RouteDisconnect("session_w")

	last := rec.broadcasts[len(rec.broadcasts)-1]
	reset, ok := last.msg.(*protocol.GameReset)
	require.True(t, ok)
	assert.Equal(t, "all_players_disconnected", reset.Reason)

	// A spectator disconnect leaves the game alone.
	before := len(rec.broadcasts)
	c.RouteDisconnect("session_watcher")
	assert.Len(t, rec.broadcasts, before)
}

func uploadChunk(filename string, totalSize, chunksTotal, chunkCurrent int, data string) string {
	return fmt.Sprintf(
		`{"command":"upload_game","metadata":{"filename":%q,"total_size":%d,"chunks_total":%d,"chunk_current":%d},"data":%q}`,
		filename, totalSize, chunksTotal, chunkCurrent, data)
}

func TestController_UploadChunkValidation(t *testing.T) {
	c, _ := newTestController(t)
	startGame(t, c)

	tests := []struct {
		name string
		line string
	}{
		{name: "no metadata", line: `{"command":"upload_game","data":"e2-e4"}`},
		{name: "missing filename", line: uploadChunk("", 5, 1, 1, "e2-e4")},
		{name: "negative total size", line: uploadChunk("g.txt", -1, 2, 1, "e2-e4\n")},
		{name: "oversized total size", line: uploadChunk("g.txt", 1<<40, 2, 1, "e2-e4\n")},
		{name: "zero chunks", line: uploadChunk("g.txt", 5, 0, 0, "e2-e4")},
		{name: "chunk beyond total", line: uploadChunk("g.txt", 5, 2, 3, "e2-e4")},
		{name: "later chunk without first", line: uploadChunk("g.txt", 10, 3, 2, "e7-e5")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := errorReply(t, handle(t, c, "session_w", tt.line))
			assert.Equal(t, "Invalid upload chunk format", e.Error)
		})
	}
}

func TestController_UploadProgressAcks(t *testing.T) {
	c, _ := newTestController(t)
	startGame(t, c)

	body := "e2-e4\ne7-e5\ng1-f3\n"
	reply := handle(t, c, "session_w", uploadChunk("game.txt", len(body), 3, 1, "e2-e4\n"))
	prog, ok := reply.(*protocol.UploadProgress)
	require.True(t, ok)
	assert.Equal(t, "game.txt", prog.Filename)
	assert.Equal(t, 1, prog.ChunkReceived)
	assert.Equal(t, 3, prog.ChunksTotal)
	assert.Equal(t, 33, prog.Percent)

	reply = handle(t, c, "session_w", uploadChunk("game.txt", len(body), 3, 2, "e7-e5\n"))
	prog, ok = reply.(*protocol.UploadProgress)
	require.True(t, ok)
	assert.Equal(t, 2, prog.ChunkReceived)
	assert.Equal(t, 66, prog.Percent)
}

func TestController_UploadReplayStreams(t *testing.T) {
	c, rec := newTestController(t)
	startGame(t, c)

	moves := "e2-e4\ne7-e5\ng1-f3\n"
	handle(t, c, "session_w", uploadChunk("opening.txt", len(moves), 2, 1, "e2-e4\ne7-e5\n"))

	// Final chunk: no direct reply, results stream through the callbacks.
	reply := handle(t, c, "session_w", uploadChunk("opening.txt", len(moves), 2, 2, "g1-f3\n"))
	assert.Nil(t, reply)

	sent := rec.sentTo("session_w")
	require.Len(t, sent, 4)
	for i := 0; i < 3; i++ {
		res, ok := sent[i].(*protocol.MoveResult)
		require.True(t, ok, "line %d: %T", i, sent[i])
		assert.Equal(t, i+1, res.Strike.StrikeNumber)
	}
	done, ok := sent[3].(*protocol.GameComplete)
	require.True(t, ok)
	assert.Equal(t, "opening.txt", done.Filename)
	assert.Equal(t, 3, done.TotalMoves)

	// Spectators see the replayed moves too.
	var fanned int
	for _, b := range rec.broadcasts {
		if _, ok := b.msg.(*protocol.MoveResult); ok {
			fanned++
		}
	}
	assert.Equal(t, 3, fanned)
}

func TestController_UploadReplayAbortsOnBadMove(t *testing.T) {
	c, rec := newTestController(t)
	startGame(t, c)

	moves := "e2-e4\ne2-e5\ng1-f3\n"
	reply := handle(t, c, "session_w", uploadChunk("bad.txt", len(moves), 1, 1, moves))
	assert.Nil(t, reply)

	sent := rec.sentTo("session_w")
	require.Len(t, sent, 2)
	_, ok := sent[0].(*protocol.MoveResult)
	assert.True(t, ok)
	e, ok := sent[1].(*protocol.Error)
	require.True(t, ok)
	assert.Equal(t, "Invalid move", e.Error)
}

func TestController_UploadReplayCheckmate(t *testing.T) {
	c, rec := newTestController(t)
	startGame(t, c)

	// Fool's mate, plus a trailing move that must never be played.
	moves := "f2-f3\ne7-e5\ng2-g4\nd8-h4\na2-a3\n"
	reply := handle(t, c, "session_w", uploadChunk("mate.txt", len(moves), 1, 1, moves))
	assert.Nil(t, reply)

	sent := rec.sentTo("session_w")
	require.Len(t, sent, 5)
	over, ok := sent[4].(*protocol.GameOver)
	require.True(t, ok)
	assert.Equal(t, "Checkmate - black wins", over.Result)
	assert.Equal(t, "mate.txt", over.Filename)
}

func TestController_DisconnectDropsUploads(t *testing.T) {
	c, _ := newTestController(t)
	startGame(t, c)

	handle(t, c, "session_w", uploadChunk("game.txt", 12, 2, 1, "e2-e4\n"))
	c.RouteDisconnect("session_w")

	// A fresh game, then the orphaned upload key must be gone: chunk 2
	// without chunk 1 is rejected rather than resumed.
	startGame(t, c)
	e := errorReply(t, handle(t, c, "session_w", uploadChunk("game.txt", 12, 2, 2, "e7-e5\n")))
	assert.Equal(t, "Invalid upload chunk format", e.Error)
}
