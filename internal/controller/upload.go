package controller

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/udisondev/chessd/internal/protocol"
)

// maxUploadSize caps the declared size of one uploaded game file. Move lists
// are a few kilobytes; anything larger is a hostile allocation request.
const maxUploadSize = 10 << 20

// handleUploadChunk accumulates one upload_game chunk. Non-final chunks are
// acked with upload_progress; the final chunk triggers the streamed replay
// and returns nil (no further reply).
func (c *Controller) handleUploadChunk(sessionID string, env *protocol.Envelope) any {
	meta := env.Metadata
	if meta == nil || meta.Filename == "" ||
		meta.TotalSize < 0 || meta.TotalSize > maxUploadSize ||
		meta.ChunksTotal <= 0 ||
		meta.ChunkCurrent < 1 || meta.ChunkCurrent > meta.ChunksTotal {
		return protocol.NewError("Invalid upload chunk format")
	}

	key := sessionID + ":" + meta.Filename

	c.mu.Lock()
	up := c.uploads[key]
	if meta.ChunkCurrent == 1 || up == nil {
		if meta.ChunkCurrent != 1 {
			c.mu.Unlock()
			return protocol.NewError("Invalid upload chunk format")
		}
		up = &upload{
			filename:    meta.Filename,
			totalSize:   meta.TotalSize,
			chunksTotal: meta.ChunksTotal,
			data:        make([]byte, 0, meta.TotalSize),
		}
		c.uploads[key] = up
		slog.Info("starting file upload",
			"session", sessionID,
			"filename", meta.Filename,
			"total_size", meta.TotalSize,
			"chunks_total", meta.ChunksTotal)
	}

	up.data = append(up.data, env.Data...)
	// Duplicate chunk numbers are tolerated by overwriting, not summing.
	up.chunksReceived = meta.ChunkCurrent

	received := up.chunksReceived
	final := received >= up.chunksTotal
	if final {
		delete(c.uploads, key)
	}
	c.mu.Unlock()

	percent := received * 100 / meta.ChunksTotal
	slog.Debug("upload progress",
		"filename", meta.Filename,
		"chunk", received,
		"chunks_total", meta.ChunksTotal,
		"percent", percent)

	if !final {
		return &protocol.UploadProgress{
			Type:          protocol.TypeUploadProgress,
			Filename:      meta.Filename,
			ChunkReceived: received,
			ChunksTotal:   meta.ChunksTotal,
			Percent:       percent,
		}
	}

	slog.Info("file upload complete", "session", sessionID, "filename", up.filename)
	c.replayGame(sessionID, up)
	return nil
}

// replayGame parses the accumulated game file and plays it move by move,
// streaming each move_result to the uploader with a pacing delay so clients
// can render. The coordinator lock is never held across the sleep. The
// replay aborts on the first rejected move; a game reaching checkmate or
// stalemate terminates with game_over, anything else with a game_complete
// summary.
func (c *Controller) replayGame(sessionID string, up *upload) {
	moves := c.parser.ParseGame(string(up.data))
	slog.Info("replaying game file",
		"session", sessionID,
		"filename", up.filename,
		"moves", len(moves))

	played := 0
	var result string
	for i, mv := range moves {
		res, bcast, err := c.coord.Move(mv)
		if err != nil {
			slog.Warn("replay aborted",
				"filename", up.filename,
				"move", i+1,
				"notation", mv.Notation)
			c.send(sessionID, protocol.NewError(err.Error()))
			return
		}

		played++
		c.send(sessionID, res)
		c.emit(sessionID, bcast)

		if res.Strike.Checkmate {
			result = fmt.Sprintf("Checkmate - %s wins", res.Strike.Color)
		} else if res.Strike.Stalemate {
			result = "Stalemate - draw"
		}
		if result != "" {
			break
		}

		if i < len(moves)-1 {
			time.Sleep(c.replayPace)
		}
	}

	if result != "" {
		c.send(sessionID, &protocol.GameOver{
			Type:     protocol.TypeGameOver,
			Result:   result,
			Filename: up.filename,
		})
		return
	}
	c.send(sessionID, &protocol.GameComplete{
		Type:       protocol.TypeGameComplete,
		Filename:   up.filename,
		TotalMoves: played,
	})
}
