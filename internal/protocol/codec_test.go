package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/chessd/internal/rules"
)

func TestDecodeEnvelope(t *testing.T) {
	env, err := DecodeEnvelope([]byte(`{"command":"join_game","color":"white","single_player":true}`))
	require.NoError(t, err)
	assert.Equal(t, CmdJoinGame, env.Command)
	assert.Equal(t, "white", env.Color)
	assert.True(t, env.SinglePlayer)
	assert.Nil(t, env.Metadata)

	env, err = DecodeEnvelope([]byte(
		`{"command":"upload_game","metadata":{"filename":"g.txt","total_size":12,"chunks_total":2,"chunk_current":1},"data":"e2-e4\n"}`))
	require.NoError(t, err)
	require.NotNil(t, env.Metadata)
	assert.Equal(t, "g.txt", env.Metadata.Filename)
	assert.Equal(t, 2, env.Metadata.ChunksTotal)
	assert.Equal(t, "e2-e4\n", env.Data)

	_, err = DecodeEnvelope([]byte(`{"command":`))
	assert.Error(t, err)
}

func TestMarshalError_OmitsEmptyDetails(t *testing.T) {
	data, err := Marshal(NewError("Invalid move"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"error","error":"Invalid move"}`, string(data))

	data, err = Marshal(&Error{Type: TypeError, Error: "Invalid JSON format", Details: "unexpected end"})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"details":"unexpected end"`)
}

func TestMarshalMoveResult_WireFieldNames(t *testing.T) {
	res := &MoveResult{
		Type: TypeMoveResult,
		Strike: &rules.Strike{
			Piece:        "pawn",
			Color:        "white",
			CaseSrc:      "e2",
			CaseDest:     "e4",
			StrikeNumber: 1,
		},
		Board: BoardInfo{FEN: "fen"},
	}

	data, err := Marshal(res)
	require.NoError(t, err)

	s := string(data)
	assert.Contains(t, s, `"case_src":"e2"`)
	assert.Contains(t, s, `"case_dest":"e4"`)
	assert.Contains(t, s, `"strike_number":1`)
	assert.Contains(t, s, `"capture":false`)
	// Unset capture and castling details stay off the wire.
	assert.NotContains(t, s, "captured_piece")
	assert.NotContains(t, s, "castling")
}
