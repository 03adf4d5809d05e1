package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoordinateParser_ParseMove(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		from    string
		to      string
		wantErr bool
	}{
		{name: "dash separator", input: "e2-e4", from: "e2", to: "e4"},
		{name: "spaces around dash", input: "e2 - e4", from: "e2", to: "e4"},
		{name: "space separator", input: "g1 f3", from: "g1", to: "f3"},
		{name: "arrow separator", input: "e2→e4", from: "e2", to: "e4"},
		{name: "surrounding whitespace", input: "  a7-a5  ", from: "a7", to: "a5"},
		{name: "not a move", input: "invalid", wantErr: true},
		{name: "comment line", input: "// This is a comment", wantErr: true},
		{name: "empty", input: "", wantErr: true},
		{name: "file out of range", input: "i2-i4", wantErr: true},
		{name: "rank out of range", input: "e9-e4", wantErr: true},
		{name: "missing destination", input: "e2-", wantErr: true},
		{name: "san not accepted", input: "Nf3", wantErr: true},
	}

	p := &CoordinateParser{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mv, err := p.ParseMove(tt.input)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrSyntax)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.from, mv.From)
			assert.Equal(t, tt.to, mv.To)
			assert.Equal(t, KindCoordinate, mv.Kind)
		})
	}
}

func TestCoordinateParser_ParseGame(t *testing.T) {
	game := `
// This is a comment on e2-e4
e2-e4
e7-e5
// Another comment
g1-f3`

	p := &CoordinateParser{}
	moves := p.ParseGame(game)

	require.Len(t, moves, 3)
	assert.Equal(t, "e2", moves[0].From)
	assert.Equal(t, "e4", moves[0].To)
	assert.Equal(t, "e7", moves[1].From)
	assert.Equal(t, "e5", moves[1].To)
	assert.Equal(t, "g1", moves[2].From)
	assert.Equal(t, "f3", moves[2].To)
}

func TestCoordinateParser_ParseGame_Empty(t *testing.T) {
	p := &CoordinateParser{}

	assert.Empty(t, p.ParseGame(""))
	assert.Empty(t, p.ParseGame("// only comments\n\n// here\n"))
	assert.Empty(t, p.ParseGame("garbage text without moves"))
}
