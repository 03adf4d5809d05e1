// Package rules is the authoritative chess rules engine. It adapts
// github.com/notnil/chess: move legality, castling, en passant, promotion,
// check/checkmate/stalemate detection, and FEN all come from the library;
// this package translates parsed moves in and strike records out.
//
// An Engine is not safe for concurrent use. The game coordinator owns the
// single instance and serializes access under its mutex.
package rules

import (
	"errors"
	"fmt"
	"strings"

	"github.com/notnil/chess"

	"github.com/udisondev/chessd/internal/parser"
)

// ErrIllegalMove reports a move that is syntactically valid but not legal in
// the current position, or that cannot be resolved against it.
var ErrIllegalMove = errors.New("illegal move")

// Strike describes one successfully executed half-move.
type Strike struct {
	Piece        string `json:"piece"`
	Color        string `json:"color"`
	CaseSrc      string `json:"case_src"`
	CaseDest     string `json:"case_dest"`
	StrikeNumber int    `json:"strike_number"`

	Capture       bool   `json:"capture"`
	CapturedPiece string `json:"captured_piece,omitempty"`
	CapturedColor string `json:"captured_color,omitempty"`

	// Castling is "little" (kingside) or "big" (queenside), empty otherwise.
	Castling string `json:"castling,omitempty"`

	Check     bool `json:"check"`
	Checkmate bool `json:"checkmate"`
	Stalemate bool `json:"stalemate"`
}

// Engine holds one chess game and a half-move counter.
type Engine struct {
	game     *chess.Game
	halfMove int
}

// NewEngine returns an engine at the standard opening position.
func NewEngine() *Engine {
	e := &Engine{}
	e.Reset()
	return e
}

// Reset returns the position to the standard opening, side to move white,
// half-move counter 1.
func (e *Engine) Reset() {
	e.game = chess.NewGame()
	e.halfMove = 1
}

// CurrentSide returns "white" or "black".
func (e *Engine) CurrentSide() string {
	return colorName(e.game.Position().Turn())
}

// FEN returns the current position in FEN.
func (e *Engine) FEN() string {
	return e.game.Position().String()
}

// GameOver reports whether the game has reached a terminal position.
func (e *Engine) GameOver() bool {
	return e.game.Outcome() != chess.NoOutcome
}

// Apply resolves mv against the current position, executes it, and returns
// the strike record. The record is built from the pre-move position; the
// check/checkmate/stalemate flags reflect the post-move position.
func (e *Engine) Apply(mv parser.Move) (*Strike, error) {
	pos := e.game.Position()

	var decoded *chess.Move
	var err error
	switch mv.Kind {
	case parser.KindCoordinate:
		decoded, err = chess.UCINotation{}.Decode(pos, mv.From+mv.To)
	case parser.KindAlgebraic:
		decoded, err = chess.AlgebraicNotation{}.Decode(pos, mv.Notation)
	default:
		return nil, fmt.Errorf("%w: unknown move kind", ErrIllegalMove)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrIllegalMove, mv.Notation)
	}

	// The decoded move must appear in the legal move list. Taking the listed
	// move keeps its tags (capture, castle, check) populated.
	legal := findLegal(pos, decoded)
	if legal == nil {
		return nil, fmt.Errorf("%w: %s", ErrIllegalMove, mv.Notation)
	}

	strike := &Strike{
		Piece:        pieceName(pos.Board().Piece(legal.S1()).Type()),
		Color:        colorName(pos.Turn()),
		CaseSrc:      legal.S1().String(),
		CaseDest:     legal.S2().String(),
		StrikeNumber: e.halfMove,
	}

	if target := pos.Board().Piece(legal.S2()); target != chess.NoPiece {
		strike.Capture = true
		strike.CapturedPiece = pieceName(target.Type())
		strike.CapturedColor = colorName(target.Color())
	} else if legal.HasTag(chess.EnPassant) {
		strike.Capture = true
		strike.CapturedPiece = "pawn"
		strike.CapturedColor = colorName(pos.Turn().Other())
	}

	if legal.HasTag(chess.KingSideCastle) {
		strike.Castling = "little"
	} else if legal.HasTag(chess.QueenSideCastle) {
		strike.Castling = "big"
	}

	if err := e.game.Move(legal); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrIllegalMove, mv.Notation)
	}
	e.halfMove++

	switch e.game.Method() {
	case chess.Checkmate:
		strike.Checkmate = true
	case chess.Stalemate:
		strike.Stalemate = true
	default:
		if legal.HasTag(chess.Check) {
			strike.Check = true
		}
	}

	return strike, nil
}

// findLegal locates the decoded move in the legal move list. A coordinate
// promotion with no promotion piece falls back to the queen promotion.
func findLegal(pos *chess.Position, decoded *chess.Move) *chess.Move {
	valid := pos.ValidMoves()
	for _, m := range valid {
		if m.S1() == decoded.S1() && m.S2() == decoded.S2() && m.Promo() == decoded.Promo() {
			return m
		}
	}
	if decoded.Promo() == chess.NoPieceType {
		for _, m := range valid {
			if m.S1() == decoded.S1() && m.S2() == decoded.S2() && m.Promo() == chess.Queen {
				return m
			}
		}
	}
	return nil
}

// FormattedBoard renders the position as a labeled ASCII grid. White pieces
// are uppercase, knights use "c"/"C", empty squares are spaces.
func (e *Engine) FormattedBoard() string {
	board := e.game.Position().Board()

	var b strings.Builder
	b.WriteString(" a b c d e f g h\n")
	b.WriteString(" ---------------------------------\n")

	for rank := 7; rank >= 0; rank-- {
		fmt.Fprintf(&b, "%d |", rank+1)
		for file := range 8 {
			p := board.Piece(chess.Square(rank*8 + file))
			c := byte(' ')
			if p != chess.NoPiece {
				c = pieceChar(p.Type())
				if p.Color() == chess.White {
					c -= 'a' - 'A'
				}
			}
			b.WriteByte(' ')
			b.WriteByte(c)
			b.WriteString(" |")
		}
		b.WriteString("\n ---------------------------------\n")
	}

	b.WriteString(" a b c d e f g h\n")
	return b.String()
}

func pieceName(t chess.PieceType) string {
	switch t {
	case chess.Pawn:
		return "pawn"
	case chess.Knight:
		return "knight"
	case chess.Bishop:
		return "bishop"
	case chess.Rook:
		return "rook"
	case chess.Queen:
		return "queen"
	case chess.King:
		return "king"
	}
	return "piece"
}

func pieceChar(t chess.PieceType) byte {
	switch t {
	case chess.Pawn:
		return 'p'
	case chess.Knight:
		return 'c'
	case chess.Bishop:
		return 'b'
	case chess.Rook:
		return 'r'
	case chess.Queen:
		return 'q'
	case chess.King:
		return 'k'
	}
	return '?'
}

func colorName(c chess.Color) string {
	if c == chess.White {
		return "white"
	}
	return "black"
}
