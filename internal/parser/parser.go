// Package parser turns move notation into moves the rules engine can resolve.
//
// Two notations are supported: coordinate ("e2-e4") and standard algebraic
// ("Nf3", "O-O"). A coordinate move carries explicit source and destination
// squares; an algebraic move carries only its notation and is resolved against
// the current position by the rules engine.
package parser

import (
	"errors"
	"fmt"
)

// Kind tells the rules engine how to resolve a parsed move.
type Kind int

const (
	// KindCoordinate moves carry explicit From/To squares.
	KindCoordinate Kind = iota
	// KindAlgebraic moves carry only SAN notation.
	KindAlgebraic
)

// Move is one parsed half-move.
type Move struct {
	Notation string
	From     string
	To       string
	Kind     Kind
}

// Parser is a notation strategy.
type Parser interface {
	// ParseMove parses a single move token.
	ParseMove(s string) (Move, error)
	// ParseGame extracts the ordered move list from a whole game text.
	// An empty result is not an error: a file with no recognizable moves
	// simply yields no moves.
	ParseGame(text string) []Move
}

// ErrSyntax reports that a token is not a move in the parser's notation.
var ErrSyntax = errors.New("invalid move syntax")

// New returns the parser registered under the given name.
// Recognized names: "simple" (coordinate notation) and "pgn" (algebraic).
func New(name string) (Parser, error) {
	switch name {
	case "simple":
		return &CoordinateParser{}, nil
	case "pgn":
		return &PGNParser{}, nil
	default:
		return nil, fmt.Errorf("unknown parser %q (want simple or pgn)", name)
	}
}
