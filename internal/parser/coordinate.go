package parser

import (
	"fmt"
	"regexp"
	"strings"
)

// coordinateRe matches "<square><sep><square>" where the separator is any run
// of spaces, dashes, or the arrow character.
var coordinateRe = regexp.MustCompile(`^([a-h][1-8])[\s\-→]+([a-h][1-8])$`)

// CoordinateParser reads the simple "<from>-<to>" notation, e.g. "e2-e4".
type CoordinateParser struct{}

// ParseMove parses one coordinate move token.
func (p *CoordinateParser) ParseMove(s string) (Move, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "//") {
		return Move{}, fmt.Errorf("%w: %q", ErrSyntax, s)
	}

	m := coordinateRe.FindStringSubmatch(s)
	if m == nil {
		return Move{}, fmt.Errorf("%w: %q (want <from>-<to>, e.g. e2-e4)", ErrSyntax, s)
	}

	return Move{
		Notation: s,
		From:     m[1],
		To:       m[2],
		Kind:     KindCoordinate,
	}, nil
}

// ParseGame reads a game file: one move per line, blank lines and
// "//"-prefixed comment lines ignored.
func (p *CoordinateParser) ParseGame(text string) []Move {
	var moves []Move
	for line := range strings.Lines(text) {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}
		mv, err := p.ParseMove(line)
		if err != nil {
			continue
		}
		moves = append(moves, mv)
	}
	return moves
}
