package parser

import (
	"fmt"
	"regexp"
	"strings"
)

// sanRe matches a single SAN token: castling, pawn and piece moves with
// optional disambiguation, capture marker, promotion, and +/# suffix.
var sanRe = regexp.MustCompile(`^(?:O-O(?:-O)?|[KQRBN]?[a-h]?[1-8]?x?[a-h][1-8](?:=[QRBN])?)[+#]?$`)

// moveNumberRe matches move-number prefixes like "1." or "12...".
var moveNumberRe = regexp.MustCompile(`^\d+\.+`)

// braceCommentRe matches PGN brace comments, which may span lines.
var braceCommentRe = regexp.MustCompile(`(?s)\{[^}]*\}`)

// PGNParser reads standard algebraic notation and PGN move text.
type PGNParser struct{}

// ParseMove parses one SAN token. The move is carried as notation only;
// resolution against the position happens in the rules engine.
func (p *PGNParser) ParseMove(s string) (Move, error) {
	s = strings.TrimSpace(s)
	if !sanRe.MatchString(s) {
		return Move{}, fmt.Errorf("%w: %q (want SAN, e.g. Nf3 or O-O)", ErrSyntax, s)
	}
	return Move{Notation: s, Kind: KindAlgebraic}, nil
}

// ParseGame extracts the move list from PGN move text. Tag-pair headers
// ([Key "Value"]), brace comments, move numbers, and result tokens are
// skipped.
func (p *PGNParser) ParseGame(text string) []Move {
	var body strings.Builder
	for line := range strings.Lines(text) {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "[") {
			continue
		}
		body.WriteString(trimmed)
		body.WriteByte(' ')
	}

	cleaned := braceCommentRe.ReplaceAllString(body.String(), " ")

	var moves []Move
	for _, token := range strings.Fields(cleaned) {
		token = moveNumberRe.ReplaceAllString(token, "")
		if token == "" || isResultToken(token) {
			continue
		}
		mv, err := p.ParseMove(token)
		if err != nil {
			continue
		}
		moves = append(moves, mv)
	}
	return moves
}

func isResultToken(s string) bool {
	switch s {
	case "1-0", "0-1", "1/2-1/2", "*":
		return true
	}
	return false
}
