package expr

import (
	"fmt"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokNumber
	tokString
	tokOp // operators and punctuation
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

// SyntaxError reports a malformed expression.
type SyntaxError struct {
	Pos int
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at %d: %s", e.Pos, e.Msg)
}

var twoCharOps = []string{"==", "!=", "<=", ">=", "&&", "||"}

func lex(src string) ([]token, error) {
	var out []token
	rs := []rune(src)
	for i := 0; i < len(rs); {
		r := rs[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '_' || unicode.IsLetter(r):
			start := i
			for i < len(rs) && (rs[i] == '_' || unicode.IsLetter(rs[i]) || unicode.IsDigit(rs[i])) {
				i++
			}
			out = append(out, token{kind: tokIdent, text: string(rs[start:i]), pos: start})
		case unicode.IsDigit(r):
			start := i
			dot := false
			for i < len(rs) && (unicode.IsDigit(rs[i]) || (rs[i] == '.' && !dot)) {
				if rs[i] == '.' {
					// "1.x" is not a number followed by attribute access; reject early
					if i+1 >= len(rs) || !unicode.IsDigit(rs[i+1]) {
						return nil, &SyntaxError{Pos: i, Msg: "malformed number"}
					}
					dot = true
				}
				i++
			}
			out = append(out, token{kind: tokNumber, text: string(rs[start:i]), pos: start})
		case r == '"' || r == '\'':
			start := i
			s, n, err := lexString(rs[i:], start)
			if err != nil {
				return nil, err
			}
			i += n
			out = append(out, token{kind: tokString, text: s, pos: start})
		default:
			if i+1 < len(rs) {
				pair := string(rs[i : i+2])
				matched := false
				for _, op := range twoCharOps {
					if pair == op {
						out = append(out, token{kind: tokOp, text: op, pos: i})
						i += 2
						matched = true
						break
					}
				}
				if matched {
					continue
				}
			}
			if !strings.ContainsRune("+-<>!?:().,", r) {
				return nil, &SyntaxError{Pos: i, Msg: fmt.Sprintf("unexpected character %q", r)}
			}
			out = append(out, token{kind: tokOp, text: string(r), pos: i})
			i++
		}
	}
	out = append(out, token{kind: tokEOF, pos: len(rs)})
	return out, nil
}

// lexString reads a quoted literal starting at rs[0]; returns the unquoted
// value and the number of runes consumed.
func lexString(rs []rune, pos int) (string, int, error) {
	quote := rs[0]
	var b strings.Builder
	for i := 1; i < len(rs); i++ {
		switch rs[i] {
		case quote:
			return b.String(), i + 1, nil
		case '\\':
			if i+1 >= len(rs) {
				return "", 0, &SyntaxError{Pos: pos + i, Msg: "unterminated escape"}
			}
			i++
			switch rs[i] {
			case 'n':
				b.WriteRune('\n')
			case 't':
				b.WriteRune('\t')
			default:
				b.WriteRune(rs[i])
			}
		default:
			b.WriteRune(rs[i])
		}
	}
	return "", 0, &SyntaxError{Pos: pos, Msg: "unterminated string"}
}
