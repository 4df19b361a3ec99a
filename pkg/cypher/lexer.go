// Package cypher checks generated Cypher text before it reaches the graph
// store. It does not build a syntax tree; it tokenizes the text and inspects
// the token stream for clauses, labels and relationship types.
package cypher

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

type tokenKind int

const (
	tokIdent tokenKind = iota
	tokQuoted
	tokString
	tokNumber
	tokParam
	tokPunct
)

type token struct {
	kind  tokenKind
	text  string
	start int
	end   int
}

func (t token) is(kind tokenKind, text string) bool {
	return t.kind == kind && t.text == text
}

// keyword reports whether t is the unquoted identifier kw, ignoring case.
func (t token) keyword(kw string) bool {
	return t.kind == tokIdent && strings.EqualFold(t.text, kw)
}

func (t token) punct(p string) bool {
	return t.is(tokPunct, p)
}

type syntaxError struct {
	pos int
	msg string
}

func (e *syntaxError) Error() string {
	return fmt.Sprintf("%s at offset %d", e.msg, e.pos)
}

var twoCharPunct = []string{"->", "<-", "<>", "<=", ">=", "=~", "..", "+="}

// lex splits src into tokens. Comments are dropped. Unterminated strings,
// quoted identifiers and block comments and unbalanced brackets are
// reported as syntax errors.
func lex(src string) ([]token, error) {
	var toks []token
	var stack []token

	i := 0
	for i < len(src) {
		r, size := utf8.DecodeRuneInString(src[i:])
		switch {
		case unicode.IsSpace(r):
			i += size

		case strings.HasPrefix(src[i:], "//"):
			nl := strings.IndexByte(src[i:], '\n')
			if nl < 0 {
				i = len(src)
			} else {
				i += nl + 1
			}

		case strings.HasPrefix(src[i:], "/*"):
			end := strings.Index(src[i+2:], "*/")
			if end < 0 {
				return nil, &syntaxError{i, "unterminated comment"}
			}
			i += 2 + end + 2

		case r == '\'' || r == '"':
			end, err := scanString(src, i, byte(r))
			if err != nil {
				return nil, err
			}
			toks = append(toks, token{kind: tokString, text: src[i+1 : end-1], start: i, end: end})
			i = end

		case r == '`':
			end := strings.IndexByte(src[i+1:], '`')
			if end < 0 {
				return nil, &syntaxError{i, "unterminated quoted identifier"}
			}
			toks = append(toks, token{kind: tokQuoted, text: src[i+1 : i+1+end], start: i, end: i + end + 2})
			i += end + 2

		case r == '$':
			j := i + 1
			for j < len(src) {
				c, n := utf8.DecodeRuneInString(src[j:])
				if !isIdentRune(c) {
					break
				}
				j += n
			}
			if j == i+1 {
				return nil, &syntaxError{i, "empty parameter name"}
			}
			toks = append(toks, token{kind: tokParam, text: src[i+1 : j], start: i, end: j})
			i = j

		case unicode.IsDigit(r):
			j := i
			for j < len(src) {
				c := src[j]
				if c >= '0' && c <= '9' || c == '_' || c == 'e' || c == 'E' || c == 'x' || c == 'X' ||
					(c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F') {
					j++
					continue
				}
				// a single dot continues a float, ".." is a range
				if c == '.' && j+1 < len(src) && src[j+1] >= '0' && src[j+1] <= '9' {
					j++
					continue
				}
				break
			}
			toks = append(toks, token{kind: tokNumber, text: src[i:j], start: i, end: j})
			i = j

		case isIdentStart(r):
			j := i
			for j < len(src) {
				c, n := utf8.DecodeRuneInString(src[j:])
				if !isIdentRune(c) {
					break
				}
				j += n
			}
			toks = append(toks, token{kind: tokIdent, text: src[i:j], start: i, end: j})
			i = j

		default:
			text := string(r)
			for _, p := range twoCharPunct {
				if strings.HasPrefix(src[i:], p) {
					text = p
					break
				}
			}
			tok := token{kind: tokPunct, text: text, start: i, end: i + len(text)}
			switch text {
			case "(", "[", "{":
				stack = append(stack, tok)
			case ")", "]", "}":
				if len(stack) == 0 || closing(stack[len(stack)-1].text) != text {
					return nil, &syntaxError{i, fmt.Sprintf("unbalanced %q", text)}
				}
				stack = stack[:len(stack)-1]
			}
			toks = append(toks, tok)
			i += len(text)
		}
	}

	if len(stack) > 0 {
		open := stack[len(stack)-1]
		return nil, &syntaxError{open.start, fmt.Sprintf("unclosed %q", open.text)}
	}
	return toks, nil
}

func scanString(src string, start int, quote byte) (int, error) {
	for j := start + 1; j < len(src); j++ {
		switch src[j] {
		case '\\':
			j++
		case quote:
			return j + 1, nil
		}
	}
	return 0, &syntaxError{start, "unterminated string"}
}

func closing(open string) string {
	switch open {
	case "(":
		return ")"
	case "[":
		return "]"
	default:
		return "}"
	}
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r) || unicode.Is(unicode.Mc, r)
}
