package parser

import (
	"net/http"
	"strings"
	"unicode"
	"unicode/utf8"

	apperrors "github.com/Adithya-Monish-Kumar-K/geo-metadata-search/pkg/errors"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokWord
	tokPhrase
	tokColon
	tokLParen
	tokRParen
	tokLBracket
	tokRBracket
	tokPlus
	tokMinus
	tokAnd
	tokOr
	tokNot
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

const specials = `():"[]`

func lex(input string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(input) {
		r, size := utf8.DecodeRuneInString(input[i:])
		if unicode.IsSpace(r) {
			i += size
			continue
		}
		start := i
		switch r {
		case '(':
			toks = append(toks, token{kind: tokLParen, pos: start})
			i++
		case ')':
			toks = append(toks, token{kind: tokRParen, pos: start})
			i++
		case '[':
			toks = append(toks, token{kind: tokLBracket, pos: start})
			i++
		case ']':
			toks = append(toks, token{kind: tokRBracket, pos: start})
			i++
		case ':':
			toks = append(toks, token{kind: tokColon, pos: start})
			i++
		case '"':
			end := strings.IndexByte(input[i+1:], '"')
			if end < 0 {
				return nil, apperrors.Newf(apperrors.ErrQuerySyntax, http.StatusBadRequest,
					"unterminated phrase at offset %d", start)
			}
			toks = append(toks, token{kind: tokPhrase, text: input[i+1 : i+1+end], pos: start})
			i += end + 2
		case '+', '-', '!':
			kind := tokPlus
			if r != '+' {
				kind = tokMinus
			}
			if r == '!' {
				kind = tokNot
			}
			toks = append(toks, token{kind: kind, pos: start})
			i++
		default:
			for i < len(input) {
				r, size := utf8.DecodeRuneInString(input[i:])
				if unicode.IsSpace(r) || strings.ContainsRune(specials, r) {
					break
				}
				i += size
			}
			word := input[start:i]
			toks = append(toks, wordToken(word, start))
		}
	}
	return append(toks, token{kind: tokEOF, pos: len(input)}), nil
}

func wordToken(word string, pos int) token {
	switch word {
	case "AND", "&&":
		return token{kind: tokAnd, text: word, pos: pos}
	case "OR", "||":
		return token{kind: tokOr, text: word, pos: pos}
	case "NOT":
		return token{kind: tokNot, text: word, pos: pos}
	}
	return token{kind: tokWord, text: word, pos: pos}
}
