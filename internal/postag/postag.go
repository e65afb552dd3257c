// Package postag tags tokens with part-of-speech labels from the EAGLES tag
// set used for Spanish (NC common noun, AQ adjective, SP preposition, ...).
package postag

import (
	"fmt"
	"net/http"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/geo-metadata-search/pkg/errors"
)

// Tagger assigns one tag per token. The result has the same length as
// tokens.
type Tagger interface {
	Tag(tokens []string) []string
}

// Tagged is a token with its part-of-speech tag.
type Tagged struct {
	Token string
	Tag   string
}

// String renders the word_TAG form.
func (t Tagged) String() string {
	return t.Token + "_" + t.Tag
}

// Category returns the upper-cased first letter of the tag, which selects
// the grammatical category (N noun, A adjective, V verb, Z numeral, ...).
func (t Tagged) Category() byte {
	if t.Tag == "" {
		return 0
	}
	c := t.Tag[0]
	if c >= 'a' && c <= 'z' {
		c -= 'a' - 'A'
	}
	return c
}

// ParseTagged splits a word_TAG string at its last underscore, so tokens
// that contain underscores keep them.
func ParseTagged(s string) (Tagged, error) {
	i := strings.LastIndex(s, "_")
	if i <= 0 || i == len(s)-1 {
		return Tagged{}, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "tagged token %q is not word_TAG", s)
	}
	return Tagged{Token: s[:i], Tag: s[i+1:]}, nil
}

// ParseTaggedText parses a whitespace separated sequence of word_TAG items.
func ParseTaggedText(text string) ([]Tagged, error) {
	fields := strings.Fields(text)
	out := make([]Tagged, 0, len(fields))
	for _, f := range fields {
		t, err := ParseTagged(f)
		if err != nil {
			return nil, fmt.Errorf("parsing tagged text: %w", err)
		}
		out = append(out, t)
	}
	return out, nil
}

// Tag runs tagger over tokens and pairs each token with its tag.
func Tag(tagger Tagger, tokens []string) []Tagged {
	tags := tagger.Tag(tokens)
	out := make([]Tagged, len(tokens))
	for i, tok := range tokens {
		out[i] = Tagged{Token: tok}
		if i < len(tags) {
			out[i].Tag = tags[i]
		}
	}
	return out
}
