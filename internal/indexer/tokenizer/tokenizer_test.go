package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSpanishTokenize(t *testing.T) {
	a := NewSpanish(DefaultConfig())

	tokens := a.Tokenize("Mapa de España")
	assert.Len(t, tokens, 2, "stop-word 'de' must be removed")
	assert.Equal(t, a.Tokenize("mapa"), tokens[:1])
	assert.Equal(t, a.Tokenize("ESPAÑA"), tokens[1:])
}

func TestSpanishTokenizeStemsInflections(t *testing.T) {
	a := NewSpanish(DefaultConfig())
	assert.Equal(t, a.Tokenize("mapas"), a.Tokenize("mapa"))
}

func TestSpanishTokenizeSplitsPunctuation(t *testing.T) {
	a := NewSpanish(Config{MinTokenLength: 1})
	assert.Equal(t, []string{"zaragoza", "2010", "huesca"}, a.Tokenize("zaragoza,2010;(huesca)"))
}

func TestSpanishTokenizeEmpty(t *testing.T) {
	a := NewSpanish(DefaultConfig())
	assert.Empty(t, a.Tokenize(""))
	assert.Empty(t, a.Tokenize("de la y"))
	assert.Empty(t, a.Tokenize("  ,.;  "))
}

func TestSpanishMinTokenLength(t *testing.T) {
	a := NewSpanish(Config{MinTokenLength: 3})
	assert.Equal(t, []string{"mapa"}, a.Tokenize("mapa xy z"))
}

func TestWhitespaceTokenize(t *testing.T) {
	assert.Equal(t, []string{"Mapas", "de", "Aragón,"}, Whitespace{}.Tokenize(" Mapas  de\tAragón, "))
}
