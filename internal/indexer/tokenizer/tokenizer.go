// Package tokenizer provides the text analyzers used at index and query
// time. The Spanish analyzer NFKC-normalizes and lower-cases input, splits
// on non-alphanumeric boundaries, removes stop-words and applies the
// snowball Spanish stemmer.
package tokenizer

import (
	"strings"
	"unicode"

	"github.com/kljensen/snowball/spanish"
	"golang.org/x/text/unicode/norm"
)

// Analyzer turns raw text into a normalized token sequence.
type Analyzer interface {
	Tokenize(text string) []string
}

// Config controls the Spanish analysis pipeline.
type Config struct {
	MinTokenLength  int
	EnableStemming  bool
	EnableStopwords bool
}

// DefaultConfig returns the pipeline used for indexing metadata records.
func DefaultConfig() Config {
	return Config{
		MinTokenLength:  1,
		EnableStemming:  true,
		EnableStopwords: true,
	}
}

// Spanish is the analyzer applied to text fields and plain-text queries.
type Spanish struct {
	cfg Config
}

// NewSpanish returns a Spanish analyzer with the given configuration.
func NewSpanish(cfg Config) *Spanish {
	if cfg.MinTokenLength < 1 {
		cfg.MinTokenLength = 1
	}
	return &Spanish{cfg: cfg}
}

// Tokenize implements Analyzer.
func (s *Spanish) Tokenize(text string) []string {
	text = strings.ToLower(norm.NFKC.String(text))
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := make([]string, 0, len(words))
	for _, word := range words {
		if len([]rune(word)) < s.cfg.MinTokenLength {
			continue
		}
		if s.cfg.EnableStopwords {
			if _, isStop := stopWords[word]; isStop {
				continue
			}
		}
		if s.cfg.EnableStemming {
			word = spanish.Stem(word, true)
		}
		if word == "" {
			continue
		}
		tokens = append(tokens, word)
	}
	return tokens
}

// Whitespace splits text on Unicode white space and keeps tokens verbatim.
// Information-need text is split this way before part-of-speech tagging.
type Whitespace struct{}

// Tokenize implements Analyzer.
func (Whitespace) Tokenize(text string) []string {
	return strings.Fields(text)
}
