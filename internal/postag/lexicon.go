package postag

import (
	"bufio"
	_ "embed"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

//go:embed lexicon_es.tsv
var defaultLexicon string

// Fallback tags for words missing from the lexicon.
const (
	TagNumeral    = "Z"
	TagCommonNoun = "NC"
)

var numeralLike = regexp.MustCompile(`^[0-9]+([.,/:-][0-9]+)*(ª|º|s)?$`)

// Lexicon is a dictionary tagger: it looks words up case-insensitively in a
// word to tag table. Unknown numbers and dates are tagged Z and every other
// unknown word NC.
type Lexicon struct {
	entries map[string]string
}

// NewLexicon builds a tagger from an in-memory table.
func NewLexicon(entries map[string]string) *Lexicon {
	l := &Lexicon{entries: make(map[string]string, len(entries))}
	for w, tag := range entries {
		l.entries[normalize(w)] = tag
	}
	return l
}

// DefaultLexicon returns the built-in table of Spanish function words.
func DefaultLexicon() *Lexicon {
	l, err := LoadLexicon(strings.NewReader(defaultLexicon))
	if err != nil {
		panic(fmt.Sprintf("postag: built-in lexicon: %v", err))
	}
	return l
}

// LoadLexicon reads word<TAB>TAG lines. Blank lines and lines starting with
// # are ignored.
func LoadLexicon(r io.Reader) (*Lexicon, error) {
	l := &Lexicon{entries: make(map[string]string)}
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		word, tag, ok := strings.Cut(text, "\t")
		word, tag = strings.TrimSpace(word), strings.TrimSpace(tag)
		if !ok || word == "" || tag == "" {
			return nil, fmt.Errorf("lexicon line %d: want word<TAB>TAG, got %q", line, text)
		}
		l.entries[normalize(word)] = tag
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading lexicon: %w", err)
	}
	return l, nil
}

// LoadLexiconFile loads a lexicon from path.
func LoadLexiconFile(path string) (*Lexicon, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening lexicon: %w", err)
	}
	defer f.Close()
	return LoadLexicon(f)
}

// Open loads the lexicon at path, or the built-in one when path is empty.
func Open(path string) (*Lexicon, error) {
	if path == "" {
		return DefaultLexicon(), nil
	}
	return LoadLexiconFile(path)
}

// Len returns the number of entries.
func (l *Lexicon) Len() int {
	return len(l.entries)
}

// Tag implements Tagger.
func (l *Lexicon) Tag(tokens []string) []string {
	tags := make([]string, len(tokens))
	for i, tok := range tokens {
		tags[i] = l.tagOf(tok)
	}
	return tags
}

func (l *Lexicon) tagOf(tok string) string {
	if tag, ok := l.entries[normalize(tok)]; ok {
		return tag
	}
	bare := strings.TrimFunc(tok, unicode.IsPunct)
	if tag, ok := l.entries[normalize(bare)]; ok {
		return tag
	}
	if numeralLike.MatchString(bare) {
		return TagNumeral
	}
	return TagCommonNoun
}

func normalize(w string) string {
	return strings.ToLower(norm.NFC.String(w))
}
