package index

import (
	"sort"

	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/document"
)

// Posting is the occurrence of a term in one document's field.
type Posting struct {
	DocID     document.ID `json:"d"`
	Frequency int         `json:"f"`
}

// PostingList is ordered by DocID ascending.
type PostingList []Posting

// Find returns the posting for id, if present.
func (pl PostingList) Find(id document.ID) (Posting, bool) {
	i := sort.Search(len(pl), func(i int) bool { return pl[i].DocID >= id })
	if i < len(pl) && pl[i].DocID == id {
		return pl[i], true
	}
	return Posting{}, false
}

// TermEntry is a term with its postings, as written to a segment.
type TermEntry struct {
	Term     string      `json:"t"`
	Postings PostingList `json:"p"`
}

// StoredValue is one retrievable field value.
type StoredValue struct {
	Field string `json:"f"`
	Value string `json:"v"`
}

// NumericEntry is one numeric point value of a document.
type NumericEntry struct {
	DocID document.ID `json:"d"`
	Value float64     `json:"v"`
}

// FieldSnapshot is the serializable content of one indexed field.
type FieldSnapshot struct {
	Name    string              `json:"name"`
	Kind    document.Kind       `json:"kind"`
	Terms   []TermEntry         `json:"terms"`
	Lengths map[document.ID]int `json:"lengths,omitempty"`
}

// Snapshot is an immutable copy of a MemoryIndex used to write segments.
type Snapshot struct {
	Live    []document.ID                 `json:"live"`
	Fields  []FieldSnapshot               `json:"fields"`
	Stored  map[document.ID][]StoredValue `json:"stored"`
	Numeric map[string][]NumericEntry     `json:"numeric"`
	NextID  document.ID                   `json:"next_id"`
}
