package index

import (
	"sort"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/document"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/indexer/tokenizer"
)

// Reader is the read side of an index. Implementations must be safe for
// concurrent use by multiple goroutines.
type Reader interface {
	// Postings returns the postings of term in field, ordered by DocID.
	Postings(field, term string) (PostingList, error)
	// DocFreq returns the number of live documents containing term in field.
	DocFreq(field, term string) int
	// FieldKind reports how field was indexed.
	FieldKind(field string) (document.Kind, bool)
	// FieldLength returns the token count of field in document id.
	FieldLength(field string, id document.ID) int
	// NumericRange returns the documents whose field value lies in [min, max].
	NumericRange(field string, min, max float64) *roaring.Bitmap
	// StoredFields returns the retrievable values of document id.
	StoredFields(id document.ID) map[string][]string
	// TotalDocs returns the number of live documents.
	TotalDocs() int
}

type fieldIndex struct {
	kind    document.Kind
	terms   map[string]PostingList
	lengths map[document.ID]int
}

type fieldTerm struct {
	field string
	term  string
}

// MemoryIndex is the in-memory inverted index built by an indexing session.
// It holds per-field term dictionaries, stored fields and the numeric range
// index, all keyed by the DocID assigned by the caller.
type MemoryIndex struct {
	mu       sync.RWMutex
	analyzer tokenizer.Analyzer
	fields   map[string]*fieldIndex
	stored   map[document.ID][]StoredValue
	docTerms map[document.ID][]fieldTerm
	live     *roaring.Bitmap
	numeric  *NumericIndex
	size     int64
}

// NewMemoryIndex creates an empty index that analyzes text fields with a.
func NewMemoryIndex(a tokenizer.Analyzer) *MemoryIndex {
	return &MemoryIndex{
		analyzer: a,
		fields:   make(map[string]*fieldIndex),
		stored:   make(map[document.ID][]StoredValue),
		docTerms: make(map[document.ID][]fieldTerm),
		live:     roaring.New(),
		numeric:  NewNumericIndex(),
	}
}

var _ Reader = (*MemoryIndex)(nil)

// AddDocument indexes doc under id. Ids must be strictly increasing across
// calls so that posting lists stay ordered by append. A document without
// fields is accepted and counts as a live, empty document.
func (m *MemoryIndex) AddDocument(id document.ID, doc *document.Document) {
	type fieldData struct {
		kind   document.Kind
		freqs  map[string]int
		length int
	}
	perField := make(map[string]*fieldData)
	order := make([]string, 0)
	var stored []StoredValue

	for _, f := range doc.Fields() {
		if f.Kind == document.KindNumeric {
			m.numeric.Add(f.Name, id, f.Number)
			continue
		}
		fd, ok := perField[f.Name]
		if !ok {
			fd = &fieldData{kind: f.Kind, freqs: make(map[string]int)}
			perField[f.Name] = fd
			order = append(order, f.Name)
		}
		switch f.Kind {
		case document.KindText:
			tokens := m.analyzer.Tokenize(f.Text)
			for _, tok := range tokens {
				fd.freqs[tok]++
			}
			fd.length += len(tokens)
		case document.KindExact:
			fd.freqs[f.Text]++
			fd.length++
		}
		if f.Stored {
			stored = append(stored, StoredValue{Field: f.Name, Value: f.Text})
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var terms []fieldTerm
	for _, name := range order {
		fd := perField[name]
		fi, ok := m.fields[name]
		if !ok {
			fi = &fieldIndex{
				kind:    fd.kind,
				terms:   make(map[string]PostingList),
				lengths: make(map[document.ID]int),
			}
			m.fields[name] = fi
		}
		if fd.length > 0 {
			fi.lengths[id] = fd.length
		}
		for term, freq := range fd.freqs {
			fi.terms[term] = append(fi.terms[term], Posting{DocID: id, Frequency: freq})
			terms = append(terms, fieldTerm{field: name, term: term})
			m.size += int64(len(term) + 16)
		}
	}
	if len(stored) > 0 {
		m.stored[id] = stored
	}
	m.docTerms[id] = terms
	m.live.Add(uint32(id))
}

// DeleteDocument removes every trace of id. Deleting an unknown id is a
// no-op.
func (m *MemoryIndex) DeleteDocument(id document.ID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteLocked(id)
}

func (m *MemoryIndex) deleteLocked(id document.ID) bool {
	if !m.live.Contains(uint32(id)) {
		return false
	}
	for _, ft := range m.docTerms[id] {
		fi := m.fields[ft.field]
		pl := fi.terms[ft.term]
		i := sort.Search(len(pl), func(i int) bool { return pl[i].DocID >= id })
		if i < len(pl) && pl[i].DocID == id {
			next := make(PostingList, 0, len(pl)-1)
			next = append(next, pl[:i]...)
			next = append(next, pl[i+1:]...)
			pl = next
			m.size -= int64(len(ft.term) + 16)
		}
		if len(pl) == 0 {
			delete(fi.terms, ft.term)
		} else {
			fi.terms[ft.term] = pl
		}
		delete(fi.lengths, id)
	}
	delete(m.docTerms, id)
	delete(m.stored, id)
	m.live.Remove(uint32(id))
	m.numeric.Delete(id)
	return true
}

// LookupExact returns the live documents whose exact field equals value.
func (m *MemoryIndex) LookupExact(field, value string) *roaring.Bitmap {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := roaring.New()
	fi, ok := m.fields[field]
	if !ok || fi.kind != document.KindExact {
		return result
	}
	for _, p := range fi.terms[value] {
		result.Add(uint32(p.DocID))
	}
	return result
}

// Postings implements Reader. The returned list is a copy.
func (m *MemoryIndex) Postings(field, term string) (PostingList, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	fi, ok := m.fields[field]
	if !ok {
		return nil, nil
	}
	pl := fi.terms[term]
	if len(pl) == 0 {
		return nil, nil
	}
	out := make(PostingList, len(pl))
	copy(out, pl)
	return out, nil
}

// DocFreq implements Reader.
func (m *MemoryIndex) DocFreq(field, term string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	fi, ok := m.fields[field]
	if !ok {
		return 0
	}
	return len(fi.terms[term])
}

// FieldKind implements Reader.
func (m *MemoryIndex) FieldKind(field string) (document.Kind, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if fi, ok := m.fields[field]; ok {
		return fi.kind, true
	}
	for _, name := range m.numeric.Fields() {
		if name == field {
			return document.KindNumeric, true
		}
	}
	return 0, false
}

// FieldLength implements Reader.
func (m *MemoryIndex) FieldLength(field string, id document.ID) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if fi, ok := m.fields[field]; ok {
		return fi.lengths[id]
	}
	return 0
}

// NumericRange implements Reader.
func (m *MemoryIndex) NumericRange(field string, min, max float64) *roaring.Bitmap {
	return m.numeric.QueryRange(field, min, max)
}

// StoredFields implements Reader.
func (m *MemoryIndex) StoredFields(id document.ID) map[string][]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return groupStored(m.stored[id])
}

// TotalDocs implements Reader.
func (m *MemoryIndex) TotalDocs() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int(m.live.GetCardinality())
}

// IsLive reports whether id is a live document.
func (m *MemoryIndex) IsLive(id document.ID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.live.Contains(uint32(id))
}

// Size returns an estimate of the postings memory footprint in bytes.
func (m *MemoryIndex) Size() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.size
}

// Snapshot copies the live content of the index. nextID is recorded so a
// reopened index keeps assigning fresh ids.
func (m *MemoryIndex) Snapshot(nextID document.ID) *Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := &Snapshot{
		Live:    make([]document.ID, 0, m.live.GetCardinality()),
		Stored:  make(map[document.ID][]StoredValue, len(m.stored)),
		Numeric: make(map[string][]NumericEntry),
		NextID:  nextID,
	}
	it := m.live.Iterator()
	for it.HasNext() {
		snap.Live = append(snap.Live, document.ID(it.Next()))
	}

	names := make([]string, 0, len(m.fields))
	for name := range m.fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fi := m.fields[name]
		fs := FieldSnapshot{
			Name:    name,
			Kind:    fi.kind,
			Terms:   make([]TermEntry, 0, len(fi.terms)),
			Lengths: make(map[document.ID]int, len(fi.lengths)),
		}
		for term, pl := range fi.terms {
			postings := make(PostingList, len(pl))
			copy(postings, pl)
			fs.Terms = append(fs.Terms, TermEntry{Term: term, Postings: postings})
		}
		sort.Slice(fs.Terms, func(i, j int) bool {
			return fs.Terms[i].Term < fs.Terms[j].Term
		})
		for id, l := range fi.lengths {
			fs.Lengths[id] = l
		}
		snap.Fields = append(snap.Fields, fs)
	}
	for id, values := range m.stored {
		snap.Stored[id] = append([]StoredValue(nil), values...)
	}
	for _, name := range m.numeric.Fields() {
		if entries := m.numeric.Entries(name); len(entries) > 0 {
			snap.Numeric[name] = entries
		}
	}
	return snap
}

// Restore loads a snapshot into an empty index, typically one read back
// from a segment when an existing index is opened for update.
func (m *MemoryIndex) Restore(snap *Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range snap.Live {
		m.live.Add(uint32(id))
	}
	for _, fs := range snap.Fields {
		fi := &fieldIndex{
			kind:    fs.Kind,
			terms:   make(map[string]PostingList, len(fs.Terms)),
			lengths: make(map[document.ID]int, len(fs.Lengths)),
		}
		for _, te := range fs.Terms {
			fi.terms[te.Term] = append(PostingList(nil), te.Postings...)
			for _, p := range te.Postings {
				m.docTerms[p.DocID] = append(m.docTerms[p.DocID], fieldTerm{field: fs.Name, term: te.Term})
			}
			m.size += int64(len(te.Term)+16) * int64(len(te.Postings))
		}
		for id, l := range fs.Lengths {
			fi.lengths[id] = l
		}
		m.fields[fs.Name] = fi
	}
	for id, values := range snap.Stored {
		m.stored[id] = append([]StoredValue(nil), values...)
	}
	for name, entries := range snap.Numeric {
		for _, e := range entries {
			m.numeric.Add(name, e.DocID, e.Value)
		}
	}
}

func groupStored(values []StoredValue) map[string][]string {
	out := make(map[string][]string, len(values))
	for _, v := range values {
		out[v.Field] = append(out[v.Field], v.Value)
	}
	return out
}
