package index

import (
	"math"
	"sort"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/document"
)

// NumericIndex answers inclusive range queries over numeric point fields.
//
// Each field keeps a columnar layout: values and ids are aligned slices,
// sorted ascending by value once sealed. A range query is two binary
// searches followed by a bulk bitmap add, so its cost is O(log n + m).
// Writes append unsorted and mark the field dirty; the next query seals it.
type NumericIndex struct {
	mu     sync.RWMutex
	fields map[string]*numericField
}

// numericField invariant: len(values) == len(ids); when sorted, values[i]
// belongs to ids[i] and values is ascending.
type numericField struct {
	values  []float64
	ids     []uint32
	sorted  bool
	deleted *roaring.Bitmap
}

// NewNumericIndex creates an empty numeric index.
func NewNumericIndex() *NumericIndex {
	return &NumericIndex{fields: make(map[string]*numericField)}
}

// Add records value for id under field. NaN values are ignored since they
// cannot be ordered.
func (ni *NumericIndex) Add(field string, id document.ID, value float64) {
	if math.IsNaN(value) {
		return
	}
	ni.mu.Lock()
	defer ni.mu.Unlock()
	f, ok := ni.fields[field]
	if !ok {
		f = &numericField{sorted: true}
		ni.fields[field] = f
	}
	if f.sorted && len(f.values) > 0 && value < f.values[len(f.values)-1] {
		f.sorted = false
	}
	f.values = append(f.values, value)
	f.ids = append(f.ids, uint32(id))
}

// Delete removes every value of id. Removal is deferred to the next seal.
func (ni *NumericIndex) Delete(id document.ID) {
	ni.mu.Lock()
	defer ni.mu.Unlock()
	for _, f := range ni.fields {
		if f.deleted == nil {
			f.deleted = roaring.New()
		}
		f.deleted.Add(uint32(id))
		f.sorted = false
	}
}

// QueryRange returns the ids whose value for field lies in [min, max].
// Infinite bounds are allowed. An inverted range matches nothing.
func (ni *NumericIndex) QueryRange(field string, min, max float64) *roaring.Bitmap {
	result := roaring.New()
	if math.IsNaN(min) || math.IsNaN(max) || min > max {
		return result
	}
	f := ni.sealedField(field)
	if f == nil {
		return result
	}
	lo := sort.SearchFloat64s(f.values, min)
	hi := sort.Search(len(f.values), func(i int) bool { return f.values[i] > max })
	if hi > lo {
		result.AddMany(f.ids[lo:hi])
	}
	return result
}

// Seal sorts every dirty field and applies pending deletes.
func (ni *NumericIndex) Seal() {
	ni.mu.Lock()
	defer ni.mu.Unlock()
	for _, f := range ni.fields {
		f.seal()
	}
}

// Entries returns the live values of field ordered by value, then id.
func (ni *NumericIndex) Entries(field string) []NumericEntry {
	f := ni.sealedField(field)
	if f == nil {
		return nil
	}
	out := make([]NumericEntry, len(f.values))
	for i := range f.values {
		out[i] = NumericEntry{DocID: document.ID(f.ids[i]), Value: f.values[i]}
	}
	return out
}

// Fields returns the names of all numeric fields.
func (ni *NumericIndex) Fields() []string {
	ni.mu.RLock()
	defer ni.mu.RUnlock()
	names := make([]string, 0, len(ni.fields))
	for name := range ni.fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of live values stored for field.
func (ni *NumericIndex) Len(field string) int {
	f := ni.sealedField(field)
	if f == nil {
		return 0
	}
	return len(f.values)
}

// sealedField returns field in sealed form. The returned slices are never
// mutated in place afterwards: seal always builds fresh ones.
func (ni *NumericIndex) sealedField(field string) *numericField {
	ni.mu.RLock()
	f, ok := ni.fields[field]
	if ok && f.sorted {
		sealed := &numericField{values: f.values, ids: f.ids, sorted: true}
		ni.mu.RUnlock()
		return sealed
	}
	ni.mu.RUnlock()
	if !ok {
		return nil
	}
	ni.mu.Lock()
	defer ni.mu.Unlock()
	f.seal()
	return &numericField{values: f.values, ids: f.ids, sorted: true}
}

func (f *numericField) seal() {
	if f.sorted {
		return
	}
	n := len(f.values)
	order := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if f.deleted != nil && f.deleted.Contains(f.ids[i]) {
			continue
		}
		order = append(order, i)
	}
	sort.SliceStable(order, func(a, b int) bool {
		va, vb := f.values[order[a]], f.values[order[b]]
		if va != vb {
			return va < vb
		}
		return f.ids[order[a]] < f.ids[order[b]]
	})
	values := make([]float64, len(order))
	ids := make([]uint32, len(order))
	for i, idx := range order {
		values[i] = f.values[idx]
		ids[i] = f.ids[idx]
	}
	f.values = values
	f.ids = ids
	f.deleted = nil
	f.sorted = true
}
