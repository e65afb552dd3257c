package segment

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"hash/crc32"
	"io/fs"
	"os"
	"sort"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/document"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/geo-metadata-search/pkg/errors"
)

// Reader serves a segment file. The dictionary, stored fields and numeric
// columns are loaded when the segment is opened; postings are read on demand
// with ReadAt, so a Reader is safe for concurrent use.
type Reader struct {
	file     *os.File
	filePath string
	header   SegmentHeader
	fields   map[string]*fieldDict
	stored   map[document.ID][]index.StoredValue
	live     *roaring.Bitmap
	numeric  *index.NumericIndex
	nextID   document.ID
}

var _ index.Reader = (*Reader)(nil)

// OpenReader opens the segment at path. A missing file yields an error
// wrapping errors.ErrIndexNotFound.
func OpenReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("opening segment %s: %w", path, apperrors.ErrIndexNotFound)
		}
		return nil, fmt.Errorf("opening segment file: %w", err)
	}
	r, err := load(f, path)
	if err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

func load(f *os.File, path string) (*Reader, error) {
	headerBytes := make([]byte, HeaderSize)
	if _, err := f.ReadAt(headerBytes, 0); err != nil {
		return nil, fmt.Errorf("reading segment header: %w: %v", apperrors.ErrCorruptSegment, err)
	}
	header := decodeHeader(headerBytes)
	if header.Magic != MagicBytes {
		return nil, fmt.Errorf("%w: bad magic bytes %x", apperrors.ErrCorruptSegment, header.Magic)
	}
	if header.Version != FormatVersion {
		return nil, fmt.Errorf("%w: unsupported format version %d", apperrors.ErrCorruptSegment, header.Version)
	}

	footer := make([]byte, FooterSize)
	if _, err := f.ReadAt(footer, header.DictOffset+header.DictSize); err != nil {
		return nil, fmt.Errorf("reading segment footer: %w: %v", apperrors.ErrCorruptSegment, err)
	}
	dictBlock := make([]byte, header.DictSize)
	if _, err := f.ReadAt(dictBlock, header.DictOffset); err != nil {
		return nil, fmt.Errorf("reading dictionary: %w: %v", apperrors.ErrCorruptSegment, err)
	}
	if want, got := binary.LittleEndian.Uint32(footer[0:4]), crc32.ChecksumIEEE(dictBlock); want != got {
		return nil, fmt.Errorf("%w: dictionary checksum %08x, want %08x", apperrors.ErrCorruptSegment, got, want)
	}
	dictRaw, err := decodeBlock(dictBlock, header.Codec)
	if err != nil {
		return nil, fmt.Errorf("decoding dictionary: %w: %v", apperrors.ErrCorruptSegment, err)
	}
	var dict dictionary
	if err := json.Unmarshal(dictRaw, &dict); err != nil {
		return nil, fmt.Errorf("parsing dictionary: %w: %v", apperrors.ErrCorruptSegment, err)
	}

	r := &Reader{
		file:     f,
		filePath: path,
		header:   header,
		fields:   make(map[string]*fieldDict, len(dict.Fields)),
		stored:   dict.Stored,
		live:     roaring.New(),
		numeric:  index.NewNumericIndex(),
		nextID:   dict.NextID,
	}
	if r.stored == nil {
		r.stored = make(map[document.ID][]index.StoredValue)
	}
	for _, id := range dict.Live {
		r.live.Add(uint32(id))
	}
	for i := range dict.Fields {
		fd := &dict.Fields[i]
		sort.Slice(fd.Terms, func(a, b int) bool { return fd.Terms[a].Term < fd.Terms[b].Term })
		r.fields[fd.Name] = fd
	}
	for name, entries := range dict.Numeric {
		for _, e := range entries {
			r.numeric.Add(name, e.DocID, e.Value)
		}
	}
	r.numeric.Seal()
	return r, nil
}

func (r *Reader) lookup(field, term string) (DictEntry, bool) {
	fd, ok := r.fields[field]
	if !ok {
		return DictEntry{}, false
	}
	i := sort.Search(len(fd.Terms), func(i int) bool { return fd.Terms[i].Term >= term })
	if i >= len(fd.Terms) || fd.Terms[i].Term != term {
		return DictEntry{}, false
	}
	return fd.Terms[i], true
}

func (r *Reader) readPostings(entry DictEntry) (index.PostingList, error) {
	block := make([]byte, entry.PostLen)
	if _, err := r.file.ReadAt(block, r.header.PostOffset+entry.PostOffset); err != nil {
		return nil, fmt.Errorf("reading postings: %w", err)
	}
	raw, err := decodeBlock(block, r.header.Codec)
	if err != nil {
		return nil, fmt.Errorf("decoding postings: %w", err)
	}
	var postings index.PostingList
	if err := json.Unmarshal(raw, &postings); err != nil {
		return nil, fmt.Errorf("parsing postings: %w", err)
	}
	return postings, nil
}

// Postings implements index.Reader.
func (r *Reader) Postings(field, term string) (index.PostingList, error) {
	entry, ok := r.lookup(field, term)
	if !ok {
		return nil, nil
	}
	return r.readPostings(entry)
}

// DocFreq implements index.Reader.
func (r *Reader) DocFreq(field, term string) int {
	entry, ok := r.lookup(field, term)
	if !ok {
		return 0
	}
	return entry.DocFreq
}

// FieldKind implements index.Reader.
func (r *Reader) FieldKind(field string) (document.Kind, bool) {
	if fd, ok := r.fields[field]; ok {
		return fd.Kind, true
	}
	if r.numeric.Len(field) > 0 {
		return document.KindNumeric, true
	}
	return 0, false
}

// FieldLength implements index.Reader.
func (r *Reader) FieldLength(field string, id document.ID) int {
	if fd, ok := r.fields[field]; ok {
		return fd.Lengths[id]
	}
	return 0
}

// NumericRange implements index.Reader.
func (r *Reader) NumericRange(field string, min, max float64) *roaring.Bitmap {
	return r.numeric.QueryRange(field, min, max)
}

// StoredFields implements index.Reader.
func (r *Reader) StoredFields(id document.ID) map[string][]string {
	values := r.stored[id]
	out := make(map[string][]string, len(values))
	for _, v := range values {
		out[v.Field] = append(out[v.Field], v.Value)
	}
	return out
}

// TotalDocs implements index.Reader.
func (r *Reader) TotalDocs() int {
	return int(r.live.GetCardinality())
}

// Snapshot reads the whole segment back, postings included, so that an
// index opened for update can continue from it.
func (r *Reader) Snapshot() (*index.Snapshot, error) {
	snap := &index.Snapshot{
		Live:    make([]document.ID, 0, r.live.GetCardinality()),
		Stored:  make(map[document.ID][]index.StoredValue, len(r.stored)),
		Numeric: make(map[string][]index.NumericEntry),
		NextID:  r.nextID,
	}
	it := r.live.Iterator()
	for it.HasNext() {
		snap.Live = append(snap.Live, document.ID(it.Next()))
	}
	names := make([]string, 0, len(r.fields))
	for name := range r.fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fd := r.fields[name]
		fs := index.FieldSnapshot{
			Name:    fd.Name,
			Kind:    fd.Kind,
			Terms:   make([]index.TermEntry, 0, len(fd.Terms)),
			Lengths: fd.Lengths,
		}
		for _, entry := range fd.Terms {
			postings, err := r.readPostings(entry)
			if err != nil {
				return nil, fmt.Errorf("field %s term %q: %w", name, entry.Term, err)
			}
			fs.Terms = append(fs.Terms, index.TermEntry{Term: entry.Term, Postings: postings})
		}
		snap.Fields = append(snap.Fields, fs)
	}
	for id, values := range r.stored {
		snap.Stored[id] = values
	}
	for _, name := range r.numeric.Fields() {
		snap.Numeric[name] = r.numeric.Entries(name)
	}
	return snap, nil
}

// NextID returns the first DocID not yet assigned when the segment was
// written.
func (r *Reader) NextID() document.ID {
	return r.nextID
}

// Header returns the segment header.
func (r *Reader) Header() SegmentHeader {
	return r.header
}

// Path returns the segment file path.
func (r *Reader) Path() string {
	return r.filePath
}

func (r *Reader) Terms() int {
	return int(r.header.TermCount)
}

func (r *Reader) Close() error {
	return r.file.Close()
}
