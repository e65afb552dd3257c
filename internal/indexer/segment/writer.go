package segment

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"time"

	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/document"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/indexer/index"
)

// MagicBytes identifies a valid .spdx segment file.
const (
	MagicBytes    uint32 = 0x53504458
	FormatVersion uint32 = 2
	HeaderSize    int    = 64
	FooterSize    int    = 32
)

// FileName is the name of the segment inside an index directory.
const FileName = "index.spdx"

// SegmentHeader is the 64-byte header written at the start of every segment.
type SegmentHeader struct {
	Magic      uint32
	Version    uint32
	TermCount  uint32
	DocCount   uint32
	CreatedAt  int64
	DictOffset int64
	DictSize   int64
	PostOffset int64
	PostSize   int64
	Codec      Codec
}

func (h SegmentHeader) encode() []byte {
	b := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(b[0:4], h.Magic)
	binary.LittleEndian.PutUint32(b[4:8], h.Version)
	binary.LittleEndian.PutUint32(b[8:12], h.TermCount)
	binary.LittleEndian.PutUint32(b[12:16], h.DocCount)
	binary.LittleEndian.PutUint64(b[16:24], uint64(h.CreatedAt))
	binary.LittleEndian.PutUint64(b[24:32], uint64(h.DictOffset))
	binary.LittleEndian.PutUint64(b[32:40], uint64(h.DictSize))
	binary.LittleEndian.PutUint64(b[40:48], uint64(h.PostOffset))
	binary.LittleEndian.PutUint64(b[48:56], uint64(h.PostSize))
	binary.LittleEndian.PutUint32(b[56:60], uint32(h.Codec))
	return b
}

func decodeHeader(b []byte) SegmentHeader {
	return SegmentHeader{
		Magic:      binary.LittleEndian.Uint32(b[0:4]),
		Version:    binary.LittleEndian.Uint32(b[4:8]),
		TermCount:  binary.LittleEndian.Uint32(b[8:12]),
		DocCount:   binary.LittleEndian.Uint32(b[12:16]),
		CreatedAt:  int64(binary.LittleEndian.Uint64(b[16:24])),
		DictOffset: int64(binary.LittleEndian.Uint64(b[24:32])),
		DictSize:   int64(binary.LittleEndian.Uint64(b[32:40])),
		PostOffset: int64(binary.LittleEndian.Uint64(b[40:48])),
		PostSize:   int64(binary.LittleEndian.Uint64(b[48:56])),
		Codec:      Codec(binary.LittleEndian.Uint32(b[56:60])),
	}
}

// DictEntry maps a term to its postings block and document frequency.
type DictEntry struct {
	Term       string `json:"t"`
	PostOffset int64  `json:"o"`
	PostLen    int    `json:"l"`
	DocFreq    int    `json:"d"`
}

type fieldDict struct {
	Name    string              `json:"name"`
	Kind    document.Kind       `json:"kind"`
	Terms   []DictEntry         `json:"terms"`
	Lengths map[document.ID]int `json:"lengths,omitempty"`
}

// dictionary is everything in a segment except the postings themselves.
type dictionary struct {
	NextID  document.ID                         `json:"next_id"`
	Live    []document.ID                       `json:"live"`
	Fields  []fieldDict                         `json:"fields"`
	Stored  map[document.ID][]index.StoredValue `json:"stored"`
	Numeric map[string][]index.NumericEntry     `json:"numeric"`
}

// Writer serialises index snapshots into .spdx segment files.
type Writer struct {
	codec Codec
}

// NewWriter creates a Writer that compresses blocks with codec.
func NewWriter(codec Codec) *Writer {
	return &Writer{codec: codec}
}

// Write atomically replaces the segment at path with snap. It writes to a
// .tmp file first and renames on success, so readers never observe a
// partially written segment.
func (w *Writer) Write(path string, snap *index.Snapshot) (SegmentHeader, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return SegmentHeader{}, fmt.Errorf("creating segment directory: %w", err)
	}
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return SegmentHeader{}, fmt.Errorf("creating temp segment file: %w", err)
	}
	defer func() {
		f.Close()
		os.Remove(tmpPath)
	}()

	header := SegmentHeader{
		Magic:      MagicBytes,
		Version:    FormatVersion,
		DocCount:   uint32(len(snap.Live)),
		CreatedAt:  time.Now().Unix(),
		PostOffset: int64(HeaderSize),
		Codec:      w.codec,
	}
	if _, err := f.Write(header.encode()); err != nil {
		return SegmentHeader{}, fmt.Errorf("writing header: %w", err)
	}

	dict := dictionary{
		NextID:  snap.NextID,
		Live:    snap.Live,
		Stored:  snap.Stored,
		Numeric: snap.Numeric,
		Fields:  make([]fieldDict, 0, len(snap.Fields)),
	}
	offset := int64(0)
	for _, fs := range snap.Fields {
		fd := fieldDict{
			Name:    fs.Name,
			Kind:    fs.Kind,
			Terms:   make([]DictEntry, 0, len(fs.Terms)),
			Lengths: fs.Lengths,
		}
		for _, entry := range fs.Terms {
			raw, err := json.Marshal(entry.Postings)
			if err != nil {
				return SegmentHeader{}, fmt.Errorf("marshaling postings for %s:%q: %w", fs.Name, entry.Term, err)
			}
			block, err := encodeBlock(raw, w.codec)
			if err != nil {
				return SegmentHeader{}, fmt.Errorf("encoding postings for %s:%q: %w", fs.Name, entry.Term, err)
			}
			if _, err := f.Write(block); err != nil {
				return SegmentHeader{}, fmt.Errorf("writing postings for %s:%q: %w", fs.Name, entry.Term, err)
			}
			fd.Terms = append(fd.Terms, DictEntry{
				Term:       entry.Term,
				PostOffset: offset,
				PostLen:    len(block),
				DocFreq:    len(entry.Postings),
			})
			offset += int64(len(block))
			header.TermCount++
		}
		dict.Fields = append(dict.Fields, fd)
	}
	header.PostSize = offset
	header.DictOffset = header.PostOffset + header.PostSize

	dictRaw, err := json.Marshal(dict)
	if err != nil {
		return SegmentHeader{}, fmt.Errorf("marshaling dictionary: %w", err)
	}
	dictBlock, err := encodeBlock(dictRaw, w.codec)
	if err != nil {
		return SegmentHeader{}, fmt.Errorf("encoding dictionary: %w", err)
	}
	if _, err := f.Write(dictBlock); err != nil {
		return SegmentHeader{}, fmt.Errorf("writing dictionary: %w", err)
	}
	header.DictSize = int64(len(dictBlock))

	footer := make([]byte, FooterSize)
	binary.LittleEndian.PutUint32(footer[0:4], crc32.ChecksumIEEE(dictBlock))
	binary.LittleEndian.PutUint32(footer[4:8], header.DocCount)
	binary.LittleEndian.PutUint64(footer[8:16], uint64(header.DictOffset))
	binary.LittleEndian.PutUint64(footer[16:24], uint64(header.DictSize))
	binary.LittleEndian.PutUint64(footer[24:32], uint64(header.PostSize))
	if _, err := f.Write(footer); err != nil {
		return SegmentHeader{}, fmt.Errorf("writing footer: %w", err)
	}
	if _, err := f.WriteAt(header.encode(), 0); err != nil {
		return SegmentHeader{}, fmt.Errorf("updating header: %w", err)
	}
	if err := f.Sync(); err != nil {
		return SegmentHeader{}, fmt.Errorf("syncing segment file: %w", err)
	}
	if err := f.Close(); err != nil {
		return SegmentHeader{}, fmt.Errorf("closing segment file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return SegmentHeader{}, fmt.Errorf("renaming segment file: %w", err)
	}
	return header, nil
}
