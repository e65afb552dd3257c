package extract

import (
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"

	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/document"
)

// Walk yields one document for every regular file under root, visiting
// directories recursively in lexical order. A file or directory that cannot
// be read yields an error for that unit and the walk continues. Each
// document's key is the file name, not its path.
func (x *Extractor) Walk(root string) iter.Seq2[*document.Document, error] {
	return func(yield func(*document.Document, error) bool) {
		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if !yield(nil, fmt.Errorf("walking %s: %w", path, err)) {
					return filepath.SkipAll
				}
				if d != nil && d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.Type().IsRegular() {
				return nil
			}
			doc, err := x.ExtractFile(path)
			if !yield(doc, err) {
				return filepath.SkipAll
			}
			return nil
		})
	}
}

// ExtractFile opens and extracts the record at path.
func (x *Extractor) ExtractFile(path string) (*document.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	return x.Extract(filepath.Base(path), f)
}
