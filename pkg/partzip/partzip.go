// Package partzip provides reading functionality for zip part-library
// archives, the form official part libraries are distributed in.
package partzip

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
)

// Archive errors.
var ErrFileNotFound = errors.New("file not found in archive")

// searchPrefixes are the directories a part identity is resolved
// against, in order. Part files live under parts/ and p/, models under
// models/; archives may nest everything under a top-level ldraw/.
var searchPrefixes = []string{
	"",
	"parts/",
	"p/",
	"models/",
	"ldraw/",
	"ldraw/parts/",
	"ldraw/p/",
	"ldraw/models/",
}

// Archive represents an opened zip part-library archive with
// case-insensitive file lookup.
type Archive struct {
	closer   io.Closer
	fileList map[string]*zip.File
}

// Open opens a part-library archive for reading.
func Open(path string) (*Archive, error) {
	rc, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}
	a := newArchive(&rc.Reader)
	a.closer = rc
	return a, nil
}

// NewArchive reads a part-library archive from an in-memory reader.
func NewArchive(r io.ReaderAt, size int64) (*Archive, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("reading archive: %w", err)
	}
	return newArchive(zr), nil
}

func newArchive(zr *zip.Reader) *Archive {
	a := &Archive{fileList: make(map[string]*zip.File, len(zr.File))}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		a.fileList[normalizeName(f.Name)] = f
	}
	return a
}

// Close closes the archive.
func (a *Archive) Close() error {
	if a.closer != nil {
		return a.closer.Close()
	}
	return nil
}

// Read extracts the file for a part identity, trying each search
// prefix in order.
func (a *Archive) Read(id string) ([]byte, error) {
	id = normalizeName(id)
	for _, prefix := range searchPrefixes {
		f, ok := a.fileList[prefix+id]
		if !ok {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", f.Name, err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("decompressing %s: %w", f.Name, err)
		}
		return data, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrFileNotFound, id)
}

// Contains reports whether the archive holds a file for id.
func (a *Archive) Contains(id string) bool {
	id = normalizeName(id)
	for _, prefix := range searchPrefixes {
		if _, ok := a.fileList[prefix+id]; ok {
			return true
		}
	}
	return false
}

// List returns all normalized file names in the archive, sorted.
func (a *Archive) List() []string {
	names := make([]string, 0, len(a.fileList))
	for name := range a.fileList {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FileCount returns the number of files in the archive.
func (a *Archive) FileCount() int {
	return len(a.fileList)
}

// normalizeName lowercases a name and normalizes path separators, the
// same normalization part identities carry.
func normalizeName(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), "\\", "/")
}
