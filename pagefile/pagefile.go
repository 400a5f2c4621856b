// Package pagefile owns the single OS file backing one index (or
// relation) and the raw offset arithmetic that turns a page id into a
// byte range within it. It never decides what a page's bytes mean;
// that belongs to callers.
//
// Page id 1 is the first page of a file; page id 0 is never handed out,
// matching the reserved-null convention the rest of this stack relies on.
package pagefile

import (
	"fmt"
	"os"

	"btreeidx/page"
)

// File is a single page-structured file on disk.
type File struct {
	f          *os.File
	path       string
	nextPageNo uint32
}

// Open opens path if it exists, or creates it if it does not. isNew
// reports whether the file was just created (empty).
func Open(path string) (f *File, isNew bool, err error) {
	osFile, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, false, fmt.Errorf("pagefile: open %s: %w", path, err)
	}

	stat, err := osFile.Stat()
	if err != nil {
		osFile.Close()
		return nil, false, fmt.Errorf("pagefile: stat %s: %w", path, err)
	}

	numPages := uint32(stat.Size() / page.Size)
	return &File{
		f:          osFile,
		path:       path,
		nextPageNo: numPages + 1,
	}, numPages == 0, nil
}

// GetFirstPageNo is the only capability a page file exposes beyond raw
// read/write/allocate: the convention that page 1 is always the first
// page of the file (the metadata page, for an index file).
func (f *File) GetFirstPageNo() page.ID { return 1 }

// PageCount returns the number of pages currently allocated in the file.
func (f *File) PageCount() uint32 { return f.nextPageNo - 1 }

// ReadPage reads page id from disk into a fresh in-memory page.
func (f *File) ReadPage(id page.ID) (*page.Page, error) {
	if id == page.NilID {
		return nil, fmt.Errorf("pagefile: page id 0 is reserved")
	}

	pg := page.New(id)
	offset := int64(id-1) * page.Size
	n, err := f.f.ReadAt(pg.Data, offset)
	if err != nil && n == 0 {
		return nil, fmt.Errorf("pagefile: read page %d: %w", id, err)
	}
	for i := n; i < page.Size; i++ {
		pg.Data[i] = 0
	}
	return pg, nil
}

// WritePage writes pg's current contents to its page id's slot.
func (f *File) WritePage(pg *page.Page) error {
	if pg.ID == page.NilID {
		return fmt.Errorf("pagefile: cannot write page id 0")
	}
	if len(pg.Data) != page.Size {
		return fmt.Errorf("pagefile: page %d data must be %d bytes, got %d", pg.ID, page.Size, len(pg.Data))
	}
	offset := int64(pg.ID-1) * page.Size
	if _, err := f.f.WriteAt(pg.Data, offset); err != nil {
		return fmt.Errorf("pagefile: write page %d: %w", pg.ID, err)
	}
	return nil
}

// Allocate reserves the next page id and zero-fills its slot on disk,
// per the capacity-sentinel contract that every freshly allocated page
// arrives zeroed.
func (f *File) Allocate() (page.ID, error) {
	id := page.ID(f.nextPageNo)
	f.nextPageNo++

	blank := make([]byte, page.Size)
	offset := int64(id-1) * page.Size
	if _, err := f.f.WriteAt(blank, offset); err != nil {
		return 0, fmt.Errorf("pagefile: zero-fill page %d: %w", id, err)
	}
	return id, nil
}

// Sync flushes OS buffers for the file to stable storage.
func (f *File) Sync() error {
	if err := f.f.Sync(); err != nil {
		return fmt.Errorf("pagefile: sync %s: %w", f.path, err)
	}
	return nil
}

// Close syncs and closes the underlying file handle.
func (f *File) Close() error {
	if err := f.Sync(); err != nil {
		return err
	}
	if err := f.f.Close(); err != nil {
		return fmt.Errorf("pagefile: close %s: %w", f.path, err)
	}
	return nil
}
