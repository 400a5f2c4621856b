// Package relation is a minimal fixed-width-record heap relation: the
// bulk-build source for a fresh index and the thing RIDs point back into.
// It is an external collaborator from the core's point of view (spec
// scope: "the relation scanner that walks source tuples during initial
// bulk build"), so it is read-mostly and does not go through a buffer
// pool of its own — records are written once at load time and never
// updated in place.
package relation

import (
	"encoding/binary"
	"fmt"
	"io"

	"btreeidx/page"
	"btreeidx/pagefile"
)

// Key is the fixed-width attribute type the core index supports.
type Key = int32

// RID is a record identifier: a (page, slot) pair into a relation.
type RID struct {
	PageNo uint32
	SlotNo uint16
}

const (
	headerSize = 4 // recordEndPtr uint16 + slotCount uint16
	slotSize   = 4 // offset uint16 + length uint16
)

func recordEndPtr(pg *page.Page) uint16 { return binary.LittleEndian.Uint16(pg.Data[0:2]) }
func setRecordEndPtr(pg *page.Page, v uint16) {
	binary.LittleEndian.PutUint16(pg.Data[0:2], v)
}
func slotCount(pg *page.Page) uint16 { return binary.LittleEndian.Uint16(pg.Data[2:4]) }
func setSlotCount(pg *page.Page, v uint16) {
	binary.LittleEndian.PutUint16(pg.Data[2:4], v)
}

func slotAt(pg *page.Page, i uint16) (offset, length uint16) {
	base := page.Size - int(i+1)*slotSize
	return binary.LittleEndian.Uint16(pg.Data[base:]), binary.LittleEndian.Uint16(pg.Data[base+2:])
}

func setSlotAt(pg *page.Page, i uint16, offset, length uint16) {
	base := page.Size - int(i+1)*slotSize
	binary.LittleEndian.PutUint16(pg.Data[base:], offset)
	binary.LittleEndian.PutUint16(pg.Data[base+2:], length)
}

func freeSpace(pg *page.Page) int {
	slotDirStart := page.Size - int(slotCount(pg))*slotSize
	return slotDirStart - int(recordEndPtr(pg))
}

func initPage(pg *page.Page) {
	for i := range pg.Data {
		pg.Data[i] = 0
	}
	setRecordEndPtr(pg, headerSize)
	setSlotCount(pg, 0)
}

func insertRecord(pg *page.Page, data []byte) (uint16, error) {
	if freeSpace(pg) < len(data)+slotSize {
		return 0, fmt.Errorf("relation: page full (need %d, have %d)", len(data)+slotSize, freeSpace(pg))
	}
	slot := slotCount(pg)
	off := recordEndPtr(pg)
	copy(pg.Data[off:], data)
	setSlotAt(pg, slot, off, uint16(len(data)))
	setRecordEndPtr(pg, off+uint16(len(data)))
	setSlotCount(pg, slot+1)
	return slot, nil
}

func getRecord(pg *page.Page, slot uint16) ([]byte, error) {
	if slot >= slotCount(pg) {
		return nil, fmt.Errorf("relation: slot %d out of range (have %d)", slot, slotCount(pg))
	}
	off, length := slotAt(pg, slot)
	return pg.Data[off : off+length], nil
}

// Relation is an open, appendable heap file.
type Relation struct {
	file    *pagefile.File
	curPage page.ID
}

// Open opens path if it exists, or creates a fresh single-page relation
// if it does not.
func Open(path string) (*Relation, error) {
	f, isNew, err := pagefile.Open(path)
	if err != nil {
		return nil, fmt.Errorf("relation: open %s: %w", path, err)
	}

	r := &Relation{file: f}
	if isNew {
		id, err := f.Allocate()
		if err != nil {
			return nil, fmt.Errorf("relation: allocate first page: %w", err)
		}
		pg := page.New(id)
		initPage(pg)
		if err := f.WritePage(pg); err != nil {
			return nil, fmt.Errorf("relation: init first page: %w", err)
		}
		r.curPage = id
	} else {
		r.curPage = page.ID(f.PageCount())
	}
	return r, nil
}

// InsertRecord appends data as a new record, allocating a fresh page
// when the current one has no room, and returns its rid.
func (r *Relation) InsertRecord(data []byte) (RID, error) {
	pg, err := r.file.ReadPage(r.curPage)
	if err != nil {
		return RID{}, fmt.Errorf("relation: insert: %w", err)
	}

	if freeSpace(pg) < len(data)+slotSize {
		id, err := r.file.Allocate()
		if err != nil {
			return RID{}, fmt.Errorf("relation: insert: allocate page: %w", err)
		}
		npg := page.New(id)
		initPage(npg)
		r.curPage = id
		pg = npg
	}

	slot, err := insertRecord(pg, data)
	if err != nil {
		return RID{}, fmt.Errorf("relation: insert: %w", err)
	}
	if err := r.file.WritePage(pg); err != nil {
		return RID{}, fmt.Errorf("relation: insert: write page %d: %w", pg.ID, err)
	}
	return RID{PageNo: uint32(pg.ID), SlotNo: slot}, nil
}

// Close closes the underlying page file.
func (r *Relation) Close() error { return r.file.Close() }

// Scanner walks every live record of a relation in ascending (page,
// slot) order.
type Scanner struct {
	rel    *Relation
	pg     *page.Page
	pageNo page.ID
	slot   uint16 // slot of the record most recently yielded by ScanNext
	atEOF  bool
}

// NewScanner opens a forward scan over rel starting at its first page.
func NewScanner(rel *Relation) (*Scanner, error) {
	pg, err := rel.file.ReadPage(1)
	if err != nil {
		return nil, fmt.Errorf("relation: open scan: %w", err)
	}
	return &Scanner{rel: rel, pg: pg, pageNo: 1}, nil
}

// ScanNext advances to the next live record and reports its rid in
// *rid. Returns io.EOF once every record has been visited.
func (s *Scanner) ScanNext(rid *RID) error {
	if s.atEOF {
		return io.EOF
	}

	for s.slot >= slotCount(s.pg) {
		next := s.pageNo + 1
		if uint32(next) > s.rel.file.PageCount() {
			s.atEOF = true
			return io.EOF
		}
		pg, err := s.rel.file.ReadPage(next)
		if err != nil {
			return fmt.Errorf("relation: scan page %d: %w", next, err)
		}
		s.pg, s.pageNo, s.slot = pg, next, 0
	}

	*rid = RID{PageNo: uint32(s.pageNo), SlotNo: s.slot}
	s.slot++
	return nil
}

// GetRecord returns the raw bytes of the record most recently yielded
// by ScanNext.
func (s *Scanner) GetRecord() ([]byte, error) {
	if s.slot == 0 {
		return nil, fmt.Errorf("relation: GetRecord called before ScanNext")
	}
	return getRecord(s.pg, s.slot-1)
}
