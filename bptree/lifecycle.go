// Tree lifecycle: Open/Close and the on-disk metadata page.
//
// Page 1 of every index file is reserved for metadata: the indexed
// relation's name, the byte offset and type of the indexed attribute,
// and the current root page number. This mirrors the fixed first-page
// convention the page-file layer already uses for page numbering.
package bptree

import (
	"fmt"
	"io"
	"strings"

	"btreeidx/bufferpool"
	"btreeidx/page"
	"btreeidx/pagefile"
	"btreeidx/relation"
)

const (
	metadataPageNo page.ID = 1

	relNameFieldSize = 32

	metaOffRelName    = 0
	metaOffAttrOffset = 32
	metaOffAttrType   = 36
	metaOffRootPageNo = 40

	// AttrTypeInteger identifies a 4-byte little-endian signed integer
	// attribute, the only attribute type this index understands.
	AttrTypeInteger byte = 1
)

// Tree is a B+ tree index over a single fixed-width integer attribute
// of a relation.
type Tree struct {
	pa   pageAccess
	file *pagefile.File
	root page.ID

	relName    string
	attrOffset int32
	attrType   byte

	cursor Cursor
}

// Open opens or creates the index file for relationName's attribute at
// attrOffset. If the file is newly created and rel is non-nil, the
// index is bulk-loaded from rel's existing records; if rel is nil, the
// index opens empty. If the file already exists, its stored attribute
// metadata must match attrOffset/attrType or ErrBadIndexInfo is
// returned.
func Open(relationName string, attrOffset int32, attrType byte, bufCap int, rel *relation.Relation) (*Tree, error) {
	indexName := fmt.Sprintf("%s.%d", relationName, attrOffset)

	f, isNew, err := pagefile.Open(indexName)
	if err != nil {
		return nil, fmt.Errorf("bptree: open %s: %w", indexName, err)
	}

	bp, err := bufferpool.New(f, bufferpool.WithCapacity(bufCap))
	if err != nil {
		return nil, fmt.Errorf("bptree: open %s: %w", indexName, err)
	}

	t := &Tree{
		pa:         pageAccess{bp: bp},
		file:       f,
		relName:    relationName,
		attrOffset: attrOffset,
		attrType:   attrType,
	}

	if isNew {
		if err := t.buildNew(rel); err != nil {
			return nil, fmt.Errorf("bptree: open %s: %w", indexName, err)
		}
		return t, nil
	}

	if err := t.loadExisting(); err != nil {
		return nil, fmt.Errorf("bptree: open %s: %w", indexName, err)
	}
	return t, nil
}

func (t *Tree) buildNew(rel *relation.Relation) error {
	metaPg, err := t.pa.alloc()
	if err != nil {
		return fmt.Errorf("allocate metadata page: %w", err)
	}
	if metaPg.ID != metadataPageNo {
		return fmt.Errorf("metadata page landed on %d, expected %d", metaPg.ID, metadataPageNo)
	}

	rootPg, err := t.pa.alloc()
	if err != nil {
		return fmt.Errorf("allocate root leaf: %w", err)
	}
	initLeafPage(rootPg)
	t.root = rootPg.ID

	t.writeMetadataInto(metaPg)

	if err := t.pa.unpin(metaPg.ID, true); err != nil {
		return err
	}
	if err := t.pa.unpin(rootPg.ID, true); err != nil {
		return err
	}

	if rel != nil {
		if err := t.bulkLoad(rel); err != nil {
			return fmt.Errorf("bulk load: %w", err)
		}
	}

	return t.pa.flush()
}

// bulkLoad walks every record of rel once and inserts its indexed key.
func (t *Tree) bulkLoad(rel *relation.Relation) error {
	scanner, err := relation.NewScanner(rel)
	if err != nil {
		return err
	}
	var rid RID
	for {
		if err := scanner.ScanNext(&rid); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		record, err := scanner.GetRecord()
		if err != nil {
			return err
		}
		key, err := extractKey(record, int(t.attrOffset))
		if err != nil {
			return err
		}
		if err := t.Insert(key, rid); err != nil {
			return err
		}
	}
}

// extractKey reads a 4-byte little-endian signed integer out of record
// at the given byte offset.
func extractKey(record []byte, offset int) (Key, error) {
	if offset < 0 || offset+4 > len(record) {
		return 0, fmt.Errorf("bptree: attribute offset %d out of range for %d-byte record", offset, len(record))
	}
	v := uint32(record[offset]) | uint32(record[offset+1])<<8 | uint32(record[offset+2])<<16 | uint32(record[offset+3])<<24
	return int32(v), nil
}

func (t *Tree) writeMetadataInto(pg *page.Page) {
	for i := range pg.Data {
		pg.Data[i] = 0
	}
	copy(pg.Data[metaOffRelName:metaOffRelName+relNameFieldSize], t.relName)
	putInt32(pg.Data[metaOffAttrOffset:], t.attrOffset)
	pg.Data[metaOffAttrType] = t.attrType
	putUint32(pg.Data[metaOffRootPageNo:], uint32(t.root))
}

// writeMetadata patches the root page number in the metadata page;
// called whenever t.root changes.
func (t *Tree) writeMetadata() error {
	pg, err := t.pa.pinWrite(metadataPageNo)
	if err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	putUint32(pg.Data[metaOffRootPageNo:], uint32(t.root))
	return t.pa.unpin(metadataPageNo, true)
}

func (t *Tree) loadExisting() error {
	pg, err := t.pa.pinRead(metadataPageNo)
	if err != nil {
		return fmt.Errorf("read metadata: %w", err)
	}

	storedOffset := getInt32(pg.Data[metaOffAttrOffset:])
	storedType := pg.Data[metaOffAttrType]
	if storedOffset != t.attrOffset || storedType != t.attrType {
		_ = t.pa.unpin(metadataPageNo, false)
		return ErrBadIndexInfo
	}

	t.relName = strings.TrimRight(string(pg.Data[metaOffRelName:metaOffRelName+relNameFieldSize]), "\x00")
	t.root = page.ID(getUint32(pg.Data[metaOffRootPageNo:]))

	return t.pa.unpin(metadataPageNo, false)
}

// Close ends any active scan, flushes dirty pages, and closes the
// underlying file.
func (t *Tree) Close() error {
	if t.cursor.active {
		_ = t.EndScan()
	}
	if err := t.pa.flush(); err != nil {
		return err
	}
	return t.file.Close()
}

func putUint32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func getUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func putInt32(b []byte, v int32) { putUint32(b, uint32(v)) }
func getInt32(b []byte) int32    { return int32(getUint32(b)) }
