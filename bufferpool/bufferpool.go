// Package bufferpool is the pin-counted page cache sitting between the
// B+ tree and its backing page file. All of the B+ tree's page reads and
// writes go through it; bptree itself only opens and closes the index
// file, and package relation reads and writes its own pagefile directly.
//
// Two tiers back PinPage: an authoritative frame table, exact and
// pin-counted, holding every page that is currently pinned or dirty; and a
// ristretto TinyLFU cache holding pages that were unpinned clean. A page in
// the soft tier can be evicted at any time for free — it cost nothing but a
// re-read from disk to begin with — so eviction correctness never has to
// reason about it. The frame table is where correctness lives.
package bufferpool

import (
	"fmt"

	"github.com/dgraph-io/ristretto/v2"

	"btreeidx/page"
	"btreeidx/pagefile"
)

// BufferPool is a pin-counted buffer pool over one page file.
type BufferPool struct {
	file     *pagefile.File
	frames   map[page.ID]*page.Page
	order    []page.ID // LRU order of frame-table entries, most-recent last
	soft     *ristretto.Cache[page.ID, []byte]
	capacity int

	// Verbose, when true, prints a "[bufferpool] ..." trace line for every
	// hit, miss, demotion, and eviction. Off by default so library callers
	// stay quiet.
	Verbose bool
}

// New creates a buffer pool in front of f.
func New(f *pagefile.File, opts ...Option) (*BufferPool, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	soft, err := ristretto.NewCache(&ristretto.Config[page.ID, []byte]{
		NumCounters: int64(cfg.capacity) * 10,
		MaxCost:     int64(cfg.capacity) * int64(page.Size),
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("bufferpool: create soft cache: %w", err)
	}

	return &BufferPool{
		file:     f,
		frames:   make(map[page.ID]*page.Page, cfg.capacity),
		soft:     soft,
		capacity: cfg.capacity,
		Verbose:  cfg.verbose,
	}, nil
}

func (bp *BufferPool) log(format string, args ...any) {
	if bp.Verbose {
		fmt.Printf("[bufferpool] "+format+"\n", args...)
	}
}

// PinPage returns the page identified by id with its pin count
// incremented by one, loading it from the soft cache or disk if it is
// not already resident in the frame table.
func (bp *BufferPool) PinPage(id page.ID) (*page.Page, error) {
	if id == page.NilID {
		return nil, fmt.Errorf("bufferpool: cannot pin page 0")
	}

	if pg, ok := bp.frames[id]; ok {
		pg.PinCount++
		bp.log("hit  pageID=%d pinCount=%d", id, pg.PinCount)
		bp.touch(id)
		return pg, nil
	}

	var data []byte
	if cached, ok := bp.soft.Get(id); ok {
		bp.log("soft-hit pageID=%d", id)
		data = append([]byte(nil), cached...)
	} else {
		bp.log("miss pageID=%d — loading from disk", id)
		disk, err := bp.file.ReadPage(id)
		if err != nil {
			return nil, fmt.Errorf("bufferpool: pin page %d: %w", id, err)
		}
		data = disk.Data
	}

	pg := &page.Page{ID: id, Data: data, PinCount: 1}
	if err := bp.admit(pg); err != nil {
		return nil, err
	}
	return pg, nil
}

// AllocatePage reserves a fresh page on disk, admits it to the frame
// table pinned and dirty, and returns it.
func (bp *BufferPool) AllocatePage() (*page.Page, error) {
	id, err := bp.file.Allocate()
	if err != nil {
		return nil, fmt.Errorf("bufferpool: allocate page: %w", err)
	}

	pg := &page.Page{ID: id, Data: make([]byte, page.Size), Dirty: true, PinCount: 1}
	if err := bp.admit(pg); err != nil {
		return nil, err
	}
	bp.log("alloc pageID=%d", id)
	return pg, nil
}

// UnpinPage decrements id's pin count and marks it dirty if requested.
// A page that reaches pin count zero while clean is demoted out of the
// frame table into the soft cache immediately — losing a clean page
// costs nothing, so there is no reason to keep it in the exact tier.
func (bp *BufferPool) UnpinPage(id page.ID, dirty bool) error {
	pg, ok := bp.frames[id]
	if !ok {
		return fmt.Errorf("bufferpool: unpin: page %d not in frame table", id)
	}
	if pg.PinCount <= 0 {
		return fmt.Errorf("bufferpool: unpin: page %d is not pinned", id)
	}

	pg.PinCount--
	if dirty {
		pg.Dirty = true
	}

	if pg.PinCount == 0 && !pg.Dirty {
		bp.log("demote pageID=%d -> soft cache (clean, unpinned)", id)
		bp.soft.Set(id, append([]byte(nil), pg.Data...), int64(page.Size))
		delete(bp.frames, id)
		bp.removeFromOrder(id)
	}
	return nil
}

// FlushFile writes every dirty page in the frame table to disk and
// syncs the underlying file.
func (bp *BufferPool) FlushFile() error {
	bp.log("flush — frame table size=%d", len(bp.frames))
	for id, pg := range bp.frames {
		if pg.Dirty {
			if err := bp.file.WritePage(pg); err != nil {
				return fmt.Errorf("bufferpool: flush page %d: %w", id, err)
			}
			pg.Dirty = false
		}
	}
	return bp.file.Sync()
}

// GetFirstPageNo passes through to the backing page file's convention
// that page 1 is always the first page.
func (bp *BufferPool) GetFirstPageNo() page.ID { return bp.file.GetFirstPageNo() }

// admit inserts pg into the frame table, evicting if the pool is at
// capacity. Only pinned or dirty pages are ever admitted here — clean,
// unpinned pages never enter the frame table, they go straight to the
// soft cache via UnpinPage.
func (bp *BufferPool) admit(pg *page.Page) error {
	if len(bp.frames) >= bp.capacity {
		if err := bp.evict(); err != nil {
			return fmt.Errorf("bufferpool: admit page %d: %w", pg.ID, err)
		}
	}
	bp.frames[pg.ID] = pg
	bp.touch(pg.ID)
	return nil
}

// evict flushes and drops the least-recently-touched unpinned page in
// the frame table. An unpinned page still resident here is dirty, or
// was made clean by FlushFile (which leaves pages in the frame table);
// evict writes the page back in either case.
func (bp *BufferPool) evict() error {
	for i := 0; i < len(bp.order); i++ {
		id := bp.order[i]
		pg, ok := bp.frames[id]
		if !ok {
			bp.order = append(bp.order[:i], bp.order[i+1:]...)
			i--
			continue
		}
		if pg.PinCount > 0 {
			continue
		}

		if err := bp.file.WritePage(pg); err != nil {
			return fmt.Errorf("write page %d during eviction: %w", id, err)
		}
		pg.Dirty = false

		bp.log("evict pageID=%d -> flushed, soft cache", id)
		bp.soft.Set(id, append([]byte(nil), pg.Data...), int64(page.Size))
		delete(bp.frames, id)
		bp.order = append(bp.order[:i], bp.order[i+1:]...)
		return nil
	}
	return fmt.Errorf("all pages pinned, cannot evict")
}

func (bp *BufferPool) touch(id page.ID) {
	bp.removeFromOrder(id)
	bp.order = append(bp.order, id)
}

func (bp *BufferPool) removeFromOrder(id page.ID) {
	for i, v := range bp.order {
		if v == id {
			bp.order = append(bp.order[:i], bp.order[i+1:]...)
			return
		}
	}
}
