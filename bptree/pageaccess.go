// Page Access Facade: the only file in this package that pins, allocates,
// unpins or flushes buffer-pool pages (lifecycle.go also imports
// bufferpool, but only to construct the pool). Everything else in bptree
// goes through pageAccess.
package bptree

import (
	"fmt"

	"btreeidx/bufferpool"
	"btreeidx/page"
)

type pageAccess struct {
	bp *bufferpool.BufferPool
}

// pinRead obtains a readable view of page id.
func (a *pageAccess) pinRead(id page.ID) (*page.Page, error) {
	pg, err := a.bp.PinPage(id)
	if err != nil {
		return nil, fmt.Errorf("pageaccess: pinRead %d: %w", id, err)
	}
	return pg, nil
}

// pinWrite obtains a view of page id intended for mutation. Unpinning
// it with dirty=true is the caller's responsibility.
func (a *pageAccess) pinWrite(id page.ID) (*page.Page, error) {
	pg, err := a.bp.PinPage(id)
	if err != nil {
		return nil, fmt.Errorf("pageaccess: pinWrite %d: %w", id, err)
	}
	return pg, nil
}

// alloc allocates a fresh, zero-filled page.
func (a *pageAccess) alloc() (*page.Page, error) {
	pg, err := a.bp.AllocatePage()
	if err != nil {
		return nil, fmt.Errorf("pageaccess: alloc: %w", err)
	}
	return pg, nil
}

// unpin releases a pin obtained via pinRead, pinWrite, or alloc.
// Every successful pin* must be matched by exactly one unpin.
func (a *pageAccess) unpin(id page.ID, dirty bool) error {
	if err := a.bp.UnpinPage(id, dirty); err != nil {
		return fmt.Errorf("pageaccess: unpin %d: %w", id, err)
	}
	return nil
}

// flush forces all dirty pages of this file to disk.
func (a *pageAccess) flush() error {
	if err := a.bp.FlushFile(); err != nil {
		return fmt.Errorf("pageaccess: flush: %w", err)
	}
	return nil
}
