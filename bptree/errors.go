package bptree

import "errors"

// Sentinel errors for the named failure kinds this index can raise.
// Callers should compare with errors.Is, since internal call sites wrap
// these with additional context via fmt.Errorf("...: %w", err).
var (
	// ErrBadOpcodes is returned by StartScan when lowOp/highOp fall
	// outside {GT, GTE} x {LT, LTE}.
	ErrBadOpcodes = errors.New("bptree: scan operator outside {GT,GTE}x{LT,LTE}")

	// ErrBadScanRange is returned by StartScan when lowVal > highVal.
	ErrBadScanRange = errors.New("bptree: low bound greater than high bound")

	// ErrNoSuchKeyFound is returned by StartScan when no key in the tree
	// satisfies the requested predicate.
	ErrNoSuchKeyFound = errors.New("bptree: no key satisfies the scan predicate")

	// ErrScanNotInitialized is returned by ScanNext or EndScan when no
	// scan is currently active.
	ErrScanNotInitialized = errors.New("bptree: no active scan")

	// ErrIndexScanCompleted is returned by ScanNext once the cursor has
	// passed the last matching entry.
	ErrIndexScanCompleted = errors.New("bptree: scan exhausted")

	// ErrBadIndexInfo is returned by Open when an existing index file's
	// metadata does not match the requested attribute offset/type.
	ErrBadIndexInfo = errors.New("bptree: metadata does not match requested attribute")
)
