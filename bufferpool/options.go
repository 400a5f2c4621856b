package bufferpool

// Option configures a BufferPool at construction time.
type Option func(*config)

type config struct {
	capacity int
	verbose  bool
}

// WithCapacity sets the number of pages the authoritative frame table may
// hold at once (pinned pages never leave it and dirty ones leave only by
// being written back on eviction, so this is a hard cap on how many pages
// can be simultaneously pinned, not a soft hint).
func WithCapacity(n int) Option {
	return func(c *config) { c.capacity = n }
}

// WithVerbose turns on the "[bufferpool] hit/miss/evict" trace lines.
// It is off by default.
func WithVerbose(v bool) Option {
	return func(c *config) { c.verbose = v }
}

func defaultConfig() config {
	return config{capacity: 64, verbose: false}
}
