package dedupe

// Option configures NewInMemoryDeduper.
type Option func(*inMemoryDeduper)

// WithMaxSize bounds how many batch IDs are remembered. Once full, the
// oldest ID is forgotten and a batch retried after that is scaled again.
// Zero or less remembers every ID.
func WithMaxSize(maxSize int) Option {
	return func(d *inMemoryDeduper) {
		d.maxSize = maxSize
	}
}
