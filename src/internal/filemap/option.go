package filemap

// Option configures a Service.
type Option func(*Service)

// DefaultCacheSize is the default number of identity to location mappings a Service keeps in
// memory.
const DefaultCacheSize = 1024

// WithCacheSize sets how many identity to location mappings are cached.  Zero disables the cache.
func WithCacheSize(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.cacheSize = n
		}
	}
}

// WithMaxFragments caps the number of fragments a single read may return.  A read that needs more
// fails with ErrAllocation.  Zero means no cap; values below the initial capacity are raised to it.
func WithMaxFragments(n int) Option {
	return func(s *Service) {
		switch {
		case n <= 0:
			s.maxFragments = 0
		case n < initialFragments:
			s.maxFragments = initialFragments
		default:
			s.maxFragments = n
		}
	}
}
