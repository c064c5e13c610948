package dsmgr

/*
Options for the dataset manager.
*/

type config struct {
	cacheSize int64
}

// Option is a function that modifies the manager configuration.
type Option func(*config)

// WithCacheSize sets the number of opened dataset versions kept in memory.
func WithCacheSize(size int64) Option {
	return func(c *config) {
		c.cacheSize = size
	}
}
