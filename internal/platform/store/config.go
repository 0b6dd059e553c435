package store

import "time"

// Config aggregates backend configuration
type Config struct {
	Cache CacheConfig
}

// CacheConfig configures the response cache backend
// an empty Path selects the memory-only backend
type CacheConfig struct {
	Path        string
	OpenTimeout time.Duration // bolt lock wait, default 1s
}
