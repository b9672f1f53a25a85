// internal/engine/template/config.go
package template

import (
	"fmt"
	"time"
)

type Config struct {
	CacheEnabled bool
	CacheTTL     time.Duration
	CachePrefix  string
}

func DefaultConfig() *Config {
	return &Config{
		CacheEnabled: true,
		CacheTTL:     5 * time.Minute,
		CachePrefix:  "tpl",
	}
}

func (c *Config) Validate() error {
	if c.CacheEnabled && c.CacheTTL <= 0 {
		return fmt.Errorf("cache TTL must be positive when caching is enabled")
	}
	if c.CachePrefix == "" {
		return fmt.Errorf("cache prefix cannot be empty")
	}
	return nil
}
