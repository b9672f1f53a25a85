// internal/engine/scheduler/config.go
package scheduler

import (
	"fmt"
	"time"
)

type Config struct {
	MaxAttempts     int
	DispatchTimeout time.Duration
	SweepBatchSize  int
	ClaimLease      time.Duration
	BulkWorkers     int
}

func DefaultConfig() *Config {
	return &Config{
		MaxAttempts:     3,
		DispatchTimeout: 30 * time.Second,
		SweepBatchSize:  100,
		ClaimLease:      2 * time.Minute,
		BulkWorkers:     1,
	}
}

func (c *Config) Validate() error {
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("max attempts must be positive")
	}
	if c.DispatchTimeout <= 0 {
		return fmt.Errorf("dispatch timeout must be positive")
	}
	if c.SweepBatchSize <= 0 {
		return fmt.Errorf("sweep batch size must be positive")
	}
	if c.ClaimLease <= 0 {
		return fmt.Errorf("claim lease must be positive")
	}
	if c.BulkWorkers < 1 {
		return fmt.Errorf("bulk workers must be at least 1")
	}
	return nil
}
