package worker

import (
	"context"
	"encoding/json"
	"fmt"

	redisWrapper "github.com/carvault/ingestor/common/redis"
)

// CompletionOpts contains options for sending an archive completion signal
type CompletionOpts struct {
	BatchID    string
	ArchiveID  string
	Status     string // "completed" or "failed"
	Blocks     int64
	DurationMS int64
	Error      string
}

// Validate checks if all required fields are present
func (opts *CompletionOpts) Validate() error {
	if opts.ArchiveID == "" {
		return fmt.Errorf("archive ID is required")
	}
	if opts.Status == "" {
		return fmt.Errorf("status is required")
	}
	if opts.Status != "completed" && opts.Status != "failed" {
		return fmt.Errorf("status must be 'completed' or 'failed', got: %s", opts.Status)
	}
	if opts.Status == "failed" && opts.Error == "" {
		return fmt.Errorf("error detail is required for failed status")
	}
	return nil
}

// Signaler pushes archive completion signals onto a Redis list for
// downstream consumers (indexers, alerting). Optional: a nil Signaler is
// valid and signals nothing.
type Signaler struct {
	redis *redisWrapper.Client
	queue string
}

// NewSignaler creates a completion signaler writing to the given list
func NewSignaler(redis *redisWrapper.Client, queue string) *Signaler {
	return &Signaler{redis: redis, queue: queue}
}

// Signal sends a completion signal for one archive
func (s *Signaler) Signal(ctx context.Context, opts *CompletionOpts) error {
	if s == nil {
		return nil
	}
	if err := opts.Validate(); err != nil {
		return fmt.Errorf("invalid completion opts: %w", err)
	}

	signal := map[string]interface{}{
		"version":     "1.0",
		"batch_id":    opts.BatchID,
		"archive_id":  opts.ArchiveID,
		"status":      opts.Status,
		"blocks":      opts.Blocks,
		"duration_ms": opts.DurationMS,
	}
	if opts.Error != "" {
		signal["error"] = opts.Error
	}

	signalJSON, err := json.Marshal(signal)
	if err != nil {
		return fmt.Errorf("failed to marshal signal: %w", err)
	}

	if err := s.redis.RPush(ctx, s.queue, signalJSON); err != nil {
		return fmt.Errorf("failed to push completion signal: %w", err)
	}
	return nil
}
