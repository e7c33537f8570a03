package resource

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Default client concurrency. Embedding round trips are GPU-bound on the
// server side and expensive; vector searches are cheap by comparison.
const (
	DefaultEmbedSlots  = 16
	DefaultSearchSlots = 32
)

// Config holds limits for calls leaving the process.
type Config struct {
	// MaxEmbedCalls caps concurrent embedding server round trips.
	// If 0, defaults to DefaultEmbedSlots.
	MaxEmbedCalls int64

	// MaxSearchCalls caps concurrent vector store round trips.
	// If 0, defaults to DefaultSearchSlots.
	MaxSearchCalls int64

	// MirrorBytesPerSec is the maximum snapshot mirror throughput.
	// If 0, unlimited.
	MirrorBytesPerSec int64
}

// Controller bounds the process's pressure on external services: the
// embedding server, the vector store and the snapshot mirror source.
// A nil *Controller is valid and enforces nothing.
type Controller struct {
	embedSem  *semaphore.Weighted
	searchSem *semaphore.Weighted
	ioLimiter *rate.Limiter

	embedInFlight  atomic.Int64
	searchInFlight atomic.Int64
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	if cfg.MaxEmbedCalls <= 0 {
		cfg.MaxEmbedCalls = DefaultEmbedSlots
	}
	if cfg.MaxSearchCalls <= 0 {
		cfg.MaxSearchCalls = DefaultSearchSlots
	}

	c := &Controller{
		embedSem:  semaphore.NewWeighted(cfg.MaxEmbedCalls),
		searchSem: semaphore.NewWeighted(cfg.MaxSearchCalls),
	}

	if cfg.MirrorBytesPerSec > 0 {
		c.ioLimiter = rate.NewLimiter(rate.Limit(cfg.MirrorBytesPerSec), int(cfg.MirrorBytesPerSec))
	}

	return c
}

// AcquireEmbed reserves an embedding call slot, blocking until one is
// free or ctx is canceled.
func (c *Controller) AcquireEmbed(ctx context.Context) error {
	if c == nil {
		return nil
	}
	if err := c.embedSem.Acquire(ctx, 1); err != nil {
		return err
	}
	c.embedInFlight.Add(1)
	return nil
}

// TryAcquireEmbed reserves an embedding slot without blocking.
func (c *Controller) TryAcquireEmbed() bool {
	if c == nil {
		return true
	}
	if !c.embedSem.TryAcquire(1) {
		return false
	}
	c.embedInFlight.Add(1)
	return true
}

// ReleaseEmbed releases an embedding call slot.
func (c *Controller) ReleaseEmbed() {
	if c == nil {
		return
	}
	c.embedInFlight.Add(-1)
	c.embedSem.Release(1)
}

// EmbedInFlight returns the number of embedding calls currently running.
func (c *Controller) EmbedInFlight() int64 {
	if c == nil {
		return 0
	}
	return c.embedInFlight.Load()
}

// AcquireSearch reserves a vector search slot, blocking until one is
// free or ctx is canceled.
func (c *Controller) AcquireSearch(ctx context.Context) error {
	if c == nil {
		return nil
	}
	if err := c.searchSem.Acquire(ctx, 1); err != nil {
		return err
	}
	c.searchInFlight.Add(1)
	return nil
}

// TryAcquireSearch reserves a vector search slot without blocking.
func (c *Controller) TryAcquireSearch() bool {
	if c == nil {
		return true
	}
	if !c.searchSem.TryAcquire(1) {
		return false
	}
	c.searchInFlight.Add(1)
	return true
}

// ReleaseSearch releases a vector search slot.
func (c *Controller) ReleaseSearch() {
	if c == nil {
		return
	}
	c.searchInFlight.Add(-1)
	c.searchSem.Release(1)
}

// SearchInFlight returns the number of vector searches currently running.
func (c *Controller) SearchInFlight() int64 {
	if c == nil {
		return 0
	}
	return c.searchInFlight.Load()
}

// AcquireIO waits until the mirror throughput limit allows the
// specified number of bytes.
func (c *Controller) AcquireIO(ctx context.Context, bytes int) error {
	if c == nil || c.ioLimiter == nil {
		return nil
	}
	return c.ioLimiter.WaitN(ctx, bytes)
}
