// Package resource bounds the process's pressure on external services.
//
// A Controller holds semaphores for concurrent embedding and vector
// store round trips plus an optional byte-rate limiter for snapshot
// mirroring. A nil *Controller is valid everywhere and enforces
// nothing, so callers can thread it through unconditionally.
package resource
