// Package resource governs the memory and IO budgets of flag storage.
//
//	┌─────────────────────────────┬──────────────────────────────┐
//	│  Memory budget (fail-fast)  │  IO rate limiter             │
//	├─────────────────────────────┼──────────────────────────────┤
//	│  AcquireMemory              │  AcquireIO                   │
//	│  ReleaseMemory              │  RateLimitedWriter           │
//	│  MemoryAvailable            │  RateLimitedReader           │
//	└─────────────────────────────┴──────────────────────────────┘
//
// # Memory
//
// Storage is reserved once, when the first agent allocates, and returned when
// the last agent closes. AcquireMemory never blocks; the allocator uses
// MemoryAvailable to shrink the compact time ring before giving up:
//
//	rc := resource.NewController(resource.Config{MemoryLimitBytes: 64 << 20})
//	if err := rc.AcquireMemory(need); err != nil {
//	    // ErrMemoryLimitExceeded
//	}
//	defer rc.ReleaseMemory(need)
//
// # IO
//
// Frame traffic to the external source and sink is throttled by a token
// bucket sized to one second of throughput.
//
// # Nil Safety
//
// All methods handle a nil Controller: memory is unlimited and untracked,
// IO is unthrottled.
package resource
