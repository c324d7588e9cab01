package query

import (
	"runtime"

	"golang.org/x/sync/semaphore"

	"github.com/luma-launcher/luma/pkg/extension"
)

// ioWorkerMultiplier is the multiplier for I/O workers relative to CPU count.
const ioWorkerMultiplier = 2

// WorkerPools gates concurrent handler invocations with category-specific
// semaphores. Pools are shared by all queries of one engine so a burst of
// keystrokes cannot oversubscribe the host.
type WorkerPools struct {
	cpu *semaphore.Weighted
	io  *semaphore.Weighted
}

// NewWorkerPools creates pools with the given limits. Non-positive limits
// fall back to NumCPU for CPU-bound work and twice that for I/O-bound work.
func NewWorkerPools(maxCPU, maxIO int) *WorkerPools {
	if maxCPU <= 0 {
		maxCPU = runtime.NumCPU()
	}

	if maxIO <= 0 {
		maxIO = runtime.NumCPU() * ioWorkerMultiplier
	}

	return &WorkerPools{
		cpu: semaphore.NewWeighted(int64(maxCPU)),
		io:  semaphore.NewWeighted(int64(maxIO)),
	}
}

// poolFor returns the semaphore matching a handler category.
func (p *WorkerPools) poolFor(category extension.Category) *semaphore.Weighted {
	if category == extension.CategoryIO {
		return p.io
	}

	return p.cpu
}
