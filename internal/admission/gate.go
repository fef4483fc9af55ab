// Package admission bounds how many segment commits may execute
// concurrently across the process. The gate is constructed once during
// application wiring and handed to every committer; there is no ambient
// global state.
package admission

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"

	"github.com/sedimentdb/sediment/internal/errors"
)

// Gate is a counting permit pool guarding the segment commit critical
// section. An unbounded gate admits every caller immediately.
type Gate struct {
	permits int
	sem     *semaphore.Weighted // nil when unbounded
}

// NewGate constructs a gate admitting at most maxConcurrent holders at
// once. Zero means unbounded: Acquire and Release become no-ops. A
// negative count is rejected here, at construction, never at use time.
func NewGate(maxConcurrent int) (*Gate, error) {
	if maxConcurrent < 0 {
		return nil, errors.NewConfigurationError(errors.CodeInvalidPermits,
			fmt.Sprintf("commit admission permit count must not be negative, got %d", maxConcurrent))
	}
	if maxConcurrent == 0 {
		return &Gate{}, nil
	}
	return &Gate{
		permits: maxConcurrent,
		sem:     semaphore.NewWeighted(int64(maxConcurrent)),
	}, nil
}

// Acquire blocks until a permit is available or ctx is done. A cancelled
// wait holds no permit and surfaces the interrupted condition; callers
// must abandon the commit rather than proceed without a permit.
func (g *Gate) Acquire(ctx context.Context) error {
	if g == nil || g.sem == nil {
		return nil
	}
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return errors.NewCommitInterrupted("cancelled while waiting for a commit permit", err)
	}
	return nil
}

// Release returns a permit to the pool. It never blocks. Release must be
// called exactly once per successful Acquire, on every exit path.
func (g *Gate) Release() {
	if g == nil || g.sem == nil {
		return
	}
	g.sem.Release(1)
}

// Bounded reports whether the gate actually limits concurrency.
func (g *Gate) Bounded() bool {
	return g != nil && g.sem != nil
}

// Permits returns the configured permit count; zero means unbounded.
func (g *Gate) Permits() int {
	if g == nil {
		return 0
	}
	return g.permits
}
