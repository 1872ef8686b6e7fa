// Package coordinator implements the generation-counted barrier that hands
// work out to a fixed pool of workers and waits for them to finish it
// (SPEC_FULL.md §4.G). Grounded on the teacher's
// pkg/bench/versus_arena.go (sync.WaitGroup + atomic "finished" flag,
// worker-0-waits-then-publishes shape) and pkg/mcts/limiter.go (the
// StopReason bitmask, generalized here to a coordinator-wide stop signal
// instead of a single search's limiter).
package coordinator

import (
	"sync"
	"sync/atomic"
)

// StopReason records why the coordinator asked its workers to shut down.
// Bitmask shape mirrors the teacher's mcts.StopReason (pkg/mcts/limiter.go),
// generalized from one limiter's reasons to a pool-wide shutdown cause.
type StopReason int32

const (
	StopNone      StopReason = 0
	StopInterrupt StopReason = 1 << iota // iota=1 -> 2
	StopMovetime                         // iota=2 -> 4
	StopError                            // iota=3 -> 8
)

func (sr StopReason) String() string {
	if sr == StopNone {
		return "None"
	}
	reasons := []struct {
		flag StopReason
		name string
	}{
		{StopInterrupt, "Interrupt"},
		{StopMovetime, "Movetime"},
		{StopError, "Error"},
	}
	var out string
	for _, r := range reasons {
		if sr&r.flag == r.flag {
			if out != "" {
				out += "|"
			}
			out += r.name
		}
	}
	return out
}

// WorkCoordinator is a generation-counted barrier: the controller calls
// GenerateWork(n) to release n workers into a new generation, each worker
// calls WaitForWorkItems to block until a generation is available to it and
// OnWorkItemCompleted when it's done with that generation, and the
// controller calls WaitForWorkers to block until every released worker has
// reported completion. A shared atomic stop flag (ShouldShutDown) is
// checked at every wait so a cancellation reaches blocked workers promptly,
// the same role mcts.Limiter.Stop() plays inside the teacher's single-tree
// search loop.
type WorkCoordinator struct {
	mu   sync.Mutex
	cond *sync.Cond

	generation uint64
	released   int
	completed  int

	stop   atomic.Bool
	reason atomic.Int32
}

// New returns a coordinator at generation 0; the first GenerateWork call
// hands out generation 1.
func New() *WorkCoordinator {
	c := &WorkCoordinator{}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// GenerateWork starts a new generation and releases count workers into it,
// waking every goroutine blocked in WaitForWorkItems.
func (c *WorkCoordinator) GenerateWork(count int) uint64 {
	c.mu.Lock()
	c.generation++
	c.released = count
	c.completed = 0
	gen := c.generation
	c.mu.Unlock()
	c.cond.Broadcast()
	return gen
}

// WaitForWorkItems blocks until a generation newer than lastSeen is
// available, or the coordinator is asked to shut down. Returns the new
// generation number and whether the caller should actually run (false
// means shut down without doing work).
func (c *WorkCoordinator) WaitForWorkItems(lastSeen uint64) (generation uint64, shouldRun bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.generation == lastSeen && !c.stop.Load() {
		c.cond.Wait()
	}
	if c.stop.Load() {
		return c.generation, false
	}
	return c.generation, true
}

// OnWorkItemCompleted reports that the calling worker finished its share of
// the current generation. Wakes any goroutine blocked in WaitForWorkers
// once every released worker has reported in.
func (c *WorkCoordinator) OnWorkItemCompleted() {
	c.mu.Lock()
	c.completed++
	done := c.completed >= c.released
	c.mu.Unlock()
	if done {
		c.cond.Broadcast()
	}
}

// WaitForWorkers blocks until every worker released by the most recent
// GenerateWork call has reported completion, or the coordinator is asked to
// shut down.
func (c *WorkCoordinator) WaitForWorkers() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.completed < c.released && !c.stop.Load() {
		c.cond.Wait()
	}
}

// RequestShutDown sets the stop flag with the given reason and wakes every
// blocked waiter, mirroring mcts.Limiter.SetStop but broadcast across the
// whole worker pool instead of polled by a single search loop.
func (c *WorkCoordinator) RequestShutDown(reason StopReason) {
	c.stop.Store(true)
	c.reason.Store(int32(reason))
	c.cond.Broadcast()
}

// ShouldShutDown reports whether the coordinator has been asked to stop.
// The barrier waits read the same flag directly; workers observe it only
// through WaitForWorkItems, not inside their per-game tick loop
// (SPEC_FULL.md §4.G).
func (c *WorkCoordinator) ShouldShutDown() bool {
	return c.stop.Load()
}

// StopReason returns why the coordinator was asked to shut down, valid
// after ShouldShutDown returns true.
func (c *WorkCoordinator) StopReason() StopReason {
	return StopReason(c.reason.Load())
}

// Reset clears the stop flag and generation counters, for reuse across
// successive searches from the same driver (SPEC_FULL.md §4.H "go"
// sequence resets search state before releasing the barrier).
func (c *WorkCoordinator) Reset() {
	c.mu.Lock()
	c.generation = 0
	c.released = 0
	c.completed = 0
	c.mu.Unlock()
	c.stop.Store(false)
	c.reason.Store(0)
}
