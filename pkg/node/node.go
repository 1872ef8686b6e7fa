package node

import (
	"sync/atomic"
	"unsafe"

	"github.com/IlikeChooros/dragontoothmg"
)

// Expansion states for Node.expansion, mirroring the teacher's
// CanExpand/ExpandingMask/ExpandedMask flag idiom (pkg/mcts/node.go) but
// collapsed to the three states this spec actually needs.
const (
	ExpansionNone     uint32 = 0
	ExpansionExpanding uint32 = 1
	ExpansionExpanded  uint32 = 2
)

// TablebaseBound classifies a tablebase-provided score.
type TablebaseBound int32

const (
	TablebaseBoundNone TablebaseBound = iota
	TablebaseBoundExact
	TablebaseBoundLower
	TablebaseBoundUpper
)

// Node is one state in the search tree, packed to fit a single 64-byte
// cache line (verified by TestNodeFitsCacheLine via unsafe.Sizeof). Fields
// are ordered 8-byte-aligned first (children, bestChild, valueBits: 24
// bytes), then the 4-byte fields (childCount, Prior, visitingCount,
// visitCount, upWeight, terminal, expansion, tablebaseScore, tablebaseBound:
// 36 bytes), then the 2-byte Move (2 bytes) — 62 bytes of live data, padded
// to 64 by the struct's own 8-byte alignment. Reordering these fields (or
// widening any of them) can push the struct past 64 bytes; re-run the size
// test after any change here. Every field a worker can touch concurrently is
// accessed only through the atomic accessors below; Move and Prior are
// written exactly once, during expansion, before the node is reachable from
// any other worker, so they need no atomic wrapper.
type Node struct {
	// children points at the first element of an owning, contiguous Node
	// array (never a re-sliceable Go slice header, which costs 24 bytes
	// instead of 8 — SPEC_FULL.md §3's "owning pointer to a contiguous
	// array of child Nodes" is taken literally). Guarded by expansion's
	// release/acquire pairing rather than its own lock: written only under
	// a successful CAS of expansion None->Expanding, by exactly one
	// goroutine, so a plain field write followed by the release store in
	// FinishExpand is sufficient; every other reader goes through
	// Children(), which loads expansion with acquire first.
	children  *Node
	bestChild atomic.Pointer[Node]
	valueBits atomic.Uint64 // packed (valueAverage float32, valueWeight int32)

	childCount int32 // length of the array children points into

	Prior float32 // policy probability for this edge

	visitingCount atomic.Uint32 // virtual loss counter (visits in flight)
	visitCount    atomic.Int32  // completed simulations through this node
	upWeight      atomic.Int32  // cumulative credited weight contributed upward

	terminal  atomic.Int32 // Terminal, widened; TerminalAbsent == 0 is the zero value
	expansion atomic.Uint32

	tablebaseScore atomic.Int32
	tablebaseBound atomic.Int32

	Move dragontoothmg.Move // 16-bit encoded move from the parent to here
}

// NewRoot allocates a fresh, unexpanded root node.
func NewRoot() *Node {
	return &Node{}
}

// Children returns the child array, or nil if this node has not finished
// expanding. Safe to call concurrently with BeginExpand/SetChildren: the
// acquire load of expansion happens-before any read of children published by
// the expanding worker's release store in FinishExpand.
func (n *Node) Children() []Node {
	if n.expansion.Load() != ExpansionExpanded {
		return nil
	}
	if n.children == nil {
		return nil
	}
	return unsafe.Slice(n.children, int(n.childCount))
}

// ChildCount reports len(Children()) without forcing an allocation check.
func (n *Node) ChildCount() int {
	return len(n.Children())
}

// Expanded reports whether this node has published its children. A terminal
// node that only recorded its terminal value is not expanded.
func (n *Node) Expanded() bool {
	return n.expansion.Load() == ExpansionExpanded
}

// BeginExpand attempts the single-writer None->Expanding transition. Only
// the worker for which this returns true may populate children; every other
// concurrent caller leaves the node alone (ExpansionRace, §7): selfplay's
// loser backpropagates its own evaluation without retrying.
func (n *Node) BeginExpand() bool {
	return n.expansion.CompareAndSwap(ExpansionNone, ExpansionExpanding)
}

// SetChildren installs the child array. Must only be called by the worker
// that won BeginExpand, and must be followed by FinishExpand. children must
// be backed by a single contiguous, owning allocation (e.g. a freshly
// make()'d slice) since only its first element's address and its length are
// retained; any later re-slicing or append by the caller is undefined.
func (n *Node) SetChildren(children []Node) {
	if len(children) == 0 {
		n.children = nil
		n.childCount = 0
		return
	}
	n.children = &children[0]
	n.childCount = int32(len(children))
}

// FinishExpand release-stores expansion=Expanded, publishing children (and
// every child's Move/Prior, already written by the caller) to all other
// workers per invariant 2 in SPEC_FULL.md §3.
func (n *Node) FinishExpand() {
	n.expansion.Store(ExpansionExpanded)
}

// AbandonExpand is used on a failed expansion (§7 FailNode): resets the node
// back to None so a later worker may retry, rather than wedging it forever
// in Expanding.
func (n *Node) AbandonExpand() {
	n.expansion.Store(ExpansionNone)
}

// Terminal returns the node's terminal classification.
func (n *Node) Terminal() Terminal {
	return Terminal(n.terminal.Load())
}

// SetTerminal stores t, honoring the monotone-mate testable property: a
// stronger (shorter) own-mate or a stronger (longer-delaying) opponent-mate
// may overwrite a weaker one, but a terminal value is never downgraded back
// to absent once set, and a non-mate draw never overwrites a mate.
func (n *Node) SetTerminal(t Terminal) {
	for {
		cur := Terminal(n.terminal.Load())
		if cur == t {
			return
		}
		if !cur.IsAbsent() && !cur.Promoted(t) {
			return
		}
		if n.terminal.CompareAndSwap(int32(cur), int32(t)) {
			return
		}
	}
}

// VisitingCount returns the current virtual-loss count (simulations in
// flight through this node).
func (n *Node) VisitingCount() uint32 {
	return n.visitingCount.Load()
}

// VisitCount returns the number of completed simulations through this node.
func (n *Node) VisitCount() int32 {
	return n.visitCount.Load()
}

// UpWeight returns the cumulative credited backprop weight for this
// subtree; see SPEC_FULL.md §9's resolution of the backpropagationPuctThreshold
// open question.
func (n *Node) UpWeight() int32 {
	return n.upWeight.Load()
}

// ApplyVirtualLoss atomically increments the virtual-loss counter before a
// worker descends through this node (SPEC_FULL.md §4.C: "applied ... before
// descending").
func (n *Node) ApplyVirtualLoss() {
	n.visitingCount.Add(1)
}

// RevertVirtualLoss atomically decrements the virtual-loss counter, called
// on backpropagation (success) or abort (failure) of the simulation that
// applied it.
func (n *Node) RevertVirtualLoss() {
	n.visitingCount.Add(^uint32(0)) // -1 via two's complement wraparound
}

// Value returns the current running-mean value, in [0,1].
func (n *Node) Value() float32 {
	v, _ := n.loadValue()
	return v
}

// ValueWeight returns the current denominator of the running mean.
func (n *Node) ValueWeight() int32 {
	_, w := n.loadValue()
	return w
}

func (n *Node) loadValue() (float32, int32) {
	bits := n.valueBits.Load()
	return float32FromBits(uint32(bits >> 32)), int32(uint32(bits))
}

func (n *Node) storeValue(v float32, w int32) uint64 {
	return uint64(bitsFromFloat32(v))<<32 | uint64(uint32(w))
}

// CreditBackprop folds one backpropagated sample into the weighted running
// average with a cap (SPEC_FULL.md §3): newWeight = min(oldWeight+weight,
// movingAverageCap), newMean = oldMean + weight*(sample-oldMean)/newWeight.
// movingAverageBuild controls how quickly the effective weight used in the
// denominator grows before the cap is reached, matching the teacher's
// pattern of a tunable "how fast does the running mean stabilize" knob
// (pkg/mcts/vars.go's exploration constants serve the analogous purpose for
// UCB1). Always increments visitCount and upWeight by weight, and always
// reverts one unit of virtual loss, regardless of the skip-credit gate
// applied by the caller (weight may be zero, in which case only visit
// accounting changes — see SPEC_FULL.md §4.C/§9).
func (n *Node) CreditBackprop(sample float32, weight int32, movingAverageCap, movingAverageBuild int32) {
	n.visitCount.Add(weight)
	n.RevertVirtualLoss()
	if weight == 0 {
		return
	}
	n.upWeight.Add(weight)
	for {
		old := n.valueBits.Load()
		oldMean := float32FromBits(uint32(old >> 32))
		oldWeight := int32(uint32(old))

		effWeight := weight
		if movingAverageBuild > 0 && oldWeight < movingAverageBuild {
			// Ramp the effective weight up while still building the
			// average, so early samples don't get permanently
			// under-weighted once the cap later kicks in.
			effWeight = weight * (movingAverageBuild - oldWeight + 1) / movingAverageBuild
			if effWeight < 1 {
				effWeight = 1
			}
		}

		newWeight := oldWeight + effWeight
		if movingAverageCap > 0 && newWeight > movingAverageCap {
			newWeight = movingAverageCap
		}
		if newWeight == 0 {
			newWeight = 1
		}
		newMean := oldMean + float32(effWeight)*(sample-oldMean)/float32(newWeight)

		next := n.storeValue(newMean, newWeight)
		if n.valueBits.CompareAndSwap(old, next) {
			return
		}
	}
}

// TablebaseBound returns the bound type of any tablebase-provided score.
func (n *Node) TablebaseBound() TablebaseBound {
	return TablebaseBound(n.tablebaseBound.Load())
}

// TablebaseScore returns the tablebase-provided score (undefined if
// TablebaseBound() == TablebaseBoundNone), stored at 1e-3 precision folded
// into an int32 the same way the teacher folds float outcomes into a
// fixed-point atomic (pkg/mcts/node.go's sumOutcomes).
func (n *Node) TablebaseScore() float32 {
	return float32(n.tablebaseScore.Load()) / 1e3
}

// SetTablebaseInfo records a tablebase probe result. A TablebaseProbeFailed
// error (§7) should simply not call this, leaving the bound at
// TablebaseBoundNone ("soft" disposition: treat as no tablebase info).
func (n *Node) SetTablebaseInfo(score float32, bound TablebaseBound) {
	n.tablebaseScore.Store(int32(score * 1e3))
	n.tablebaseBound.Store(int32(bound))
}

// BestChild returns the advisory cached pointer used to build the PV
// without scanning (SPEC_FULL.md §5: "bestChild is advisory").
func (n *Node) BestChild() *Node {
	return n.bestChild.Load()
}

// SetBestChild updates the advisory cache.
func (n *Node) SetBestChild(c *Node) {
	n.bestChild.Store(c)
}
