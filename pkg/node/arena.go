package node

// Arena owns the root of a search tree and the operations that mutate tree
// shape: expansion allocates into it implicitly (each Node's children slice
// is its own allocation), and pruning releases subtrees back to the
// garbage collector. Grounded on the teacher's root-replacement pattern in
// pkg/mcts/mcts.go's MakeMove (tree reuse), generalized from the generic
// NodeBase[T] to the concrete chess Node above.
type Arena struct {
	root *Node
}

// NewArena creates an arena with a single unexpanded root.
func NewArena() *Arena {
	return &Arena{root: NewRoot()}
}

// Root returns the current root node.
func (a *Arena) Root() *Node {
	return a.root
}

// PruneExcept walks every sibling subtree of keep on the path from the
// current root down to keep's parent, dropping their child-array references
// so the Go garbage collector can reclaim them, then promotes keep to be
// the new root (tree reuse). keep must be a direct child of the current
// root; callers doing a multi-ply prune call this repeatedly.
//
// "Freeing" here means clearing the owning slice reference: the teacher
// repo and this one both rely on GC rather than manual allocation, so
// depth-first freeing reduces to depth-first nilling so no parent keeps a
// live reference into a dropped subtree that nothing else doesn't already
// hold.
func (a *Arena) PruneExcept(keep *Node) {
	children := a.root.Children()
	for i := range children {
		if &children[i] == keep {
			continue
		}
		freeSubtree(&children[i])
	}
	a.root = keep
}

// PruneAll empties the tree, replacing the root with a fresh, unexpanded
// node.
func (a *Arena) PruneAll() {
	freeSubtree(a.root)
	a.root = NewRoot()
}

func freeSubtree(n *Node) {
	children := n.Children()
	for i := range children {
		freeSubtree(&children[i])
	}
	n.children = nil
	n.childCount = 0
}
