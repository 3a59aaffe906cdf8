package spatial

import "iter"

// QueryBounds yields every entity whose point (or footprint) intersects
// region. Subtrees whose bounds miss region are skipped. The sequence is
// lazy; the tree must not be mutated until iteration ends, and results are
// only valid for the current frame.
func (t *Tree[E, B]) QueryBounds(region B) iter.Seq[E] {
	return t.QueryNode(t.root, region)
}

// QueryNode is QueryBounds restricted to the subtree under n. The start node
// itself is never pruned, so oversized footprints parked there are tested.
func (t *Tree[E, B]) QueryNode(n *Node[E, B], region B) iter.Seq[E] {
	return func(yield func(E) bool) {
		if n == nil || n.disposed {
			return
		}
		t.walking++
		defer func() { t.walking-- }()
		t.query(n, region, yield)
	}
}

func (t *Tree[E, B]) query(n *Node[E, B], region B, yield func(E) bool) bool {
	for _, e := range n.entities {
		if t.hit(e, region) && !yield(e) {
			return false
		}
	}
	for _, c := range n.children {
		if !c.bounds.Intersects(region) {
			continue
		}
		if !t.query(c, region, yield) {
			return false
		}
	}
	return true
}

// Walk visits nodes in pre-order until fn returns false.
func (t *Tree[E, B]) Walk(fn func(*Node[E, B]) bool) {
	t.walking++
	defer func() { t.walking-- }()
	t.walk(t.root, fn)
}

func (t *Tree[E, B]) walk(n *Node[E, B], fn func(*Node[E, B]) bool) bool {
	if !fn(n) {
		return false
	}
	for _, c := range n.children {
		if !t.walk(c, fn) {
			return false
		}
	}
	return true
}

// Connected yields the live connection targets of every node whose bounds
// intersect region, each target once.
func (t *Tree[E, B]) Connected(region B) iter.Seq[*Node[E, B]] {
	return func(yield func(*Node[E, B]) bool) {
		seen := make(map[*Node[E, B]]struct{})
		var visit func(n *Node[E, B]) bool
		visit = func(n *Node[E, B]) bool {
			for _, target := range n.Connections() {
				if _, dup := seen[target]; dup {
					continue
				}
				seen[target] = struct{}{}
				if !yield(target) {
					return false
				}
			}
			for _, c := range n.children {
				if c.bounds.Intersects(region) && !visit(c) {
					return false
				}
			}
			return true
		}
		t.walking++
		defer func() { t.walking-- }()
		visit(t.root)
	}
}
