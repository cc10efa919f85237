package sprite

// unionFind is a disjoint-set forest over provisional labels 1..n. The root
// of every class is its smallest member, so find yields the canonical label
// directly.
type unionFind struct {
	parent []int
}

func newUnionFind(capacity int) *unionFind {
	uf := &unionFind{parent: make([]int, 1, capacity+1)}
	return uf
}

// add registers a new label and returns it.
func (u *unionFind) add() int {
	label := len(u.parent)
	u.parent = append(u.parent, label)
	return label
}

func (u *unionFind) find(x int) int {
	root := x
	for u.parent[root] != root {
		root = u.parent[root]
	}
	// path compression
	for u.parent[x] != root {
		next := u.parent[x]
		u.parent[x] = root
		x = next
	}
	return root
}

func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	switch {
	case ra == rb:
		return
	case ra < rb:
		u.parent[rb] = ra
	default:
		u.parent[ra] = rb
	}
}

// classes returns the number of distinct roots among labels 1..n.
func (u *unionFind) classes() int {
	n := 0
	for l := 1; l < len(u.parent); l++ {
		if u.find(l) == l {
			n++
		}
	}
	return n
}
