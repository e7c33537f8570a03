package corpus

import (
	"cmp"
	"slices"

	"github.com/santhoshtr/topictrends/internal/visited"
)

// MaxGraphDepth is the depth cap. Categories whose BFS depth would exceed
// it are clamped and counted.
const MaxGraphDepth = 63

// edge is one resolved (source dense, target dense) pair.
type edge struct {
	src uint32
	dst uint32
}

// csr is a compressed sparse row adjacency list over dense ids. Neighbor
// slices are sorted ascending and duplicate-free.
type csr struct {
	offsets []uint32
	targets []uint32
}

// buildCSR constructs the adjacency from unsorted pairs in three passes:
// degree count, prefix-sum placement, then per-slice sort with in-place
// dedup and offset compaction.
func buildCSR(nodes int, edges []edge) csr {
	counts := make([]uint32, nodes)
	for _, e := range edges {
		counts[e.src]++
	}

	offsets := make([]uint32, nodes+1)
	for i, c := range counts {
		offsets[i+1] = offsets[i] + c
	}

	targets := make([]uint32, len(edges))
	cursors := make([]uint32, nodes)
	copy(cursors, offsets[:nodes])
	for _, e := range edges {
		targets[cursors[e.src]] = e.dst
		cursors[e.src]++
	}

	// Dedup never moves a value forward, so compaction can reuse the
	// targets array.
	var w uint32
	compacted := make([]uint32, nodes+1)
	for i := 0; i < nodes; i++ {
		slice := targets[offsets[i]:offsets[i+1]]
		slices.Sort(slice)

		for j, t := range slice {
			if j > 0 && t == slice[j-1] {
				continue
			}
			targets[w] = t
			w++
		}
		compacted[i+1] = w
	}

	return csr{offsets: compacted, targets: targets[:w:w]}
}

func (c csr) neighbors(id uint32) []uint32 {
	return c.targets[c.offsets[id]:c.offsets[id+1]]
}

func (c csr) edges() int {
	return len(c.targets)
}

// CategoryGraph is the immutable category hierarchy. An edge (p -> c)
// means c is a subcategory of p. Both directions are materialized: the
// children CSR serves descendant traversal, the parents CSR serves
// level-wise propagation and upward navigation.
//
// The source graph contains cycles; every traversal here is guarded by a
// visited set or by the depth ordering.
type CategoryGraph struct {
	children csr
	parents  csr

	depth       []uint8
	byDepthDesc []uint32
	maxDepth    uint8
	orphans     int
	clamped     int64
}

// newCategoryGraph builds both adjacencies and runs the depth analysis.
// edges hold (parent dense, child dense) pairs; unresolvable ones were
// already dropped by the loader.
func newCategoryGraph(categories int, edges []edge) *CategoryGraph {
	g := &CategoryGraph{
		children: buildCSR(categories, edges),
	}

	inverse := make([]edge, len(edges))
	for i, e := range edges {
		inverse[i] = edge{src: e.dst, dst: e.src}
	}
	g.parents = buildCSR(categories, inverse)

	g.analyzeDepth(categories)

	return g
}

// analyzeDepth assigns each category its BFS depth from the in-degree-0
// roots over a spanning DAG: the first arrival defines the depth, edges
// into already-visited nodes are ignored. Nodes unreachable from any root
// (pure cycle components) stay at depth 0 and are counted as orphans.
func (g *CategoryGraph) analyzeDepth(categories int) {
	g.depth = make([]uint8, categories)

	seen := visited.New(categories)
	queue := make([]uint32, 0, categories)

	for i := 0; i < categories; i++ {
		if len(g.parents.neighbors(uint32(i))) == 0 {
			seen.Visit(uint32(i))
			queue = append(queue, uint32(i))
		}
	}

	for head := 0; head < len(queue); head++ {
		node := queue[head]
		d := g.depth[node]
		if d > g.maxDepth {
			g.maxDepth = d
		}

		next := d + 1
		if next > MaxGraphDepth {
			next = MaxGraphDepth
		}

		for _, child := range g.children.neighbors(node) {
			if !seen.Visit(child) {
				continue
			}
			if d == MaxGraphDepth {
				g.clamped++
			}
			g.depth[child] = next
			queue = append(queue, child)
		}
	}

	g.orphans = categories - seen.Count()

	// Propagation iterates deepest-first; precompute that order once.
	g.byDepthDesc = make([]uint32, categories)
	for i := range g.byDepthDesc {
		g.byDepthDesc[i] = uint32(i)
	}
	slices.SortFunc(g.byDepthDesc, func(a, b uint32) int {
		if g.depth[a] != g.depth[b] {
			return cmp.Compare(g.depth[b], g.depth[a])
		}
		return cmp.Compare(a, b)
	})
}

// Children returns the direct subcategories of c, ascending by dense id.
func (g *CategoryGraph) Children(c uint32) []uint32 {
	return g.children.neighbors(c)
}

// Parents returns the direct parent categories of c, ascending by dense id.
func (g *CategoryGraph) Parents(c uint32) []uint32 {
	return g.parents.neighbors(c)
}

// Depth returns the spanning-DAG depth of c.
func (g *CategoryGraph) Depth(c uint32) uint8 {
	return g.depth[c]
}

// MaxDepth returns the largest depth assigned to any category.
func (g *CategoryGraph) MaxDepth() uint8 {
	return g.maxDepth
}

// Orphans returns the number of categories unreachable from any root.
func (g *CategoryGraph) Orphans() int {
	return g.orphans
}

// DepthClamped returns how many depth assignments hit the MaxGraphDepth cap.
func (g *CategoryGraph) DepthClamped() int64 {
	return g.clamped
}

// NumCategories returns the number of nodes in the graph.
func (g *CategoryGraph) NumCategories() int {
	return len(g.depth)
}

// NumEdges returns the number of deduplicated parent->child edges.
func (g *CategoryGraph) NumEdges() int {
	return g.children.edges()
}

// Descendants collects c and every subcategory reachable within maxDepth
// BFS layers. A negative maxDepth means unbounded. The result is ordered
// layer by layer, ascending dense id within a layer; the visited set makes
// the traversal cycle-safe.
func (g *CategoryGraph) Descendants(c uint32, maxDepth int) []uint32 {
	result := []uint32{c}

	if maxDepth == 0 {
		return result
	}

	seen := visited.New(len(g.depth))
	seen.Visit(c)

	frontier := []uint32{c}
	var next []uint32

	for layer := 0; maxDepth < 0 || layer < maxDepth; layer++ {
		next = next[:0]
		for _, node := range frontier {
			for _, child := range g.children.neighbors(node) {
				if seen.Visit(child) {
					next = append(next, child)
				}
			}
		}

		if len(next) == 0 {
			break
		}

		slices.Sort(next)
		result = append(result, next...)
		frontier, next = next, frontier
	}

	return result
}

// Propagate rolls category scores up the hierarchy in place: iterating
// categories deepest-first, each score is added to every parent exactly
// one level above. A single sweep carries leaf scores all the way to the
// roots; edges that skip levels do not transmit, so no score is counted
// twice. len(scores) must equal NumCategories.
func (g *CategoryGraph) Propagate(scores []uint64) {
	for _, c := range g.byDepthDesc {
		s := scores[c]
		if s == 0 {
			continue
		}

		d := g.depth[c]
		if d == 0 {
			continue
		}

		for _, p := range g.parents.neighbors(c) {
			if g.depth[p] == d-1 {
				scores[p] += s
			}
		}
	}
}
