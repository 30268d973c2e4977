package core

import "fmt"

// blockGraph is the admission/longest-chain/eviction engine shared by the
// base-chain and smart-chain block pools (spec.md §4.1). Both pools
// configure it with their own retention window and wrap it with
// type-specific ChainEvent construction; the graph itself only ever deals
// in identifiers and a caller-supplied payload of type T.
type blockGraph[T any] struct {
	retention uint64
	nodes     map[string]*graphNode[T]
	arrival   uint64

	tipKey string
	hasTip bool
}

type graphNode[T any] struct {
	id        BlockIdentifier
	parentKey string // "" when the parent is not (yet) known to the graph
	arrival   uint64
	block     T
}

func newBlockGraph[T any](retention uint64) *blockGraph[T] {
	return &blockGraph[T]{
		retention: retention,
		nodes:     make(map[string]*graphNode[T]),
	}
}

func graphKey(id BlockIdentifier) string {
	if b, err := id.Bytes(); err == nil {
		return fmt.Sprintf("%d:%x", id.Index, b)
	}
	return fmt.Sprintf("%d:%s", id.Index, id.Hash)
}

// graphAdmission is the outcome of admitting one block into the graph.
type graphAdmission[T any] struct {
	Known          bool // block id already present; caller should drop silently
	NewTip         bool // canonical tip changed
	IsReorg        bool // new tip is not a descendant of the previous tip
	ApplyPath      []T  // ancestor-exclusive..tip-inclusive, oldest first (apply or reorg-forward)
	RollbackPath   []T  // old-tip..LCA-exclusive, newest first (reorg only)
	Confirmed      []T  // canonical ancestors that fell outside the retention window this round
	HardCapEvicted bool // the oldest orphan subtree was dropped to respect the 10x hard cap
}

// admit inserts a block keyed by id/parent and re-evaluates the canonical
// tip following spec.md §4.1 steps 1-5: drop-if-known, insert and index,
// walk the longest chain (height first, then most recent arrival), compare
// against the previous tip, and evict anything that has fallen outside the
// retention window.
func (g *blockGraph[T]) admit(id, parent BlockIdentifier, block T) graphAdmission[T] {
	key := graphKey(id)
	if _, exists := g.nodes[key]; exists {
		return graphAdmission[T]{Known: true}
	}

	parentKey := graphKey(parent)
	if _, ok := g.nodes[parentKey]; !ok {
		parentKey = ""
	}

	g.arrival++
	g.nodes[key] = &graphNode[T]{id: id, parentKey: parentKey, arrival: g.arrival, block: block}

	var res graphAdmission[T]
	newTipKey := g.longestTipKey()
	switch {
	case !g.hasTip:
		g.hasTip = true
		g.tipKey = newTipKey
		res = graphAdmission[T]{NewTip: true, ApplyPath: g.collect(g.pathFrom("", newTipKey))}
	case newTipKey == g.tipKey:
		res = graphAdmission[T]{}
	default:
		if path, ok := g.pathBetween(g.tipKey, newTipKey); ok {
			g.tipKey = newTipKey
			res = graphAdmission[T]{NewTip: true, ApplyPath: g.collect(path)}
		} else {
			lca, _ := g.lowestCommonAncestor(g.tipKey, newTipKey)
			rollback, _ := g.pathBetween(lca, g.tipKey)
			apply, _ := g.pathBetween(lca, newTipKey)
			reversed := make([]string, len(rollback))
			for i, k := range rollback {
				reversed[len(rollback)-1-i] = k
			}
			g.tipKey = newTipKey
			res = graphAdmission[T]{
				NewTip:       true,
				IsReorg:      true,
				ApplyPath:    g.collect(apply),
				RollbackPath: g.collect(reversed),
			}
		}
	}
	res = g.finish(newTipKey, res)

	// retention == math.MaxUint64 marks an unbounded stream (microblocks,
	// discarded wholesale on anchor confirmation rather than by a hard cap).
	const unbounded = ^uint64(0)
	if g.retention != unbounded && g.retention <= unbounded/10 {
		if hardCap := 10 * g.retention; hardCap > 0 && uint64(g.size()) > hardCap {
			res.HardCapEvicted = g.evictOldestOrphanSubtree()
		}
	}
	return res
}

// evictOldestOrphanSubtree drops the earliest-arrived subtree that is not on
// the canonical path, enforcing the 10x-retention hard cap of spec.md §4.1's
// failure model.
func (g *blockGraph[T]) evictOldestOrphanSubtree() bool {
	canonical := make(map[string]bool)
	if g.hasTip {
		if path, ok := g.pathBetween("", g.tipKey); ok {
			for _, k := range path {
				canonical[k] = true
			}
		}
	}

	var rootKey string
	var rootArrival uint64
	found := false
	for k, n := range g.nodes {
		if canonical[k] {
			continue
		}
		parentIsBoundary := n.parentKey == "" || canonical[n.parentKey]
		if _, parentKnown := g.nodes[n.parentKey]; n.parentKey != "" && !parentKnown {
			parentIsBoundary = true
		}
		if !parentIsBoundary {
			continue
		}
		if !found || n.arrival < rootArrival {
			rootKey, rootArrival, found = k, n.arrival, true
		}
	}
	if !found {
		return false
	}
	g.deleteSubtree(rootKey, canonical)
	return true
}

func (g *blockGraph[T]) deleteSubtree(key string, protect map[string]bool) {
	if protect[key] {
		return
	}
	var children []string
	for k, n := range g.nodes {
		if n.parentKey == key {
			children = append(children, k)
		}
	}
	delete(g.nodes, key)
	for _, c := range children {
		g.deleteSubtree(c, protect)
	}
}

// longestTipKey returns the key of the highest block known to the graph. On
// a height tie, the most recently admitted candidate wins: the worked
// scenarios of spec.md §8 (B2/C2 overtaking C1; a2/b2 overtaking a1/b1) both
// resolve ties toward the newer arrival, which this follows even though the
// step-3 prose reads the other way (see DESIGN.md).
func (g *blockGraph[T]) longestTipKey() string {
	var best string
	var bestIdx uint64
	var bestArrival uint64
	first := true
	for k, n := range g.nodes {
		if first || n.id.Index > bestIdx || (n.id.Index == bestIdx && n.arrival > bestArrival) {
			best, bestIdx, bestArrival, first = k, n.id.Index, n.arrival, false
		}
	}
	return best
}

// pathFrom walks back from toKey until fromKey (or a missing parent when
// fromKey == ""), returning keys oldest-first.
func (g *blockGraph[T]) pathFrom(fromKey, toKey string) []string {
	path, _ := g.pathBetween(fromKey, toKey)
	return path
}

// pathBetween returns the keys strictly after fromKey up to and including
// toKey, oldest first. fromKey == "" means "walk to the graph's root".
// ok is false when toKey is not a descendant of fromKey within the graph.
func (g *blockGraph[T]) pathBetween(fromKey, toKey string) ([]string, bool) {
	var chain []string
	cur := toKey
	for cur != fromKey {
		n, ok := g.nodes[cur]
		if !ok {
			if fromKey == "" {
				break
			}
			return nil, false
		}
		chain = append(chain, cur)
		if n.parentKey == "" {
			if fromKey == "" {
				break
			}
			return nil, false
		}
		cur = n.parentKey
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, true
}

// lowestCommonAncestor finds the nearest shared ancestor of two keys by
// walking parent pointers, used only on the reorg path (spec.md §4.1 step 4).
func (g *blockGraph[T]) lowestCommonAncestor(aKey, bKey string) (string, bool) {
	ancestors := make(map[string]struct{})
	for cur := aKey; cur != ""; {
		ancestors[cur] = struct{}{}
		n, ok := g.nodes[cur]
		if !ok {
			break
		}
		cur = n.parentKey
	}
	for cur := bKey; cur != ""; {
		if _, ok := ancestors[cur]; ok {
			return cur, true
		}
		n, ok := g.nodes[cur]
		if !ok {
			break
		}
		cur = n.parentKey
	}
	return "", false
}

func (g *blockGraph[T]) collect(keys []string) []T {
	out := make([]T, 0, len(keys))
	for _, k := range keys {
		if n, ok := g.nodes[k]; ok {
			out = append(out, n.block)
		}
	}
	return out
}

// finish folds retention-window eviction into an admission result: ancestors
// of the new tip that fall outside the window are reported once as
// Confirmed, then every block (canonical or not) at or below the cutoff is
// evicted (spec.md §4.1 step 5; glossary "Confirmed block").
func (g *blockGraph[T]) finish(newTipKey string, res graphAdmission[T]) graphAdmission[T] {
	tip, ok := g.nodes[newTipKey]
	if !ok {
		return res
	}
	if tip.id.Index < g.retention {
		return res
	}
	// Anything at or below this cutoff has fallen outside the window.
	cutoff := tip.id.Index - g.retention + 1

	ancestors, _ := g.pathBetween("", newTipKey)
	var confirmedKeys []string
	for _, k := range ancestors {
		if n, ok := g.nodes[k]; ok && n.id.Index <= cutoff {
			confirmedKeys = append(confirmedKeys, k)
		}
	}
	res.Confirmed = g.collect(confirmedKeys)

	for k, n := range g.nodes {
		if n.id.Index <= cutoff {
			delete(g.nodes, k)
		}
	}
	return res
}

// size reports the number of blocks currently retained, for diagnostics.
func (g *blockGraph[T]) size() int { return len(g.nodes) }
