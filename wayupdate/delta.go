package wayupdate

// diffSkeletons and expandDelta are the encode/decode pair backing the
// Delta type (§3): "the receiver can reconstruct a Skeleton from (Delta,
// reference Skeleton)". The spec leaves the exact wire shape of "nodes
// added/removed" unspecified (tag/skeleton serialization is explicitly out
// of scope, §1) — we store an ordered edit script (value + position)
// rather than a bare value set, because OSM ways frequently repeat a node
// id (closed ways repeat the first/last node) and a position-free set
// diff cannot be replayed unambiguously in that case. See DESIGN.md.

// diffSkeletons computes reference -> target as a Delta. An empty
// reference produces a Full delta carrying the complete target.
func diffSkeletons(reference, target Skeleton) Delta {
	if reference.IsEmpty() {
		d := Delta{
			ID:         target.ID,
			Full:       true,
			NodesAdded: cloneNodeIds(target.Nodes),
		}
		if target.Geometry != nil {
			d.GeometryAdded = cloneCoords(target.Geometry)
		}
		return d
	}

	removedPos, addedPos := lcsComplement(reference.Nodes, target.Nodes)

	d := Delta{ID: target.ID}
	for _, p := range removedPos {
		d.NodesRemoved = append(d.NodesRemoved, reference.Nodes[p])
	}
	for _, p := range addedPos {
		d.NodesAdded = append(d.NodesAdded, target.Nodes[p])
	}
	if reference.Geometry != nil {
		for _, p := range removedPos {
			if p < len(reference.Geometry) {
				d.GeometryRemoved = append(d.GeometryRemoved, reference.Geometry[p])
			}
		}
	}
	if target.Geometry != nil {
		for _, p := range addedPos {
			if p < len(target.Geometry) {
				d.GeometryAdded = append(d.GeometryAdded, target.Geometry[p])
			}
		}
	}
	d.RemovedAt = removedPos
	d.AddedAt = addedPos
	return d
}

// ExpandDelta replays a Delta against its reference to recover the full
// Skeleton. Exported for store implementations that must reconstruct a
// historical skeleton by walking a chain of stored deltas (the operation
// named "expand" in §4.6).
func ExpandDelta(d Delta, reference Skeleton) Skeleton {
	return expandDelta(d, reference)
}

func expandDelta(d Delta, reference Skeleton) Skeleton {
	if d.Full {
		out := Skeleton{ID: d.ID, Nodes: cloneNodeIds(d.NodesAdded)}
		if d.GeometryAdded != nil {
			out.Geometry = cloneCoords(d.GeometryAdded)
		}
		return out
	}

	removedSet := make(map[int]struct{}, len(d.RemovedAt))
	for _, p := range d.RemovedAt {
		removedSet[p] = struct{}{}
	}

	kept := make([]NodeId, 0, len(reference.Nodes))
	var keptGeom []Coord
	if reference.Geometry != nil {
		keptGeom = make([]Coord, 0, len(reference.Geometry))
	}
	for i, n := range reference.Nodes {
		if _, rm := removedSet[i]; rm {
			continue
		}
		kept = append(kept, n)
		if reference.Geometry != nil && i < len(reference.Geometry) {
			keptGeom = append(keptGeom, reference.Geometry[i])
		}
	}

	total := len(kept) + len(d.NodesAdded)
	result := make([]NodeId, 0, total)
	var resultGeom []Coord
	haveGeom := keptGeom != nil || d.GeometryAdded != nil
	if haveGeom {
		resultGeom = make([]Coord, 0, total)
	}

	ai, ki := 0, 0
	for pos := 0; pos < total; pos++ {
		if ai < len(d.AddedAt) && d.AddedAt[ai] == pos {
			result = append(result, d.NodesAdded[ai])
			if haveGeom && ai < len(d.GeometryAdded) {
				resultGeom = append(resultGeom, d.GeometryAdded[ai])
			}
			ai++
		} else {
			result = append(result, kept[ki])
			if haveGeom && ki < len(keptGeom) {
				resultGeom = append(resultGeom, keptGeom[ki])
			}
			ki++
		}
	}

	out := Skeleton{ID: d.ID, Nodes: result}
	if haveGeom {
		out.Geometry = resultGeom
	}
	return out
}

// deltaEqual reports whether two deltas carry the same content — the
// byte-equal comparison §4.6 uses to decide whether a reconciled rewrite is
// actually necessary.
func deltaEqual(a, b Delta) bool {
	if a.ID != b.ID || a.Full != b.Full {
		return false
	}
	intsEqual := func(x, y []int) bool {
		if len(x) != len(y) {
			return false
		}
		for i := range x {
			if x[i] != y[i] {
				return false
			}
		}
		return true
	}
	return intsEqual(a.RemovedAt, b.RemovedAt) && intsEqual(a.AddedAt, b.AddedAt) &&
		nodeIdsEqual(a.NodesAdded, b.NodesAdded) &&
		nodeIdsEqual(a.NodesRemoved, b.NodesRemoved) &&
		coordsEqual(a.GeometryAdded, b.GeometryAdded) &&
		coordsEqual(a.GeometryRemoved, b.GeometryRemoved)
}

func nodeIdsEqual(a, b []NodeId) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func coordsEqual(a, b []Coord) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func cloneNodeIds(in []NodeId) []NodeId {
	if in == nil {
		return nil
	}
	out := make([]NodeId, len(in))
	copy(out, in)
	return out
}

func cloneCoords(in []Coord) []Coord {
	if in == nil {
		return nil
	}
	out := make([]Coord, len(in))
	copy(out, in)
	return out
}

// lcsComplement returns, for the longest common subsequence of a and b,
// the positions in a not part of the LCS (removed) and the positions in b
// not part of the LCS (added) — a standard O(len(a)*len(b)) patch diff,
// sized for way node lists (typically well under a thousand nodes).
func lcsComplement(a, b []NodeId) (removed, added []int) {
	n, m := len(a), len(b)
	dp := make([][]int, n+1)
	for i := range dp {
		dp[i] = make([]int, m+1)
	}
	for i := n - 1; i >= 0; i-- {
		for j := m - 1; j >= 0; j-- {
			if a[i] == b[j] {
				dp[i][j] = dp[i+1][j+1] + 1
			} else if dp[i+1][j] >= dp[i][j+1] {
				dp[i][j] = dp[i+1][j]
			} else {
				dp[i][j] = dp[i][j+1]
			}
		}
	}

	i, j := 0, 0
	for i < n && j < m {
		switch {
		case a[i] == b[j]:
			i++
			j++
		case dp[i+1][j] >= dp[i][j+1]:
			removed = append(removed, i)
			i++
		default:
			added = append(added, j)
			j++
		}
	}
	for ; i < n; i++ {
		removed = append(removed, i)
	}
	for ; j < m; j++ {
		added = append(added, j)
	}
	return removed, added
}
