package wayupdate

import "sort"

// NodeResolver is the merged view of node positions C2 builds once per
// batch and is read-only thereafter (§4.2, §9 "deep state passed through
// many helpers"). It answers "where was node N just before time T" without
// ever mutating itself, so C1/C5/C6 can share one instance safely within
// the single-threaded batch (§5).
type NodeResolver struct {
	idxByID      map[NodeId]Coord
	versionsByID map[NodeId]nodeTimeline
}

// Current returns the current (as-of-NOW) position of a node, if known.
func (r *NodeResolver) Current(id NodeId) (Coord, bool) {
	c, ok := r.idxByID[id]
	return c, ok
}

// Timeline returns the time-sorted (bucket, position, timestamp) entries
// known for a node within the batch's window. Callers must treat the
// returned slice as read-only.
func (r *NodeResolver) Timeline(id NodeId) nodeTimeline {
	return r.versionsByID[id]
}

// SnapshotAt returns the youngest snapshot with timestamp strictly less
// than asof — the "node position effective at time asof" definition used
// throughout §4.1/§4.5. asof == NOW is a special case: the NOW-tagged
// current entry can never satisfy "< NOW" (NOW compares strictly greater
// than every real timestamp, including itself), yet a query for the
// position effective at NOW is exactly a request for the current value, so
// it returns the timeline's last entry outright rather than always missing.
func (r *NodeResolver) SnapshotAt(id NodeId, asof Timestamp) (timedPosition, bool) {
	tl := r.versionsByID[id]
	if len(tl) == 0 {
		return timedPosition{}, false
	}
	if asof == NOW {
		return tl[len(tl)-1], true
	}
	// tl is sorted ascending by Timestamp; find the last entry < asof.
	idx := sort.Search(len(tl), func(i int) bool { return tl[i].Timestamp >= asof }) - 1
	if idx < 0 {
		return timedPosition{}, false
	}
	return tl[idx], true
}

// NodeResolverInputs groups the construction-order sources of §4.2 so the
// driver doesn't have to thread them through positional parameters.
type NodeResolverInputs struct {
	// NewNodes are the new node snapshots provided by the caller (step 1).
	NewNodes []NodeSnapshot
	// NewAtticNodeSnapshots are the attic node history entries the node
	// updater produced for the same diff (moved nodes), used to build the
	// full timeline.
	NewAtticNodeSnapshots map[NodeId][]AtticEntry[Coord]
	// CurrentWaySkeletons are already-loaded current-store ways whose
	// materialized geometry can reveal node positions (step 2).
	CurrentWaySkeletons []Skeleton
	// ImplicitMovers are the ways found by C3 (step 3).
	ImplicitMovers []Skeleton
	// Referenced is every NodeId referenced by any way in the batch; the
	// subset still missing after steps 1-3 is looked up on disk (step 4).
	Referenced map[NodeId]struct{}
	NodeStore  NodeStore
}

// BuildNodeResolver implements §4.2: merge new node snapshots, implicit
// coords carried by already-loaded way geometries, coords carried by the
// implicit-mover set, and a disk fallback for anything still missing, into
// idx_by_id; then derive versions_by_id from the attic node snapshots plus
// idx_by_id (the current value, timestamped NOW).
func BuildNodeResolver(in NodeResolverInputs) (*NodeResolver, error) {
	idxByID := make(map[NodeId]Coord, len(in.NewNodes))

	// Step 1: seed from the caller's new node snapshots.
	for _, n := range in.NewNodes {
		if _, ok := idxByID[n.ID]; !ok {
			idxByID[n.ID] = n.Coord
		}
	}

	// Step 2: merge in nodes implicitly known via already-loaded current
	// way geometries.
	mergeImplicitSkeletonCoords(idxByID, in.CurrentWaySkeletons)

	// Step 3: merge in nodes implicitly known via the implicit-mover set.
	mergeImplicitSkeletonCoords(idxByID, in.ImplicitMovers)

	// Step 4: whatever's still missing among referenced nodes, fetch from
	// the external node store.
	if in.NodeStore != nil {
		var missing []NodeId
		for id := range in.Referenced {
			if _, ok := idxByID[id]; !ok {
				missing = append(missing, id)
			}
		}
		if len(missing) > 0 {
			fetched, err := in.NodeStore.ReadNodes(missing)
			if err != nil {
				return nil, err
			}
			for id, snap := range fetched {
				if _, ok := idxByID[id]; !ok {
					idxByID[id] = snap.Coord
				}
			}
		}
	}

	versionsByID := make(map[NodeId]nodeTimeline, len(in.NewAtticNodeSnapshots)+len(idxByID))
	for id, entries := range in.NewAtticNodeSnapshots {
		tl := versionsByID[id]
		for _, e := range entries {
			tl = append(tl, timedPosition{
				Bucket:    e.Value.Upper,
				Position:  e.Value,
				Timestamp: e.Timestamp,
			})
		}
		versionsByID[id] = tl
	}
	for id, coord := range idxByID {
		tl := versionsByID[id]
		tl = append(tl, timedPosition{Bucket: coord.Upper, Position: coord, Timestamp: NOW})
		versionsByID[id] = tl
	}
	for id, tl := range versionsByID {
		sort.Slice(tl, func(i, j int) bool { return tl[i].Timestamp < tl[j].Timestamp })
		versionsByID[id] = tl
	}

	return &NodeResolver{idxByID: idxByID, versionsByID: versionsByID}, nil
}

func mergeImplicitSkeletonCoords(idxByID map[NodeId]Coord, skeletons []Skeleton) {
	for _, sk := range skeletons {
		if sk.Geometry == nil {
			continue
		}
		for i, nid := range sk.Nodes {
			if i >= len(sk.Geometry) {
				break
			}
			if _, ok := idxByID[nid]; !ok {
				idxByID[nid] = sk.Geometry[i]
			}
		}
	}
}
