package wayupdate

// computeBucketAndGeometry implements §4.1: for each node in the skeleton,
// consult the resolver for the snapshot effective at asof (the youngest
// snapshot strictly before asof); missing nodes degrade silently (a
// diagnostic is emitted, the node's coordinate is omitted) rather than
// aborting. The collected bucket list is handed to the opaque CalcBucket
// helper, and geometry is materialized or cleared depending on
// IndicatesGeometry.
//
// computeBucketAndGeometry is pure with respect to resolver: it never
// mutates it, and calling it twice with the same arguments yields the same
// result (P7).
func computeBucketAndGeometry(sk Skeleton, asof Timestamp, resolver *NodeResolver, sh SpatialHelpers) (Bucket, Skeleton) {
	geometry := make([]Coord, 0, len(sk.Nodes))

	for _, nid := range sk.Nodes {
		snap, ok := resolver.SnapshotAt(nid, asof)
		if !ok {
			diagMissingNode(nid, sk.ID)
			continue
		}
		geometry = append(geometry, snap.Position)
	}

	nodeBuckets := make([]Bucket, len(geometry))
	for i, c := range geometry {
		nodeBuckets[i] = c.Upper
	}
	bucket := sh.CalcBucket(nodeBuckets)

	out := sk
	if sh.IndicatesGeometry(bucket) {
		out.Geometry = geometry
	} else {
		out.Geometry = nil
	}
	return bucket, out
}

// computeBucketAndGeometryCurrent is the "current positions only" sibling
// of computeBucketAndGeometry: it bypasses the time-windowed snapshot query
// entirely and reads resolver.idxByID directly, the way the original's
// new_implicit_skeletons and compute_geometry operate on new_node_idx_by_id
// without an expiration timestamp. Used only for implicitly moved ways,
// which by definition were never touched by an explicit edit and so have no
// "own timestamp" to anchor a historical query against.
func computeBucketAndGeometryCurrent(sk Skeleton, resolver *NodeResolver, sh SpatialHelpers) (Bucket, Skeleton) {
	geometry := make([]Coord, 0, len(sk.Nodes))

	for _, nid := range sk.Nodes {
		coord, ok := resolver.Current(nid)
		if !ok {
			diagMissingNode(nid, sk.ID)
			continue
		}
		geometry = append(geometry, coord)
	}

	nodeBuckets := make([]Bucket, len(geometry))
	for i, c := range geometry {
		nodeBuckets[i] = c.Upper
	}
	bucket := sh.CalcBucket(nodeBuckets)

	out := sk
	if sh.IndicatesGeometry(bucket) {
		out.Geometry = geometry
	} else {
		out.Geometry = nil
	}
	return bucket, out
}
