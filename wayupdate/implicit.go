package wayupdate

// DetectImplicitMovers implements §4.3: from the set of moved nodes, find
// ways not explicitly edited whose geometry therefore shifted.
//
// movedNodeIDs is the set of node ids that moved in the same diff.
// explicitIDs is the set of way ids already present in the batch
// (these are left to C4/C5 to handle explicitly). loadedByBucket is every
// current-store way already loaded for the parent buckets; the driver
// reads exactly ParentBucketsOf(moved node positions) worth of current
// ways and passes them in here (the spec's "scan the
// current-store ways in those parents" is a caller-side read, not
// something this function performs itself — it stays purely additive and
// never touches storage).
//
// Output ways retain their *old* bucket (the key they're found under);
// C4/C5 decide the new bucket.
func DetectImplicitMovers(
	movedNodeIDs map[NodeId]struct{},
	explicitIDs map[WayId]struct{},
	loadedByBucket map[Bucket][]Skeleton,
) map[Bucket][]Skeleton {
	result := make(map[Bucket][]Skeleton)

	for bucket, ways := range loadedByBucket {
		for _, sk := range ways {
			if _, already := explicitIDs[sk.ID]; already {
				continue
			}
			moved := false
			for _, nid := range sk.Nodes {
				if _, ok := movedNodeIDs[nid]; ok {
					moved = true
					break
				}
			}
			if moved {
				result[bucket] = append(result[bucket], sk)
			}
		}
	}

	return result
}

// ParentBucketsOf is a thin helper mirroring the original's call to
// calc_parents(node_req) where node_req is the set of buckets that contain
// a moved node (§4.3 "compute the set of spatial parents of the node
// buckets").
func ParentBucketsOf(movedNodePositions map[NodeId]Coord, sh SpatialHelpers) map[Bucket]struct{} {
	nodeBuckets := make(map[Bucket]struct{}, len(movedNodePositions))
	for _, c := range movedNodePositions {
		nodeBuckets[c.Upper] = struct{}{}
	}
	return sh.CalcParents(nodeBuckets)
}
