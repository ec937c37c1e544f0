package spatial

import "github.com/omniscale/osmdelta/wayupdate"

// Helper is the default wayupdate.SpatialHelpers implementation: a way's
// bucket is the smallest quadtile tile (at or above maxZoom) that covers
// every node bucket referenced by the way, found by walking each node
// tile's parent chain until they coincide — the same "zoom out until it
// fits" idea as expire.TileHash.CalculateParents, run pairwise instead of
// unconditionally to every root.
type Helper struct {
	maxZoom int
}

// NewHelper builds a Helper whose node-level buckets are quadtile ids at
// maxZoom. maxZoom <= 0 falls back to 16, deep enough to keep most ways'
// nodes within a single leaf tile.
func NewHelper(maxZoom int) Helper {
	if maxZoom <= 0 {
		maxZoom = 16
	}
	return Helper{maxZoom: maxZoom}
}

// CalcBucket implements §4.1's CalcBucket: the empty list means the way has
// no geometry left (deleted); otherwise find the common ancestor tile of
// every node bucket.
func (h Helper) CalcBucket(nodeBuckets []wayupdate.Bucket) wayupdate.Bucket {
	if len(nodeBuckets) == 0 {
		return wayupdate.BucketDeleted
	}

	common := fromID(uint32(nodeBuckets[0]))
	for _, b := range nodeBuckets[1:] {
		t := fromID(uint32(b))
		for common.x != t.x || common.y != t.y || common.z != t.z {
			if common.z > t.z {
				common = common.parent()
			} else if t.z > common.z {
				t = t.parent()
			} else {
				common = common.parent()
				t = t.parent()
			}
		}
	}
	return wayupdate.Bucket(common.id())
}

// IndicatesGeometry reports whether a bucket is a leaf tile (at maxZoom) —
// the only case in which the way's nodes all shared one tile and its
// coordinate list is worth materializing alongside the index. A coarser
// (parent) bucket means the way spans multiple leaf tiles; callers fall
// back to the node list alone.
func (h Helper) IndicatesGeometry(b wayupdate.Bucket) bool {
	switch b {
	case wayupdate.BucketDeleted, wayupdate.BucketNoLive, wayupdate.BucketUnknown:
		return false
	}
	return fromID(uint32(b)).z == h.maxZoom
}

// CalcParents implements §4.3's calc_parents: every ancestor tile (all the
// way to the root) of each bucket in the set, used to find which
// already-stored current ways might be affected by a moved node.
func (h Helper) CalcParents(buckets map[wayupdate.Bucket]struct{}) map[wayupdate.Bucket]struct{} {
	out := make(map[wayupdate.Bucket]struct{}, len(buckets))
	for b := range buckets {
		t := fromID(uint32(b))
		out[b] = struct{}{}
		for t.z > 0 {
			t = t.parent()
			out[wayupdate.Bucket(t.id())] = struct{}{}
		}
	}
	return out
}
