package spatial

import (
	"testing"

	"github.com/omniscale/osmdelta/wayupdate"
)

func TestCalcBucketEmptyMeansDeleted(t *testing.T) {
	h := NewHelper(4)
	if got := h.CalcBucket(nil); got != wayupdate.BucketDeleted {
		t.Fatalf("CalcBucket(nil) = %d, want BucketDeleted", got)
	}
}

func TestCalcBucketSingleNodeIsItsOwnBucket(t *testing.T) {
	h := NewHelper(4)
	leaf := tile{x: 5, y: 3, z: 4}
	b := wayupdate.Bucket(leaf.id())
	if got := h.CalcBucket([]wayupdate.Bucket{b}); got != b {
		t.Fatalf("CalcBucket([b]) = %d, want %d", got, b)
	}
}

func TestCalcBucketFindsCommonAncestorOfSiblings(t *testing.T) {
	h := NewHelper(4)
	a := wayupdate.Bucket(tile{x: 0, y: 0, z: 4}.id())
	b := wayupdate.Bucket(tile{x: 1, y: 1, z: 4}.id())

	got := h.CalcBucket([]wayupdate.Bucket{a, b})
	want := wayupdate.Bucket(tile{x: 0, y: 0, z: 3}.id())
	if got != want {
		t.Fatalf("CalcBucket(siblings) = %d, want %d (their shared parent)", got, want)
	}
}

func TestCalcBucketWalksUpToCommonZoomBeforeMatching(t *testing.T) {
	h := NewHelper(6)
	// A node leaf at z=6 and a coarser already-merged bucket at z=3 that is
	// in fact its ancestor: CalcBucket must zoom the leaf down to z=3 and
	// find they already coincide, rather than over-climbing past it.
	leaf := tile{x: 8, y: 8, z: 6}
	ancestor := leaf
	for ancestor.z > 3 {
		ancestor = ancestor.parent()
	}

	got := h.CalcBucket([]wayupdate.Bucket{wayupdate.Bucket(leaf.id()), wayupdate.Bucket(ancestor.id())})
	if got != wayupdate.Bucket(ancestor.id()) {
		t.Fatalf("CalcBucket(leaf, its own ancestor) = %d, want %d", got, ancestor.id())
	}
}

func TestIndicatesGeometryOnlyForLeafTiles(t *testing.T) {
	h := NewHelper(4)
	leaf := wayupdate.Bucket(tile{x: 1, y: 1, z: 4}.id())
	coarse := wayupdate.Bucket(tile{x: 0, y: 0, z: 2}.id())

	if !h.IndicatesGeometry(leaf) {
		t.Fatal("expected a maxZoom-level bucket to indicate geometry")
	}
	if h.IndicatesGeometry(coarse) {
		t.Fatal("expected a coarser bucket to not indicate geometry")
	}
}

func TestIndicatesGeometryRejectsSentinels(t *testing.T) {
	h := NewHelper(4)
	for _, b := range []wayupdate.Bucket{wayupdate.BucketDeleted, wayupdate.BucketNoLive, wayupdate.BucketUnknown} {
		if h.IndicatesGeometry(b) {
			t.Fatalf("IndicatesGeometry(%d) = true, want false for a sentinel bucket", b)
		}
	}
}

func TestCalcParentsIncludesEveryAncestorToRoot(t *testing.T) {
	h := NewHelper(3)
	leaf := tile{x: 1, y: 1, z: 3}
	b := wayupdate.Bucket(leaf.id())

	out := h.CalcParents(map[wayupdate.Bucket]struct{}{b: {}})

	want := leaf
	for {
		if _, ok := out[wayupdate.Bucket(want.id())]; !ok {
			t.Fatalf("CalcParents missing ancestor %+v (id %d)", want, want.id())
		}
		if want.z == 0 {
			break
		}
		want = want.parent()
	}
	// z=0's root tile {0,0,0} has id 0, the same as BucketDeleted — CalcParents
	// still includes it since it walks to t.z == 0 unconditionally.
	if _, ok := out[wayupdate.Bucket(0)]; !ok {
		t.Fatal("expected the z=0 root tile included among the ancestors")
	}
}

func TestCalcParentsOfDisjointBucketsDoesNotMergeThem(t *testing.T) {
	h := NewHelper(3)
	a := wayupdate.Bucket(tile{x: 0, y: 0, z: 3}.id())
	b := wayupdate.Bucket(tile{x: 7, y: 7, z: 3}.id())

	out := h.CalcParents(map[wayupdate.Bucket]struct{}{a: {}, b: {}})
	if _, ok := out[a]; !ok {
		t.Fatal("expected leaf a present among its own ancestors")
	}
	if _, ok := out[b]; !ok {
		t.Fatal("expected leaf b present among its own ancestors")
	}
}
