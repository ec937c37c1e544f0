package wayupdate

import "testing"

func resolverWithNodes(nodes map[NodeId]Coord) *NodeResolver {
	snaps := make([]NodeSnapshot, 0, len(nodes))
	for id, c := range nodes {
		snaps = append(snaps, NodeSnapshot{ID: id, Coord: c})
	}
	r, err := BuildNodeResolver(NodeResolverInputs{NewNodes: snaps})
	if err != nil {
		panic(err)
	}
	return r
}

func TestComputeBucketAndGeometryMaterializesGeometry(t *testing.T) {
	r := resolverWithNodes(map[NodeId]Coord{
		1: {Upper: 1, Lower: 0},
		2: {Upper: 1, Lower: 1},
	})
	sk := Skeleton{ID: 100, Nodes: []NodeId{1, 2}}

	bucket, out := computeBucketAndGeometry(sk, NOW, r, fakeSpatial{})
	if bucket != Bucket(1) {
		t.Fatalf("bucket = %d, want 1", bucket)
	}
	if len(out.Geometry) != 2 {
		t.Fatalf("expected materialized geometry, got %v", out.Geometry)
	}
}

func TestComputeBucketAndGeometryClearsGeometryWhenCoarse(t *testing.T) {
	r := resolverWithNodes(map[NodeId]Coord{
		1: {Upper: 5, Lower: 0},
		2: {Upper: 9, Lower: 1},
	})
	sk := Skeleton{ID: 101, Nodes: []NodeId{1, 2}}

	bucket, out := computeBucketAndGeometry(sk, NOW, r, fakeSpatial{})
	if bucket != Bucket(5) {
		t.Fatalf("bucket = %d, want 5", bucket)
	}
	if out.Geometry != nil {
		t.Fatalf("expected nil geometry for a non-leaf bucket, got %v", out.Geometry)
	}
}

func TestComputeBucketAndGeometryMissingNodeDegradesSilently(t *testing.T) {
	r := resolverWithNodes(map[NodeId]Coord{1: {Upper: 1, Lower: 0}})
	sk := Skeleton{ID: 102, Nodes: []NodeId{1, 999}}

	bucket, out := computeBucketAndGeometry(sk, NOW, r, fakeSpatial{})
	if bucket != Bucket(1) {
		t.Fatalf("bucket = %d, want 1 (computed from the one resolvable node)", bucket)
	}
	if len(out.Geometry) != 1 {
		t.Fatalf("expected geometry for only the resolvable node, got %v", out.Geometry)
	}
}

func TestComputeBucketAndGeometryDeletedWhenEmpty(t *testing.T) {
	r := resolverWithNodes(nil)
	sk := Skeleton{ID: 103}

	bucket, _ := computeBucketAndGeometry(sk, NOW, r, fakeSpatial{})
	if bucket != BucketDeleted {
		t.Fatalf("bucket = %d, want BucketDeleted", bucket)
	}
}

func TestSnapshotAtReturnsYoungestStrictlyBefore(t *testing.T) {
	r, err := BuildNodeResolver(NodeResolverInputs{
		NewAtticNodeSnapshots: map[NodeId][]AtticEntry[Coord]{
			1: {
				{Value: Coord{Upper: 1, Lower: 1}, Timestamp: 100},
				{Value: Coord{Upper: 2, Lower: 2}, Timestamp: 200},
			},
		},
		NewNodes: []NodeSnapshot{{ID: 1, Coord: Coord{Upper: 3, Lower: 3}}},
	})
	if err != nil {
		t.Fatal(err)
	}

	snap, ok := r.SnapshotAt(1, 150)
	if !ok || snap.Timestamp != 100 {
		t.Fatalf("SnapshotAt(1, 150) = %+v, %v, want the ts=100 snapshot", snap, ok)
	}

	snap, ok = r.SnapshotAt(1, 100)
	if ok {
		t.Fatalf("SnapshotAt(1, 100) should find nothing strictly before ts=100, got %+v", snap)
	}

	// NOW is special-cased: it can never satisfy "strictly less than NOW"
	// (not even against itself), so a query at NOW returns the timeline's
	// last entry outright — here the current (NOW-tagged) position.
	snap, ok = r.SnapshotAt(1, NOW)
	if !ok || snap.Timestamp != NOW {
		t.Fatalf("SnapshotAt(1, NOW) = %+v, %v, want the current (NOW-tagged) snapshot", snap, ok)
	}
}
