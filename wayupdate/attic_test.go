package wayupdate

import "testing"

// buildResolver is a thin wrapper so attic tests can hand-place attic
// entries at exact timestamps without going through the CLI-style helpers
// in bucket_test.go/currentdiff_test.go.
func buildResolver(t *testing.T, attic map[NodeId][]AtticEntry[Coord], current map[NodeId]Coord) *NodeResolver {
	t.Helper()
	newNodes := make([]NodeSnapshot, 0, len(current))
	for id, c := range current {
		newNodes = append(newNodes, NodeSnapshot{ID: id, Coord: c})
	}
	r, err := BuildNodeResolver(NodeResolverInputs{NewNodes: newNodes, NewAtticNodeSnapshots: attic})
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestBuildAtticHistorySingleMoveEmitsUndelete(t *testing.T) {
	r := buildResolver(t,
		map[NodeId][]AtticEntry[Coord]{1: {{Value: Coord{Upper: 2}, Timestamp: 10}}},
		map[NodeId]Coord{1: {Upper: 1}},
	)
	sk := Skeleton{ID: 7, Nodes: []NodeId{1}}

	out := BuildAtticHistory(AtticBuildInput{
		Skeleton:    sk,
		FromTs:      0,
		ToTs:        100,
		Reference:   Skeleton{},
		PriorBucket: BucketUnknown,
		Resolver:    r,
		Spatial:     fakeSpatial{},
	})

	// The node's only real-timestamped entry (t=10, bucket 2) has nothing
	// before it, so the walk's single relevant timestamp degrades to
	// BucketDeleted — exercising the silent-degradation path together with
	// the undelete breadcrumb left in the bucket it vacated.
	if len(out.Deltas) != 1 || len(out.Deltas[BucketDeleted]) != 1 {
		t.Fatalf("expected exactly one delta in BucketDeleted, got %+v", out.Deltas)
	}
	if out.Deltas[BucketDeleted][0].Timestamp != 10 {
		t.Fatalf("expected the delta timestamped at the move, got %+v", out.Deltas[BucketDeleted][0])
	}
	undeletes := out.Undeletes[Bucket(2)]
	if len(undeletes) != 1 || undeletes[0].Value != 7 || undeletes[0].Timestamp != 10 {
		t.Fatalf("expected an undelete breadcrumb into bucket 2, got %+v", out.Undeletes)
	}
	if out.OldestBucket != BucketDeleted {
		t.Fatalf("expected OldestBucket = BucketDeleted, got %d", out.OldestBucket)
	}
	if out.OldestMatchesPrior {
		t.Fatal("PriorBucket was Unknown, should not match the discovered oldest bucket")
	}
}

func TestBuildAtticHistoryOldestMatchesPrior(t *testing.T) {
	r := buildResolver(t,
		map[NodeId][]AtticEntry[Coord]{1: {{Value: Coord{Upper: 2}, Timestamp: 10}}},
		map[NodeId]Coord{1: {Upper: 1}},
	)
	sk := Skeleton{ID: 7, Nodes: []NodeId{1}}

	out := BuildAtticHistory(AtticBuildInput{
		Skeleton:    sk,
		FromTs:      0,
		ToTs:        100,
		Reference:   Skeleton{},
		PriorBucket: BucketDeleted,
		Resolver:    r,
		Spatial:     fakeSpatial{},
	})

	if !out.OldestMatchesPrior {
		t.Fatalf("expected OldestMatchesPrior when PriorBucket already equals the discovered oldest bucket, got %+v", out)
	}
}

func TestBuildAtticHistoryAddLastVersionForcesBoundaryDelta(t *testing.T) {
	r := buildResolver(t, nil, map[NodeId]Coord{2: {Upper: 1}})
	sk := Skeleton{ID: 8, Nodes: []NodeId{2}}

	out := BuildAtticHistory(AtticBuildInput{
		Skeleton:       sk,
		FromTs:         5,
		ToTs:           50,
		Reference:      Skeleton{},
		PriorBucket:    BucketUnknown,
		AddLastVersion: true,
		Resolver:       r,
		Spatial:        fakeSpatial{},
	})

	// No node-move timestamps fall in (5,50], so only step 3's forced
	// boundary delta fires: against an empty reference (no newer version
	// exists yet) the delta must be Full.
	entries := out.Deltas[BucketDeleted]
	if len(entries) != 1 {
		t.Fatalf("expected exactly one boundary delta, got %+v", out.Deltas)
	}
	if entries[0].Timestamp != 50 {
		t.Fatalf("expected the boundary delta timestamped at ToTs, got %+v", entries[0])
	}
	if !entries[0].Value.Full {
		t.Fatal("expected a Full delta against an empty reference")
	}
	if len(out.Undeletes) != 0 {
		t.Fatalf("same bucket on both sides of the boundary should not emit an undelete, got %+v", out.Undeletes)
	}
}

func TestCollectRelevantTimestampsDropsTrailingNow(t *testing.T) {
	r := buildResolver(t,
		map[NodeId][]AtticEntry[Coord]{1: {{Value: Coord{Upper: 2}, Timestamp: 10}, {Value: Coord{Upper: 3}, Timestamp: 20}}},
		map[NodeId]Coord{1: {Upper: 1}},
	)
	sk := Skeleton{ID: 9, Nodes: []NodeId{1}}

	got := collectRelevantTimestamps(sk, 0, NOW, r)
	want := []Timestamp{10, 20}
	if len(got) != len(want) {
		t.Fatalf("collectRelevantTimestamps = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("collectRelevantTimestamps = %v, want %v", got, want)
		}
	}
}

func TestCollectRelevantTimestampsRespectsWindow(t *testing.T) {
	r := buildResolver(t,
		map[NodeId][]AtticEntry[Coord]{1: {{Value: Coord{Upper: 2}, Timestamp: 5}, {Value: Coord{Upper: 3}, Timestamp: 15}}},
		nil,
	)
	sk := Skeleton{ID: 10, Nodes: []NodeId{1}}

	got := collectRelevantTimestamps(sk, 5, 15, r)
	if len(got) != 1 || got[0] != 15 {
		t.Fatalf("collectRelevantTimestamps(5,15] = %v, want [15] (from_ts excluded, to_ts included)", got)
	}
}
