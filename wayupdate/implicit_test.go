package wayupdate

import "testing"

func TestDetectImplicitMoversFindsUntouchedWay(t *testing.T) {
	loaded := map[Bucket][]Skeleton{
		10: {
			{ID: 1, Nodes: []NodeId{1, 2, 3}},
			{ID: 2, Nodes: []NodeId{4, 5}},
		},
	}
	moved := map[NodeId]struct{}{2: {}}
	explicit := map[WayId]struct{}{}

	out := DetectImplicitMovers(moved, explicit, loaded)
	if len(out[10]) != 1 || out[10][0].ID != 1 {
		t.Fatalf("expected only way 1 flagged as an implicit mover, got %+v", out)
	}
}

func TestDetectImplicitMoversSkipsExplicitIDs(t *testing.T) {
	loaded := map[Bucket][]Skeleton{
		10: {{ID: 1, Nodes: []NodeId{1, 2, 3}}},
	}
	moved := map[NodeId]struct{}{2: {}}
	explicit := map[WayId]struct{}{1: {}}

	out := DetectImplicitMovers(moved, explicit, loaded)
	if len(out) != 0 {
		t.Fatalf("a way already in the explicit batch should never be treated as an implicit mover, got %+v", out)
	}
}

func TestParentBucketsOf(t *testing.T) {
	positions := map[NodeId]Coord{1: {Upper: 5}, 2: {Upper: 7}}
	parents := ParentBucketsOf(positions, fakeSpatial{})
	for _, want := range []Bucket{5, 4, 7, 6} {
		if _, ok := parents[want]; !ok {
			t.Fatalf("expected parent set to contain %d, got %v", want, parents)
		}
	}
}
