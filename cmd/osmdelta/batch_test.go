package main

import (
	"encoding/json"
	"testing"
	"time"

	osm "github.com/omniscale/go-osm"

	"github.com/omniscale/osmdelta/wayupdate"
)

func TestLoadBatchParsesExplicitWayEdit(t *testing.T) {
	bf := batchFile{
		DiffTimestamp: 100,
		Ways: []osm.Way{
			{
				Element: osm.Element{
					ID: 1,
					Metadata: &osm.Metadata{
						Version:   2,
						Timestamp: time.Unix(100, 0).UTC(),
						Changeset: 7,
						UserID:    3,
					},
				},
				Refs: []int64{10, 20},
				Nodes: []osm.Node{
					{Element: osm.Element{ID: 10}, Lat: 1, Long: 1},
					{Element: osm.Element{ID: 20}, Lat: 2, Long: 2},
				},
			},
		},
	}
	raw, err := json.Marshal(bf)
	if err != nil {
		t.Fatal(err)
	}

	in, err := loadBatch(raw, 16)
	if err != nil {
		t.Fatal(err)
	}

	if in.DiffTimestamp != 100 {
		t.Fatalf("DiffTimestamp = %d, want 100", in.DiffTimestamp)
	}
	if len(in.ExplicitVersions) != 1 {
		t.Fatalf("expected one explicit version, got %d", len(in.ExplicitVersions))
	}
	v := in.ExplicitVersions[0]
	if v.Skeleton.ID != 1 || len(v.Skeleton.Nodes) != 2 {
		t.Fatalf("skeleton = %+v, want way 1 with 2 nodes", v.Skeleton)
	}
	if v.Bucket != wayupdate.BucketUnknown {
		t.Fatalf("Bucket = %d, want BucketUnknown for a live edit", v.Bucket)
	}
	if v.Meta.Version != 2 || v.Meta.Changeset != 7 || v.Meta.UserID != 3 {
		t.Fatalf("Meta = %+v, want version 2, changeset 7, user 3", v.Meta)
	}

	// Every way node must be registered both as a moved-node position and as
	// a real-timestamped attic snapshot (see the comment in loadBatch).
	for _, id := range []wayupdate.NodeId{10, 20} {
		if _, ok := in.MovedNodePositions[id]; !ok {
			t.Fatalf("expected node %d in MovedNodePositions", id)
		}
		snaps := in.NewAtticNodeSnapshots[id]
		if len(snaps) != 1 || snaps[0].Timestamp != 100 {
			t.Fatalf("node %d snapshots = %+v, want one entry timestamped 100", id, snaps)
		}
	}
}

func TestLoadBatchMarksDeletedWayByMissingMetadataOrRefs(t *testing.T) {
	bf := batchFile{
		DiffTimestamp: 5,
		Ways: []osm.Way{
			{Element: osm.Element{ID: 1}},
		},
	}
	raw, _ := json.Marshal(bf)

	in, err := loadBatch(raw, 16)
	if err != nil {
		t.Fatal(err)
	}
	if in.ExplicitVersions[0].Bucket != wayupdate.BucketDeleted {
		t.Fatalf("Bucket = %d, want BucketDeleted for a way with no metadata/refs", in.ExplicitVersions[0].Bucket)
	}
}

func TestLoadBatchRegistersMovedNodesWithoutTheirOwnWayEdit(t *testing.T) {
	bf := batchFile{
		DiffTimestamp: 50,
		MovedNodes: []osm.Node{
			{Element: osm.Element{ID: 99}, Lat: 10, Long: 20},
		},
	}
	raw, _ := json.Marshal(bf)

	in, err := loadBatch(raw, 16)
	if err != nil {
		t.Fatal(err)
	}
	if len(in.ExplicitVersions) != 0 {
		t.Fatalf("expected no explicit way versions, got %d", len(in.ExplicitVersions))
	}
	if _, ok := in.MovedNodePositions[99]; !ok {
		t.Fatal("expected the implicit mover registered in MovedNodePositions")
	}
	if snaps := in.NewAtticNodeSnapshots[99]; len(snaps) != 1 || snaps[0].Timestamp != 50 {
		t.Fatalf("snapshots[99] = %+v, want one entry timestamped 50", snaps)
	}
}

func TestLoadBatchRejectsInvalidJSON(t *testing.T) {
	if _, err := loadBatch([]byte("{not json"), 16); err == nil {
		t.Fatal("expected an error for malformed JSON")
	}
}

func TestCoordFromLatLongIsStableAndWithinTile(t *testing.T) {
	c1 := coordFromLatLong(52.5, 13.4, 16)
	c2 := coordFromLatLong(52.5, 13.4, 16)
	if c1 != c2 {
		t.Fatalf("coordFromLatLong is not deterministic: %+v != %+v", c1, c2)
	}

	// The fractional part (Lower) must fit in 16 bits per axis.
	hi := c1.Lower >> 16
	lo := c1.Lower & 0xffff
	if hi > 0xffff || lo > 0xffff {
		t.Fatalf("Lower = %#x, want both 16-bit halves in range", c1.Lower)
	}
}

func TestCoordFromLatLongDefaultsMaxZoomWhenNonPositive(t *testing.T) {
	a := coordFromLatLong(10, 10, 0)
	b := coordFromLatLong(10, 10, 16)
	if a != b {
		t.Fatalf("coordFromLatLong(maxZoom=0) = %+v, want it to fall back to maxZoom=16 like %+v", a, b)
	}
}

func TestCoordFromLatLongDistinguishesDifferentPositions(t *testing.T) {
	a := coordFromLatLong(10, 10, 8)
	b := coordFromLatLong(-10, -10, 8)
	if a == b {
		t.Fatal("expected distinct coordinates for distinct lat/long pairs")
	}
}
