package main

import (
	"encoding/json"

	osm "github.com/omniscale/go-osm"

	"github.com/omniscale/osmdelta/wayupdate"
)

// batchFile is one diff's contribution on disk: every osm.Way touched,
// explicitly, plus the nodes that moved without their own way edit. Using
// go-osm's element types here is the same choice imposm3 makes throughout
// its reader/writer packages — a way update engine built for OSM data
// should describe its input in OSM's own vocabulary rather than invent a
// parallel wire shape.
type batchFile struct {
	Ways          []osm.Way           `json:"ways"`
	MovedNodes    []osm.Node          `json:"moved_nodes"`
	DiffTimestamp wayupdate.Timestamp `json:"diff_timestamp"`
}

func loadBatch(raw []byte, maxZoom int) (wayupdate.BatchInput, error) {
	var bf batchFile
	if err := json.Unmarshal(raw, &bf); err != nil {
		return wayupdate.BatchInput{}, err
	}

	in := wayupdate.BatchInput{
		DiffTimestamp:         bf.DiffTimestamp,
		MovedNodePositions:    make(map[wayupdate.NodeId]wayupdate.Coord, len(bf.MovedNodes)),
		NewAtticNodeSnapshots: make(map[wayupdate.NodeId][]wayupdate.AtticEntry[wayupdate.Coord]),
	}

	// A node's current position is recorded in the resolver's timeline at the
	// NOW sentinel, which SnapshotAt can never return for a finite asof (NOW
	// compares strictly greater than every real timestamp). Any node whose
	// bucket must be resolved as of this diff's own commit time therefore
	// also needs a real-timestamp attic entry; the diff's own timestamp is
	// the node's best-known move time when the source data carries no finer
	// per-node history.
	addMoved := func(id wayupdate.NodeId, c wayupdate.Coord) {
		in.MovedNodePositions[id] = c
		in.NewAtticNodeSnapshots[id] = append(in.NewAtticNodeSnapshots[id], wayupdate.AtticEntry[wayupdate.Coord]{
			Value:     c,
			Timestamp: bf.DiffTimestamp,
		})
	}

	for _, n := range bf.MovedNodes {
		addMoved(wayupdate.NodeId(n.ID), coordFromLatLong(n.Lat, n.Long, maxZoom))
	}

	for _, w := range bf.Ways {
		bucket := wayupdate.BucketUnknown
		deleted := w.Metadata == nil || len(w.Refs) == 0
		if deleted {
			bucket = wayupdate.BucketDeleted
		}

		refs := make([]wayupdate.NodeId, len(w.Refs))
		for i, r := range w.Refs {
			refs[i] = wayupdate.NodeId(r)
		}

		var meta wayupdate.MetaRecord
		meta.ID = wayupdate.WayId(w.ID)
		if w.Metadata != nil {
			meta.Version = int(w.Metadata.Version)
			meta.Timestamp = wayupdate.Timestamp(w.Metadata.Timestamp.Unix())
			meta.Changeset = w.Metadata.Changeset
			meta.UserID = w.Metadata.UserID
		}

		in.ExplicitVersions = append(in.ExplicitVersions, wayupdate.WayVersion{
			Skeleton: wayupdate.Skeleton{ID: wayupdate.WayId(w.ID), Nodes: refs},
			Bucket:   bucket,
			Meta:     meta,
		})

		for _, n := range w.Nodes {
			addMoved(wayupdate.NodeId(n.ID), coordFromLatLong(n.Lat, n.Long, maxZoom))
		}
	}

	return in, nil
}

// coordFromLatLong packs a lat/long pair into the engine's Coord shape:
// Upper is the leaf quadtile bucket at maxZoom (the same tile id
// spatial.Helper.CalcBucket computes from), Lower is the node's position
// within that tile, as two 16-bit fractions. This is the one place a plain
// lat/long pair becomes a Coord — everywhere else in the engine treats
// Coord as opaque.
func coordFromLatLong(lat, long float64, maxZoom int) wayupdate.Coord {
	if maxZoom <= 0 {
		maxZoom = 16
	}
	dim := float64(uint64(2) << uint(maxZoom-1))

	lonFrac := (long + 180.0) / 360.0
	latFrac := (lat + 90.0) / 180.0

	globalX := lonFrac * dim
	globalY := latFrac * dim
	tileX := uint64(globalX)
	tileY := uint64(globalY)
	fracX := globalX - float64(tileX)
	fracY := globalY - float64(tileY)

	bucketID := uint32((2*uint64(dim)*tileY+tileX)*32 + uint64(maxZoom))
	lower := (uint32(fracX*65535) << 16) | uint32(fracY*65535)
	return wayupdate.Coord{Upper: wayupdate.Bucket(bucketID), Lower: lower}
}
