// Package wayupdate implements the attic (historical-version) reconstruction
// algorithm for way updates: given a batch of new/modified/deleted way
// versions together with the nodes that moved in the same diff, it produces
// the delta-encoded historical snapshots, the corrected spatial index of
// each snapshot, and the revisions to previously written attic records
// needed to keep history consistent.
//
// Everything outside of that — block storage, on-disk index files, tag
// serialization, CLI, diff parsing, user tables, file rotation — is an
// external collaborator. This package only consumes the interfaces in
// store.go.
package wayupdate

// WayId is a 64-bit way identifier, globally unique.
type WayId uint64

// NodeId is a 64-bit node identifier.
type NodeId uint64

// Timestamp is seconds since epoch. NOW is a sentinel meaning "current, not
// yet superseded" and compares strictly greater than every real timestamp.
type Timestamp uint64

// NOW is the maximum representable Timestamp; every real timestamp compares
// strictly less than NOW.
const NOW Timestamp = ^Timestamp(0)

// Bucket is a spatial-index cell identifier. Three values are reserved.
type Bucket uint32

const (
	// BucketDeleted marks a way with no geometry.
	BucketDeleted Bucket = 0x00000000
	// BucketNoLive is a placeholder meaning "no live bucket"; it suppresses
	// undelete records when used as a prior/reference bucket.
	BucketNoLive Bucket = 0x000000fe
	// BucketUnknown means "unknown, must be recomputed from current node
	// positions" (see the idx==0xff handling in §4.5).
	BucketUnknown Bucket = 0x000000ff
)

// Coord is a point encoded as the bucket that contains it plus a
// within-bucket offset.
type Coord struct {
	Upper Bucket
	Lower uint32
}

// NodeSnapshot is a node's position at a point in time.
type NodeSnapshot struct {
	ID    NodeId
	Coord Coord
}

// Skeleton is a way's node list, plus an optional materialized coordinate
// list. Geometry is present iff the way is classified geometry-bearing by
// the bucket function (see SpatialHelpers.IndicatesGeometry in store.go).
type Skeleton struct {
	ID       WayId
	Nodes    []NodeId
	Geometry []Coord // nil unless geometry-bearing
}

// IsEmpty reports whether the skeleton carries no nodes — the zero-value
// skeleton used to mean "no reference" / "deleted" throughout C5/C6.
func (s Skeleton) IsEmpty() bool {
	return len(s.Nodes) == 0
}

// nodesEqual mirrors the original's geometrically_equal: despite the name,
// upstream compares node-id lists, not materialized coordinates. We keep
// that behavior (see DESIGN.md).
func nodesEqual(a, b Skeleton) bool {
	if len(a.Nodes) != len(b.Nodes) {
		return false
	}
	for i := range a.Nodes {
		if a.Nodes[i] != b.Nodes[i] {
			return false
		}
	}
	return true
}

// Delta encodes a Skeleton as adds/removes relative to a reference
// Skeleton. Full is set when the reference is empty, i.e. the delta
// actually carries the complete skeleton rather than a diff.
type Delta struct {
	ID              WayId
	Full            bool
	NodesAdded      []NodeId
	NodesRemoved    []NodeId
	GeometryAdded   []Coord
	GeometryRemoved []Coord

	// RemovedAt/AddedAt are the LCS-derived positions (into the reference's
	// and target's node lists respectively) that make NodesAdded/NodesRemoved
	// replayable without positional ambiguity when a way repeats a node id
	// (closed ways repeat their first/last node). Not part of the conceptual
	// Delta shape described by the fields above; exported so a store can
	// persist them alongside the value lists, since ExpandDelta needs them to
	// reconstruct a non-full delta standalone.
	RemovedAt []int
	AddedAt   []int
}

// AtticEntry stamps a value with the moment it ceased to be current.
type AtticEntry[T any] struct {
	Value     T
	Timestamp Timestamp
}

// MetaRecord carries authorship/version metadata for one way version.
type MetaRecord struct {
	ID        WayId
	Version   int
	Timestamp Timestamp
	Changeset int64
	UserID    int32
}

// WayVersion is one explicit batch entry: a way as it was edited, the
// bucket it was classified into (or BucketUnknown if not yet computed, or
// BucketDeleted for an explicit delete), and its metadata.
type WayVersion struct {
	Skeleton Skeleton
	Bucket   Bucket
	Meta     MetaRecord
}

// nodeTimeline is the time-sorted list of (bucket, snapshot) pairs the node
// resolver returns for a single node id (§4.2, §3 I5).
type nodeTimeline []timedPosition

type timedPosition struct {
	Bucket    Bucket
	Position  Coord
	Timestamp Timestamp
}
