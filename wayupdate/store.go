package wayupdate

// This file names the external collaborators the engine consumes (§6). The
// engine never implements storage, indexing, or serialization itself —
// those live in package cache (a default badger/levigo-backed
// implementation) or in any other package that satisfies these interfaces.

// CurrentStore holds the latest version of each way, indexed by bucket.
type CurrentStore interface {
	ReadCurrent(buckets map[Bucket]struct{}) (map[Bucket][]Skeleton, error)
	UpdateCurrent(toDelete, toInsert map[Bucket][]Skeleton) error
}

// IdIndex is the current store's id->bucket directory (BatchInput.Ids).
type IdIndex interface {
	ReadIndex(ids []WayId) (map[WayId]Bucket, error)
	UpdateIndex(updates map[WayId]Bucket) error
}

// AtticStore holds the full version history as deltas, plus the auxiliary
// indexes required by I3/I4: a per-id bucket list and an undelete index.
type AtticStore interface {
	ReadAttic(buckets map[Bucket]struct{}) (map[Bucket][]AtticEntry[Delta], error)
	UpdateAttic(toDelete, toInsert map[Bucket][]AtticEntry[Delta]) error

	ReadBucketList(ids []WayId) (map[WayId]map[Bucket]struct{}, error)
	UpdateBucketList(id WayId, buckets map[Bucket]struct{}) error

	// YoungestAtticTimestamp returns the timestamp of the youngest attic
	// Delta already on disk for id, and whether one exists at all. It is
	// used by the driver to seed prior_attic_ts for the pre-batch-to-first
	// explicit-version interval (§4.5 driver schedule, third call).
	YoungestAtticTimestamp(id WayId) (Timestamp, bool, error)

	// ExistingAtticDelta returns the attic Delta at exactly (id, t) plus
	// the bucket it is stored under, if one was written by an earlier
	// batch — the input to the reconciler (§4.6).
	ExistingAtticDelta(id WayId, t Timestamp) (bucket Bucket, delta Delta, reference Skeleton, ok bool)

	UpdateUndelete(toInsert map[Bucket][]AtticEntry[WayId]) error

	UpdateChangelog(entries map[Timestamp][]WayId) error
}

// MetaStore and the two tag stores are analogous read/update pairs, typed
// by meta/tag records (§6). The way updater never interprets their
// contents; RunBatch writes current meta through UpdateMeta alongside the
// skeleton stores and calls neither UpdateAtticMeta nor the tag stores.
type MetaStore interface {
	ReadMeta(ids []WayId) (map[WayId]MetaRecord, error)
	UpdateMeta(toDelete, toInsert map[Bucket][]MetaRecord) error
	UpdateAtticMeta(toInsert map[Bucket][]AtticEntry[MetaRecord]) error
}

type TagRecord struct {
	Bucket Bucket
	Key    string
	Value  string
	Ways   map[WayId]struct{}
}

type LocalTagStore interface {
	ReadLocalTags(ids []WayId) ([]TagRecord, error)
	UpdateLocalTags(toDelete, toInsert []TagRecord) error
	UpdateAtticLocalTags(toInsert []AtticEntry[TagRecord]) error
}

type GlobalTagStore interface {
	UpdateGlobalTags(toDelete, toInsert map[[2]string][]WayId) error
}

// NodeStore is the fallback disk lookup for nodes not found in-memory
// during node resolution (§4.2 step 4).
type NodeStore interface {
	ReadNodes(ids []NodeId) (map[NodeId]NodeSnapshot, error)
}

// SpatialHelpers are the deterministic, side-effect-free geometry-packing
// decisions the engine treats as opaque (§4.1, §6). A reference
// implementation grounded on a quadtile hierarchy lives in package spatial.
type SpatialHelpers interface {
	CalcBucket(nodeBuckets []Bucket) Bucket
	IndicatesGeometry(b Bucket) bool
	CalcParents(buckets map[Bucket]struct{}) map[Bucket]struct{}
}

// ProgressCallback receives the lifecycle hooks the driver invokes in the
// fixed order of §4.8/§5: compute, then the attic sub-phase of compute,
// then the store write phase (current/ids/meta/tags/undelete/changelog),
// then the attic write phase, then the partial-merge phase.
type ProgressCallback interface {
	ComputeStarted()
	ComputeFinished()
	UpdateStarted()
	PrepareDeleteTagsFinished()
	UpdateIdsFinished()
	UpdateCoordsFinished()
	MetaFinished()
	TagsLocalFinished()
	TagsGlobalFinished()
	UndeletedFinished()
	ChangelogFinished()
	UpdateFinished()
	PartialStarted()
	PartialFinished()
	ComputeAtticStarted()
	ComputeAtticFinished()
	AtticUpdateStarted()
}

// NopCallback implements ProgressCallback with no-ops, for callers that
// don't care about lifecycle pings.
type NopCallback struct{}

func (NopCallback) ComputeStarted()             {}
func (NopCallback) ComputeFinished()             {}
func (NopCallback) UpdateStarted()               {}
func (NopCallback) PrepareDeleteTagsFinished()    {}
func (NopCallback) UpdateIdsFinished()            {}
func (NopCallback) UpdateCoordsFinished()         {}
func (NopCallback) MetaFinished()                {}
func (NopCallback) TagsLocalFinished()            {}
func (NopCallback) TagsGlobalFinished()           {}
func (NopCallback) UndeletedFinished()            {}
func (NopCallback) ChangelogFinished()            {}
func (NopCallback) UpdateFinished()               {}
func (NopCallback) PartialStarted()               {}
func (NopCallback) PartialFinished()              {}
func (NopCallback) ComputeAtticStarted()          {}
func (NopCallback) ComputeAtticFinished()         {}
func (NopCallback) AtticUpdateStarted()           {}
