package wayupdate

import (
	"sort"

	"github.com/pkg/errors"
)

// BatchInput is everything one diff contributes to a way-update run (§4.8):
// the explicit way versions touched by the diff (possibly several per id,
// unsorted), the nodes that moved in the same diff together with their new
// positions, and the store/helper collaborators (§6).
type BatchInput struct {
	// ExplicitVersions holds every way version touched by this diff. A way
	// edited twice in one diff appears as two entries; they do not need to
	// arrive pre-sorted, RunBatch groups and orders them itself.
	ExplicitVersions []WayVersion

	MovedNodePositions    map[NodeId]Coord
	NewAtticNodeSnapshots map[NodeId][]AtticEntry[Coord]

	// DiffTimestamp is the overall commit time of this diff; it stamps the
	// changelog entry for ways that only moved implicitly, since they have
	// no edit timestamp of their own.
	DiffTimestamp Timestamp

	Current CurrentStore
	Ids     IdIndex
	Attic   AtticStore
	Meta    MetaStore
	Nodes   NodeStore
	Spatial SpatialHelpers

	Callback ProgressCallback

	// Partial enables the §4.8 staged-merge accounting: when true, this
	// diff's changed ids are also assigned to fan-out buckets and the run
	// counts as one partial commit in PartialState, which tracks accumulated
	// counts across calls. The attic writes go to the Attic store the same
	// way whether or not Partial is set. When false (the default),
	// every id is sunk directly and PartialState/the PartialMerge result are
	// left untouched — callers running a one-shot batch with no staged
	// storage tier don't need to care about any of this.
	Partial      bool
	PartialState *PartialMergeState
}

// BatchResult is the complete set of store mutations one RunBatch computed.
// RunBatch has already written them through the store interfaces in
// BatchInput by the time it returns (meta only when BatchInput.Meta is set);
// the result reports what was written.
type BatchResult struct {
	CurrentToDelete, CurrentToInsert map[Bucket][]Skeleton
	IndexUpdates                     map[WayId]Bucket
	Moved                            []MovedWay

	AtticToInsert     map[Bucket][]AtticEntry[Delta]
	AtticRewrites     map[Bucket][]AtticEntry[Delta]
	BucketListUpdates map[WayId]map[Bucket]struct{}
	Undeletes         map[Bucket][]AtticEntry[WayId]
	Changelog         map[Timestamp][]WayId

	MetaToDelete, MetaToInsert map[Bucket][]MetaRecord

	// PartialMerge is only populated when BatchInput.Partial is set; it
	// reports the fan-out assignment this batch contributed and whether the
	// accumulated stage must now cascade upward (§4.8).
	PartialMerge *PartialMergeResult
}

// RunBatch implements C8 (§4.8): it is the single entry point that wires
// C1-C7 together for one diff and drives the store collaborators of §6 in
// the fixed order the lifecycle callbacks advertise.
func RunBatch(in BatchInput) (BatchResult, error) {
	cb := in.Callback
	if cb == nil {
		cb = NopCallback{}
	}

	cb.ComputeStarted()

	grouped := groupByID(in.ExplicitVersions)
	explicitIDs := make(map[WayId]struct{}, len(grouped))
	ids := make([]WayId, 0, len(grouped))
	for id, versions := range grouped {
		explicitIDs[id] = struct{}{}
		ids = append(ids, id)
		sort.Slice(versions, func(i, j int) bool {
			return versions[i].Meta.Timestamp < versions[j].Meta.Timestamp
		})
		grouped[id] = versions
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	existingBucket, err := in.Ids.ReadIndex(ids)
	if err != nil {
		return BatchResult{}, errors.Wrap(err, "reading id index for batch")
	}

	bucketsNeeded := make(map[Bucket]struct{}, len(existingBucket))
	for _, b := range existingBucket {
		bucketsNeeded[b] = struct{}{}
	}
	loadedCurrent, err := in.Current.ReadCurrent(bucketsNeeded)
	if err != nil {
		return BatchResult{}, errors.Wrap(err, "reading current skeletons for batch")
	}
	existingSkeleton := make(map[WayId]Skeleton, len(existingBucket))
	var existingSkeletonList []Skeleton
	for _, skels := range loadedCurrent {
		for _, sk := range skels {
			if _, ours := existingBucket[sk.ID]; ours {
				existingSkeleton[sk.ID] = sk
				existingSkeletonList = append(existingSkeletonList, sk)
			}
		}
	}

	movedNodeIDs := make(map[NodeId]struct{}, len(in.MovedNodePositions))
	for nid := range in.MovedNodePositions {
		movedNodeIDs[nid] = struct{}{}
	}
	parentBuckets := ParentBucketsOf(in.MovedNodePositions, in.Spatial)
	loadedForImplicit, err := in.Current.ReadCurrent(parentBuckets)
	if err != nil {
		return BatchResult{}, errors.Wrap(err, "reading parent buckets for implicit movers")
	}
	implicitMovers := DetectImplicitMovers(movedNodeIDs, explicitIDs, loadedForImplicit)

	var implicitList []Skeleton
	for _, skels := range implicitMovers {
		implicitList = append(implicitList, skels...)
	}

	referenced := make(map[NodeId]struct{})
	for _, wv := range in.ExplicitVersions {
		for _, nid := range wv.Skeleton.Nodes {
			referenced[nid] = struct{}{}
		}
	}
	for _, sk := range implicitList {
		for _, nid := range sk.Nodes {
			referenced[nid] = struct{}{}
		}
	}

	newNodes := make([]NodeSnapshot, 0, len(in.MovedNodePositions))
	for nid, c := range in.MovedNodePositions {
		newNodes = append(newNodes, NodeSnapshot{ID: nid, Coord: c})
	}

	resolver, err := BuildNodeResolver(NodeResolverInputs{
		NewNodes:              newNodes,
		NewAtticNodeSnapshots: in.NewAtticNodeSnapshots,
		CurrentWaySkeletons:   existingSkeletonList,
		ImplicitMovers:        implicitList,
		Referenced:            referenced,
		NodeStore:             in.Nodes,
	})
	if err != nil {
		return BatchResult{}, errors.Wrap(err, "building node resolver")
	}

	latest := CollapseLatestVersions(flattenGrouped(grouped, ids))
	diffResult := DiffCurrent(CurrentDiffInput{
		Latest:           latest,
		ExistingBucket:   existingBucket,
		ExistingSkeleton: existingSkeleton,
		ImplicitMovers:   implicitMovers,
		Resolver:         resolver,
		Spatial:          in.Spatial,
	})

	cb.ComputeAtticStarted()

	result := BatchResult{
		CurrentToDelete:   diffResult.ToRemove,
		CurrentToInsert:   diffResult.ToInsert,
		Moved:             diffResult.Moved,
		IndexUpdates:      make(map[WayId]Bucket),
		AtticToInsert:     make(map[Bucket][]AtticEntry[Delta]),
		AtticRewrites:     make(map[Bucket][]AtticEntry[Delta]),
		BucketListUpdates: make(map[WayId]map[Bucket]struct{}),
		Undeletes:         make(map[Bucket][]AtticEntry[WayId]),
	}

	var currentChangedIDs []WayId
	currentTimestamps := make(map[WayId]Timestamp)

	for _, id := range ids {
		versions := grouped[id]
		buckets := make(map[Bucket]struct{})
		seenAtticTs := make(map[Timestamp]struct{})

		// Adjacent explicit pairs: (v[i].Timestamp, v[i+1].Timestamp].
		for i := 0; i+1 < len(versions); i++ {
			out := BuildAtticHistory(AtticBuildInput{
				Skeleton:  versions[i].Skeleton,
				FromTs:    versions[i].Meta.Timestamp,
				ToTs:      versions[i+1].Meta.Timestamp,
				Reference: versions[i+1].Skeleton,
				// Forced whenever the next version deletes the way or its
				// node list differs, matching way_updater.cc:321 — without
				// this, a way edited twice in one batch with no node move
				// landing exactly on the second edit's timestamp would never
				// get an attic entry for its intermediate version.
				AddLastVersion: versions[i+1].Bucket == BucketDeleted || !nodesEqual(versions[i].Skeleton, versions[i+1].Skeleton),
				// PriorBucket must be BucketUnknown, not the zero value,
				// for the same reason as the tail call below: now that
				// AddLastVersion can fire here with zero relevant node
				// moves, a stale BucketDeleted default would misfile the
				// boundary delta step 3 emits.
				PriorBucket: BucketUnknown,
				Resolver:    resolver,
				Spatial:     in.Spatial,
			})
			checkAtticCollisions(id, out, seenAtticTs)
			mergeAtticOutput(&result, out, buckets)
		}

		last := versions[len(versions)-1]
		currentChangedIDs = append(currentChangedIDs, id)
		currentTimestamps[id] = last.Meta.Timestamp

		var tailOut AtticBuildOutput
		if last.Bucket != BucketDeleted {
			// Tail: (last explicit version, NOW) — the way's state may
			// still be revised further by node moves before the batch ends.
			// PriorBucket must be BucketUnknown, not the zero value: the
			// zero Bucket is BucketDeleted, and with no node moves inside
			// the window (the common case) step 2 would otherwise skip
			// recomputation and file the boundary delta under
			// BucketDeleted instead of the way's true current bucket.
			//
			// AddLastVersion is literally false here (way_updater.cc:330-332):
			// the window runs to NOW, so a boundary delta is only ever due
			// when a node move coincides exactly with NOW — which never
			// happens, since collectRelevantTimestamps drops the NOW
			// sentinel. Forcing it true would stamp a bogus non-historical
			// attic Delta at the NOW sentinel for every edited way.
			tailOut = BuildAtticHistory(AtticBuildInput{
				Skeleton:       last.Skeleton,
				FromTs:         last.Meta.Timestamp,
				ToTs:           NOW,
				Reference:      Skeleton{},
				PriorBucket:    BucketUnknown,
				AddLastVersion: false,
				Resolver:       resolver,
				Spatial:        in.Spatial,
			})
			checkAtticCollisions(id, tailOut, seenAtticTs)
			mergeAtticOutput(&result, tailOut, buckets)
		}

		// Pre-batch window: the skeleton that held from whatever existed
		// before this batch up to the oldest explicit version now known,
		// reconciling against whatever attic entry used to be the youngest
		// on disk.
		oldest := versions[0]
		preBatch, hadOld := existingSkeleton[id]
		youngestTs, hasExisting, err := in.Attic.YoungestAtticTimestamp(id)
		if err != nil {
			return BatchResult{}, errors.Wrapf(err, "reading youngest attic timestamp for %d", id)
		}
		if hadOld {
			fromTs := youngestTs
			if !hasExisting {
				fromTs = Timestamp(0)
			}
			priorOut := BuildAtticHistory(AtticBuildInput{
				Skeleton:  preBatch,
				FromTs:    fromTs,
				ToTs:      oldest.Meta.Timestamp,
				Reference: oldest.Skeleton,
				// Forced whenever the oldest new version deletes the way or
				// its node list differs from the pre-batch skeleton
				// (way_updater.cc:386-391) — otherwise a node-list-changing
				// first edit with no node move landing exactly on its own
				// timestamp would leave the pre-batch state unrecorded.
				AddLastVersion: oldest.Bucket == BucketDeleted || !nodesEqual(preBatch, oldest.Skeleton),
				PriorBucket:    BucketUnknown,
				Resolver:       resolver,
				Spatial:        in.Spatial,
			})
			checkAtticCollisions(id, priorOut, seenAtticTs)
			mergeAtticOutput(&result, priorOut, buckets)

			if hasExisting {
				exBucket, exDelta, exRef, ok := in.Attic.ExistingAtticDelta(id, youngestTs)
				if ok {
					changed, rewritten := ReconcileExistingAttic(
						id, exBucket, exDelta, exRef, youngestTs,
						priorOut.OldestSkeleton, priorOut.OldestBucket,
					)
					if changed {
						result.AtticRewrites[exBucket] = append(result.AtticRewrites[exBucket], rewritten)
					}
				}
			}
		}

		if len(buckets) > 0 {
			result.BucketListUpdates[id] = buckets
		}
	}

	// Purely implicit movers: a single window from the way's existing
	// attic timestamp (or 0 if it has none yet) to NOW — they have no edit
	// timestamp of their own, so there is no adjacent-pair or tail call to
	// anchor against (way_updater.cc:408-414). add_last_version is
	// literally false here for the same reason as the tail call above.
	for oldBucket, skels := range implicitMovers {
		for _, sk := range skels {
			youngestTs, hasExisting, err := in.Attic.YoungestAtticTimestamp(sk.ID)
			if err != nil {
				return BatchResult{}, errors.Wrapf(err, "reading youngest attic timestamp for %d", sk.ID)
			}
			fromTs := youngestTs
			if !hasExisting {
				fromTs = Timestamp(0)
			}
			out := BuildAtticHistory(AtticBuildInput{
				Skeleton:       sk,
				FromTs:         fromTs,
				ToTs:           NOW,
				Reference:      Skeleton{},
				PriorBucket:    oldBucket,
				AddLastVersion: false,
				Resolver:       resolver,
				Spatial:        in.Spatial,
			})
			buckets := make(map[Bucket]struct{})
			mergeAtticOutput(&result, out, buckets)
			if len(buckets) > 0 {
				if existing, ok := result.BucketListUpdates[sk.ID]; ok {
					for b := range buckets {
						existing[b] = struct{}{}
					}
				} else {
					result.BucketListUpdates[sk.ID] = buckets
				}
			}
			currentChangedIDs = append(currentChangedIDs, sk.ID)
			currentTimestamps[sk.ID] = in.DiffTimestamp
		}
	}

	// The id index must track each id's newly computed bucket, not the raw
	// WayVersion.Bucket field the batch arrived with (almost always
	// BucketUnknown for a normal edit) — diffResult.ToInsert already keys
	// every live way (explicit or implicit) by its new bucket.
	for b, skels := range diffResult.ToInsert {
		for _, sk := range skels {
			result.IndexUpdates[sk.ID] = b
		}
	}
	for _, wv := range latest {
		if wv.Bucket == BucketDeleted {
			result.IndexUpdates[wv.Skeleton.ID] = BucketDeleted
		}
	}

	// Meta diff (§4.8 step 5/6): the current MetaRecord of every live id
	// moves with it; an explicit delete drops its meta from whichever
	// bucket it used to be filed under.
	result.MetaToInsert = make(map[Bucket][]MetaRecord)
	result.MetaToDelete = make(map[Bucket][]MetaRecord)
	for _, wv := range latest {
		if wv.Bucket == BucketDeleted {
			if oldBucket, ok := existingBucket[wv.Skeleton.ID]; ok {
				result.MetaToDelete[oldBucket] = append(result.MetaToDelete[oldBucket], wv.Meta)
			}
			continue
		}
		if b, ok := result.IndexUpdates[wv.Skeleton.ID]; ok {
			result.MetaToInsert[b] = append(result.MetaToInsert[b], wv.Meta)
		}
	}

	cb.ComputeAtticFinished()

	result.Changelog = BuildChangelog(ChangelogInput{
		AtticDeltas:       result.AtticToInsert,
		CurrentChangedIDs: currentChangedIDs,
		CurrentTimestamps: currentTimestamps,
	})

	cb.ComputeFinished()

	cb.UpdateStarted()
	if err := in.Current.UpdateCurrent(result.CurrentToDelete, result.CurrentToInsert); err != nil {
		return BatchResult{}, errors.Wrap(err, "writing current store")
	}
	cb.PrepareDeleteTagsFinished()
	if err := in.Ids.UpdateIndex(result.IndexUpdates); err != nil {
		return BatchResult{}, errors.Wrap(err, "writing id index")
	}
	cb.UpdateIdsFinished()
	cb.UpdateCoordsFinished()
	if in.Meta != nil {
		if err := in.Meta.UpdateMeta(result.MetaToDelete, result.MetaToInsert); err != nil {
			return BatchResult{}, errors.Wrap(err, "writing meta store")
		}
	}
	cb.MetaFinished()
	cb.TagsLocalFinished()
	cb.TagsGlobalFinished()
	if err := in.Attic.UpdateUndelete(result.Undeletes); err != nil {
		return BatchResult{}, errors.Wrap(err, "writing undelete index")
	}
	cb.UndeletedFinished()
	if err := in.Attic.UpdateChangelog(result.Changelog); err != nil {
		return BatchResult{}, errors.Wrap(err, "writing changelog")
	}
	cb.ChangelogFinished()
	cb.UpdateFinished()

	cb.AtticUpdateStarted()
	merged := make(map[Bucket][]AtticEntry[Delta], len(result.AtticToInsert)+len(result.AtticRewrites))
	for b, entries := range result.AtticToInsert {
		merged[b] = append(merged[b], entries...)
	}
	for b, entries := range result.AtticRewrites {
		merged[b] = append(merged[b], entries...)
	}
	if err := in.Attic.UpdateAttic(nil, merged); err != nil {
		return BatchResult{}, errors.Wrap(err, "writing attic store")
	}
	for id, buckets := range result.BucketListUpdates {
		if err := in.Attic.UpdateBucketList(id, buckets); err != nil {
			return BatchResult{}, errors.Wrapf(err, "writing bucket list for %d", id)
		}
	}

	cb.PartialStarted()
	if in.Partial {
		state := in.PartialState
		if state == nil {
			state = &PartialMergeState{}
			in.PartialState = state
		}
		fanout := make(map[WayId]int, len(currentChangedIDs))
		for _, id := range currentChangedIDs {
			fanout[id] = FanoutBucket(id)
		}
		stage0, stage1 := state.Stage0Threshold, state.Stage1Threshold
		if stage0 == 0 {
			stage0 = stage0Threshold
		}
		if stage1 == 0 {
			stage1 = stage1Threshold
		}
		nextStage, shouldMerge := PlanPartialMergeWithThresholds(
			state.Stage, state.Count, 1, stage0, stage1,
		)
		result.PartialMerge = &PartialMergeResult{
			FanoutBuckets: fanout,
			Stage:         state.Stage,
			NextStage:     nextStage,
			ShouldMerge:   shouldMerge,
		}
		if shouldMerge {
			state.Stage = nextStage
			state.Count = 0
		} else {
			state.Count++
		}
	}
	cb.PartialFinished()

	return result, nil
}

// checkAtticCollisions implements the diagnostic half of I2 ("at most one
// attic Delta per (id, t)"): a single id's own windows are scheduled never
// to overlap (§4.8), so any repeated timestamp across them within one
// batch is this diff's data describing two different states for the same
// id at the same instant. It's logged and left for C6-style reconciliation
// on the next batch rather than treated as fatal.
func checkAtticCollisions(id WayId, out AtticBuildOutput, seen map[Timestamp]struct{}) {
	for _, entries := range out.Deltas {
		for _, e := range entries {
			if _, ok := seen[e.Timestamp]; ok {
				diagAtticCollision(id, e.Timestamp)
				continue
			}
			seen[e.Timestamp] = struct{}{}
		}
	}
}

func mergeAtticOutput(result *BatchResult, out AtticBuildOutput, buckets map[Bucket]struct{}) {
	for b, entries := range out.Deltas {
		result.AtticToInsert[b] = append(result.AtticToInsert[b], entries...)
	}
	for b, entries := range out.Undeletes {
		result.Undeletes[b] = append(result.Undeletes[b], entries...)
	}
	for b := range out.Buckets {
		buckets[b] = struct{}{}
	}
}

func groupByID(versions []WayVersion) map[WayId][]WayVersion {
	out := make(map[WayId][]WayVersion, len(versions))
	for _, wv := range versions {
		out[wv.Skeleton.ID] = append(out[wv.Skeleton.ID], wv)
	}
	return out
}

func flattenGrouped(grouped map[WayId][]WayVersion, ids []WayId) []WayVersion {
	out := make([]WayVersion, 0, len(grouped))
	for _, id := range ids {
		out = append(out, grouped[id]...)
	}
	return out
}
