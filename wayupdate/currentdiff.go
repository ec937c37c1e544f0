package wayupdate

// MovedWay records a bucket migration detected by C4: way ID used to be
// stored under OldBucket and no longer is.
type MovedWay struct {
	ID        WayId
	OldBucket Bucket
}

// CurrentDiffInput groups the arguments of §4.4's diff_current.
type CurrentDiffInput struct {
	// Latest holds exactly one WayVersion per id: the latest explicit
	// version present in the batch (the §4.4 "multi-version edit is
	// collapsed" rule — the driver is responsible for that collapse;
	// intermediate versions never reach this function, they only feed
	// C5/C7).
	Latest []WayVersion
	// ExistingBucket is the pre-batch current id->bucket directory.
	ExistingBucket map[WayId]Bucket
	// ExistingSkeleton is the pre-batch current skeleton for ids present
	// in ExistingBucket.
	ExistingSkeleton map[WayId]Skeleton
	// ImplicitMovers is C3's output, keyed by each way's *old* bucket.
	ImplicitMovers map[Bucket][]Skeleton
	Resolver       *NodeResolver
	Spatial        SpatialHelpers
}

// CurrentDiffResult is the (attic_set, new_set, moved_list) triple of
// §4.4.
type CurrentDiffResult struct {
	ToRemove map[Bucket][]Skeleton
	ToInsert map[Bucket][]Skeleton
	Moved    []MovedWay
}

// DiffCurrent implements §4.4: compares the new way versions (explicit and
// implicit) against the existing current store and produces the skeletons
// to remove/insert plus the bucket reassignments later stages need.
func DiffCurrent(in CurrentDiffInput) CurrentDiffResult {
	result := CurrentDiffResult{
		ToRemove: make(map[Bucket][]Skeleton),
		ToInsert: make(map[Bucket][]Skeleton),
	}

	for _, wv := range in.Latest {
		oldBucket, hadOld := in.ExistingBucket[wv.Skeleton.ID]

		if wv.Bucket == BucketDeleted {
			if hadOld {
				if old, ok := in.ExistingSkeleton[wv.Skeleton.ID]; ok {
					result.ToRemove[oldBucket] = append(result.ToRemove[oldBucket], old)
				} else {
					diagMissingSkeleton(wv.Skeleton.ID)
				}
			}
			continue
		}

		// "the way's own timestamp + 1" so the computation sees
		// post-commit node positions.
		newBucket, newSkel := computeBucketAndGeometry(wv.Skeleton, wv.Meta.Timestamp+1, in.Resolver, in.Spatial)
		result.ToInsert[newBucket] = append(result.ToInsert[newBucket], newSkel)

		if hadOld && oldBucket != newBucket {
			result.Moved = append(result.Moved, MovedWay{ID: wv.Skeleton.ID, OldBucket: oldBucket})
			if old, ok := in.ExistingSkeleton[wv.Skeleton.ID]; ok {
				result.ToRemove[oldBucket] = append(result.ToRemove[oldBucket], old)
			} else {
				diagMissingSkeleton(wv.Skeleton.ID)
			}
		}
	}

	for oldBucket, skeletons := range in.ImplicitMovers {
		for _, sk := range skeletons {
			newBucket, newSkel := computeBucketAndGeometryCurrent(sk, in.Resolver, in.Spatial)
			result.ToInsert[newBucket] = append(result.ToInsert[newBucket], newSkel)
			if newBucket != oldBucket {
				result.Moved = append(result.Moved, MovedWay{ID: sk.ID, OldBucket: oldBucket})
				result.ToRemove[oldBucket] = append(result.ToRemove[oldBucket], sk)
			}
		}
	}

	return result
}

// CollapseLatestVersions implements the §4.4 edge case: "a way that
// appears multiple times in the same batch ... is collapsed — only the
// latest version goes into the current-set; intermediate versions are fed
// only to C5/C7." versions must already be sorted by (id, version) — the
// driver does this in step 1 of §4.8.
func CollapseLatestVersions(versions []WayVersion) []WayVersion {
	var out []WayVersion
	for i, wv := range versions {
		if i+1 < len(versions) && versions[i+1].Skeleton.ID == wv.Skeleton.ID {
			continue
		}
		out = append(out, wv)
	}
	return out
}
