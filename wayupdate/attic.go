package wayupdate

import "sort"

// AtticBuildInput is one call of C5 as scheduled by the driver (§4.5, §4.8
// "driver schedule"): reconstruct the historical versions a single skeleton
// passed through during (FromTs, ToTs], given the skeleton valid throughout
// and the skeleton that took over at ToTs (Reference, empty if the window
// runs to NOW).
type AtticBuildInput struct {
	// Skeleton is the way state holding throughout (FromTs, ToTs].
	Skeleton Skeleton
	FromTs   Timestamp
	ToTs     Timestamp
	// Reference is the skeleton valid immediately after ToTs, or the zero
	// Skeleton if the window extends to NOW (no newer version exists yet).
	Reference Skeleton
	// PriorBucket is the bucket this skeleton was already known to occupy
	// at FromTs, or BucketUnknown if that isn't known up front.
	PriorBucket Bucket
	// AddLastVersion forces emission of the to_ts boundary delta even when
	// no node move lands exactly on it (§4.5 step 3). The driver sets it for
	// an adjacent-pair or pre-batch window whose Reference deletes the way or
	// changes its node list, and leaves it false for windows running to NOW.
	AddLastVersion bool

	Resolver *NodeResolver
	Spatial  SpatialHelpers
}

// AtticBuildOutput collects everything one call contributes to the batch's
// write set, plus the return values §4.5 step 5 defines for chaining
// consecutive calls.
type AtticBuildOutput struct {
	Deltas     map[Bucket][]AtticEntry[Delta]
	Undeletes  map[Bucket][]AtticEntry[WayId]
	Buckets    map[Bucket]struct{}
	// OldestSkeleton/OldestBucket are the state at FromTs this call
	// discovered — valid only when OldestMatchesPrior is true, per §4.5 step
	// 5 ("return last_skel if last_bucket == prior_bucket, else empty").
	OldestSkeleton      Skeleton
	OldestBucket        Bucket
	OldestMatchesPrior bool
}

// BuildAtticHistory implements §4.5 (grounded on add_intermediate_versions):
// walk the node moves inside (FromTs, ToTs] from newest to oldest, emitting
// one Delta per relevant timestamp (plus the ToTs boundary delta when step 3
// calls for it) and an undelete breadcrumb whenever the bucket changes and
// the newer bucket is not BucketNoLive.
func BuildAtticHistory(in AtticBuildInput) AtticBuildOutput {
	out := AtticBuildOutput{
		Deltas:    make(map[Bucket][]AtticEntry[Delta]),
		Undeletes: make(map[Bucket][]AtticEntry[WayId]),
		Buckets:   make(map[Bucket]struct{}),
	}

	id := in.Skeleton.ID
	relevant := collectRelevantTimestamps(in.Skeleton, in.FromTs, in.ToTs, in.Resolver)

	// Step 2: anchor the window's upper endpoint.
	bucket := in.PriorBucket
	curSkeleton := in.Skeleton
	if bucket == BucketUnknown || len(relevant) > 0 {
		bucket, curSkeleton = computeBucketAndGeometry(in.Skeleton, in.ToTs, in.Resolver, in.Spatial)
	}

	// Step 3: emit the to_ts boundary delta when required.
	lastRelevant := len(relevant) > 0 && relevant[len(relevant)-1] == in.ToTs
	if (in.AddLastVersion && in.FromTs < in.ToTs) || lastRelevant {
		refBucket, refSkel := computeBucketAndGeometry(in.Reference, in.ToTs+1, in.Resolver, in.Spatial)

		var delta Delta
		if bucket == refBucket {
			delta = diffSkeletons(refSkel, curSkeleton)
		} else {
			delta = diffSkeletons(Skeleton{}, curSkeleton)
		}
		delta.ID = id

		out.Deltas[bucket] = append(out.Deltas[bucket], AtticEntry[Delta]{Value: delta, Timestamp: in.ToTs})
		out.Buckets[bucket] = struct{}{}

		if bucket != refBucket && refBucket != BucketNoLive {
			out.Undeletes[refBucket] = append(out.Undeletes[refBucket], AtticEntry[WayId]{Value: id, Timestamp: in.ToTs})
		}

		if lastRelevant {
			relevant = relevant[:len(relevant)-1]
		}
	}

	// Step 4: walk remaining relevant timestamps newest to oldest.
	lastBucket := bucket
	lastSkel := curSkeleton

	for i := len(relevant) - 1; i >= 0; i-- {
		t := relevant[i]

		bucketT, skelT := computeBucketAndGeometry(in.Skeleton, t, in.Resolver, in.Spatial)

		var delta Delta
		if bucketT == lastBucket {
			delta = diffSkeletons(lastSkel, skelT)
		} else {
			delta = diffSkeletons(Skeleton{}, skelT)
		}
		delta.ID = id

		out.Deltas[bucketT] = append(out.Deltas[bucketT], AtticEntry[Delta]{Value: delta, Timestamp: t})
		out.Buckets[bucketT] = struct{}{}

		if bucketT != lastBucket && lastBucket != BucketNoLive {
			out.Undeletes[lastBucket] = append(out.Undeletes[lastBucket], AtticEntry[WayId]{Value: id, Timestamp: t})
		}

		lastBucket = bucketT
		lastSkel = skelT
	}

	// Step 5.
	out.OldestBucket = lastBucket
	out.OldestSkeleton = lastSkel
	out.OldestMatchesPrior = lastBucket == in.PriorBucket

	return out
}

// collectRelevantTimestamps implements §4.5 step 1: every timestamp in
// (fromTs, toTs] at which some node referenced by sk moved, sorted and
// deduplicated, with the NOW sentinel dropped if present at the end.
func collectRelevantTimestamps(sk Skeleton, fromTs, toTs Timestamp, resolver *NodeResolver) []Timestamp {
	seen := make(map[Timestamp]struct{})
	for _, nid := range sk.Nodes {
		for _, tp := range resolver.Timeline(nid) {
			if tp.Timestamp > fromTs && tp.Timestamp <= toTs {
				seen[tp.Timestamp] = struct{}{}
			}
		}
	}
	if len(seen) == 0 {
		return nil
	}
	out := make([]Timestamp, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	if out[len(out)-1] == NOW {
		out = out[:len(out)-1]
	}
	return out
}
