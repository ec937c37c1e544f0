package wayupdate

// ReconcileExistingAttic implements C6 (§4.6, grounded on
// adapt_newest_existing_attic): the youngest attic Delta written by an
// earlier batch encodes its content relative to whatever was the live
// reference at the time. When this batch splices a newly discovered
// version in ahead of it, that reference goes stale — the entry's content
// hasn't changed (history is immutable, I2), only what it must be
// delta-encoded against has.
//
// id/existingBucket/existingDelta/existingReference/existingTimestamp
// describe the on-disk entry (as returned by AtticStore.ExistingAtticDelta).
// newReference/newReferenceBucket are the skeleton and bucket C5 discovered
// at the window's older boundary (AtticBuildOutput.OldestSkeleton/
// OldestBucket) — the version that now sits between the existing entry and
// whatever it used to reference.
//
// The existing entry's own bucket never changes: the historical skeleton it
// encodes is immutable, so the bucket computed for it by an earlier batch is
// still correct. Only the re-encoding relative to the new reference can
// differ, and only when that differs from the byte content already on disk
// is a rewrite actually needed.
func ReconcileExistingAttic(
	id WayId,
	existingBucket Bucket,
	existingDelta Delta,
	existingReference Skeleton,
	existingTimestamp Timestamp,
	newReference Skeleton,
	newReferenceBucket Bucket,
) (changed bool, rewritten AtticEntry[Delta]) {
	old := expandDelta(existingDelta, existingReference)

	var newDelta Delta
	if existingBucket == newReferenceBucket {
		newDelta = diffSkeletons(newReference, old)
	} else {
		newDelta = diffSkeletons(Skeleton{}, old)
	}
	newDelta.ID = id

	if deltaEqual(newDelta, existingDelta) {
		return false, AtticEntry[Delta]{}
	}
	return true, AtticEntry[Delta]{Value: newDelta, Timestamp: existingTimestamp}
}
