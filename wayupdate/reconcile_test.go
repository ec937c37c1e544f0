package wayupdate

import "testing"

func TestReconcileExistingAtticNoChangeWhenReferenceUnchanged(t *testing.T) {
	reference := Skeleton{ID: 1, Nodes: []NodeId{1, 2, 3}}
	historical := Skeleton{ID: 1, Nodes: []NodeId{1, 9, 3}}
	existingDelta := diffSkeletons(reference, historical)

	changed, _ := ReconcileExistingAttic(1, Bucket(5), existingDelta, reference, 100, reference, Bucket(5))
	if changed {
		t.Fatal("re-diffing against the same reference should never produce a rewrite")
	}
}

func TestReconcileExistingAtticRewritesWhenReferenceMoves(t *testing.T) {
	oldReference := Skeleton{ID: 1, Nodes: []NodeId{1, 2, 3}}
	historical := Skeleton{ID: 1, Nodes: []NodeId{1, 9, 3}}
	existingDelta := diffSkeletons(oldReference, historical)

	newReference := Skeleton{ID: 1, Nodes: []NodeId{1, 2, 3, 4}}

	changed, rewritten := ReconcileExistingAttic(1, Bucket(5), existingDelta, oldReference, 100, newReference, Bucket(5))
	if !changed {
		t.Fatal("expected a rewrite when the spliced-in reference differs from the old one")
	}
	if rewritten.Timestamp != 100 {
		t.Fatalf("rewritten entry must keep the original timestamp, got %d", rewritten.Timestamp)
	}
	got := expandDelta(rewritten.Value, newReference)
	if !skelEqual(got, historical) {
		t.Fatalf("expand(rewritten, newReference) = %+v, want the original historical skeleton %+v", got, historical)
	}
}

func TestReconcileExistingAtticFullWhenBucketDiffers(t *testing.T) {
	oldReference := Skeleton{ID: 1, Nodes: []NodeId{1, 2, 3}}
	historical := Skeleton{ID: 1, Nodes: []NodeId{1, 9, 3}}
	existingDelta := diffSkeletons(oldReference, historical)

	newReference := Skeleton{ID: 1, Nodes: []NodeId{1, 2, 3, 4}}

	// newReferenceBucket differs from the existing entry's own bucket: the
	// spliced-in version no longer shares a bucket with the reference, so
	// the rewrite must fall back to a Full delta rather than an incremental
	// one against a reference in a different bucket.
	changed, rewritten := ReconcileExistingAttic(1, Bucket(5), existingDelta, oldReference, 100, newReference, Bucket(6))
	if !changed {
		t.Fatal("expected a rewrite when the bucket relationship changes")
	}
	if !rewritten.Value.Full {
		t.Fatal("expected a Full delta when existingBucket != newReferenceBucket")
	}
	got := expandDelta(rewritten.Value, Skeleton{})
	if !skelEqual(got, historical) {
		t.Fatalf("expand(full rewritten, empty) = %+v, want %+v", got, historical)
	}
}
