package wayupdate

import "testing"

func TestFanoutBucketIsLowNibble(t *testing.T) {
	if got := FanoutBucket(WayId(0x1f)); got != 0xf {
		t.Fatalf("FanoutBucket(0x1f) = %d, want 15", got)
	}
	if got := FanoutBucket(WayId(0x20)); got != 0 {
		t.Fatalf("FanoutBucket(0x20) = %d, want 0", got)
	}
}

func TestPlanPartialMergeStaysPutBelowThreshold(t *testing.T) {
	next, should := PlanPartialMerge(StageFanout0, 10, 2)
	if should || next != StageFanout0 {
		t.Fatalf("PlanPartialMerge(Fanout0, 10, 2) = (%v, %v), want no cascade", next, should)
	}
}

func TestPlanPartialMergeCascadesFanout0ToFanout1(t *testing.T) {
	next, should := PlanPartialMerge(StageFanout0, 14, 2)
	if !should || next != StageFanout1 {
		t.Fatalf("PlanPartialMerge(Fanout0, 14, 2) = (%v, %v), want cascade to Fanout1", next, should)
	}
}

func TestPlanPartialMergeCascadesFanout1ToConsolidated(t *testing.T) {
	next, should := PlanPartialMerge(StageFanout1, 250, 10)
	if !should || next != StageConsolidated {
		t.Fatalf("PlanPartialMerge(Fanout1, 250, 10) = (%v, %v), want cascade to Consolidated", next, should)
	}
}

func TestPlanPartialMergeConsolidatedAlwaysCascadesToSink(t *testing.T) {
	next, should := PlanPartialMerge(StageConsolidated, 0, 0)
	if !should || next != StageSink {
		t.Fatalf("PlanPartialMerge(Consolidated, 0, 0) = (%v, %v), want unconditional cascade to Sink", next, should)
	}
}

func TestPlanPartialMergeWithThresholdsHonorsCustomStage0(t *testing.T) {
	// With the package default (16) this would stay put; a config-tuned
	// threshold of 4 must cascade instead.
	next, should := PlanPartialMergeWithThresholds(StageFanout0, 2, 2, 4, 256)
	if !should || next != StageFanout1 {
		t.Fatalf("PlanPartialMergeWithThresholds(Fanout0, 2, 2, 4, 256) = (%v, %v), want cascade to Fanout1", next, should)
	}
}

func TestPlanPartialMergeWithThresholdsMatchesDefaultsWhenEqual(t *testing.T) {
	next, should := PlanPartialMergeWithThresholds(StageFanout0, 10, 2, stage0Threshold, stage1Threshold)
	wantNext, wantShould := PlanPartialMerge(StageFanout0, 10, 2)
	if next != wantNext || should != wantShould {
		t.Fatalf("PlanPartialMergeWithThresholds with default thresholds = (%v, %v), want (%v, %v)", next, should, wantNext, wantShould)
	}
}
