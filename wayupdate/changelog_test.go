package wayupdate

import "testing"

func TestBuildChangelogMergesAtticAndCurrentByTimestamp(t *testing.T) {
	in := ChangelogInput{
		AtticDeltas: map[Bucket][]AtticEntry[Delta]{
			5: {
				{Value: Delta{ID: 1}, Timestamp: 10},
				{Value: Delta{ID: 2}, Timestamp: 10},
			},
			6: {
				{Value: Delta{ID: 3}, Timestamp: 20},
			},
		},
		CurrentChangedIDs: []WayId{1, 4},
		CurrentTimestamps: map[WayId]Timestamp{1: 10, 4: 30},
	}

	out := BuildChangelog(in)

	if len(out[10]) != 2 || out[10][0] != 1 || out[10][1] != 2 {
		t.Fatalf("out[10] = %v, want [1 2] (deduplicated, sorted)", out[10])
	}
	if len(out[20]) != 1 || out[20][0] != 3 {
		t.Fatalf("out[20] = %v, want [3]", out[20])
	}
	if len(out[30]) != 1 || out[30][0] != 4 {
		t.Fatalf("out[30] = %v, want [4]", out[30])
	}
}

func TestBuildChangelogSkipsCurrentIDsMissingATimestamp(t *testing.T) {
	in := ChangelogInput{
		CurrentChangedIDs: []WayId{99},
		CurrentTimestamps: map[WayId]Timestamp{},
	}
	out := BuildChangelog(in)
	if len(out) != 0 {
		t.Fatalf("expected no changelog entries for an id with no recorded timestamp, got %v", out)
	}
}
