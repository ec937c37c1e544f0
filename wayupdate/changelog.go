package wayupdate

import "sort"

// ChangelogInput gathers everything C7 needs to produce the batch's
// (timestamp -> changed ids) changelog (§4.7, grounded on
// add_intermediate_changelog_entries / compute_changelog): every attic
// delta emitted by any C5 call in the batch, plus the latest-version
// changes C4 produced, each timestamped with its own commit time (not NOW —
// the changelog records when a version actually took effect, not when the
// batch ran).
type ChangelogInput struct {
	AtticDeltas       map[Bucket][]AtticEntry[Delta]
	CurrentChangedIDs []WayId
	CurrentTimestamps map[WayId]Timestamp
}

// BuildChangelog implements C7: fold every version change discovered this
// batch into a single timestamp-keyed id list, deduplicated and sorted for
// deterministic output (P7).
func BuildChangelog(in ChangelogInput) map[Timestamp][]WayId {
	byTimestamp := make(map[Timestamp]map[WayId]struct{})

	add := func(t Timestamp, id WayId) {
		ids, ok := byTimestamp[t]
		if !ok {
			ids = make(map[WayId]struct{})
			byTimestamp[t] = ids
		}
		ids[id] = struct{}{}
	}

	for _, entries := range in.AtticDeltas {
		for _, e := range entries {
			add(e.Timestamp, e.Value.ID)
		}
	}
	for _, id := range in.CurrentChangedIDs {
		if t, ok := in.CurrentTimestamps[id]; ok {
			add(t, id)
		}
	}

	out := make(map[Timestamp][]WayId, len(byTimestamp))
	for t, ids := range byTimestamp {
		list := make([]WayId, 0, len(ids))
		for id := range ids {
			list = append(list, id)
		}
		sort.Slice(list, func(i, j int) bool { return list[i] < list[j] })
		out[t] = list
	}
	return out
}
