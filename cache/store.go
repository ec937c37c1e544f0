// Package cache implements the way updater's storage collaborators
// (wayupdate.CurrentStore, IdIndex, AtticStore, MetaStore, NodeStore) on
// top of an embedded key-value store, adapted from imposm3's cache package:
// the same badger/levigo backend choice, the same big-endian id keys, and
// the same "one physical store, several logical caches" shape — except
// where imposm3 keyed by node/way/relation, Store keys by way-current,
// way-attic (bucketed), id-index, bucket-list, undelete and changelog.
package cache

import (
	"sort"

	"github.com/omniscale/osmdelta/cache/binary"
	"github.com/omniscale/osmdelta/wayupdate"

	"github.com/pkg/errors"
)

// Store implements every wayupdate storage interface over one kvStore.
// Tag storage is intentionally absent — tag serialization is out of this
// engine's scope (§1); a caller needing it pairs Store with its own
// LocalTagStore/GlobalTagStore.
type Store struct {
	db kvStore
}

func NewStore(db kvStore) *Store {
	return &Store{db: db}
}

// --- CurrentStore ---

func (s *Store) ReadCurrent(buckets map[wayupdate.Bucket]struct{}) (map[wayupdate.Bucket][]wayupdate.Skeleton, error) {
	out := make(map[wayupdate.Bucket][]wayupdate.Skeleton, len(buckets))
	for b := range buckets {
		var skels []wayupdate.Skeleton
		err := s.db.Iterate(bucketPrefix(prefixCurrent, uint32(b)), func(_, value []byte) bool {
			sk, err := binary.UnmarshalSkeleton(value)
			if err != nil {
				return false
			}
			skels = append(skels, sk)
			return true
		})
		if err != nil {
			return nil, errors.Wrapf(err, "reading current bucket %d", b)
		}
		if len(skels) > 0 {
			out[b] = skels
		}
	}
	return out, nil
}

func (s *Store) UpdateCurrent(toDelete, toInsert map[wayupdate.Bucket][]wayupdate.Skeleton) error {
	for b, skels := range toDelete {
		for _, sk := range skels {
			if err := s.db.Delete(bucketKey(prefixCurrent, uint32(b), uint64(sk.ID))); err != nil {
				return errors.Wrapf(err, "deleting current way %d", sk.ID)
			}
		}
	}
	for b, skels := range toInsert {
		for _, sk := range skels {
			key := bucketKey(prefixCurrent, uint32(b), uint64(sk.ID))
			if err := s.db.Put(key, binary.MarshalSkeleton(sk)); err != nil {
				return errors.Wrapf(err, "writing current way %d", sk.ID)
			}
		}
	}
	return nil
}

// currentSkeleton finds a way's live skeleton regardless of which bucket
// it sits in, used by the attic store to reconstruct reference chains.
func (s *Store) currentSkeleton(id wayupdate.WayId) (wayupdate.Skeleton, bool) {
	idx, err := s.ReadIndex([]wayupdate.WayId{id})
	if err != nil {
		return wayupdate.Skeleton{}, false
	}
	bucket, ok := idx[id]
	if !ok {
		return wayupdate.Skeleton{}, false
	}
	skels, err := s.ReadCurrent(map[wayupdate.Bucket]struct{}{bucket: {}})
	if err != nil {
		return wayupdate.Skeleton{}, false
	}
	for _, sk := range skels[bucket] {
		if sk.ID == id {
			return sk, true
		}
	}
	return wayupdate.Skeleton{}, false
}

// --- IdIndex ---

func (s *Store) ReadIndex(ids []wayupdate.WayId) (map[wayupdate.WayId]wayupdate.Bucket, error) {
	out := make(map[wayupdate.WayId]wayupdate.Bucket, len(ids))
	for _, id := range ids {
		val, err := s.db.Get(idKey(prefixIndex, uint64(id)))
		if err != nil {
			return nil, errors.Wrapf(err, "reading index for %d", id)
		}
		if val == nil {
			continue
		}
		v, n := uvarint(val)
		if n <= 0 {
			continue
		}
		out[id] = wayupdate.Bucket(v)
	}
	return out, nil
}

func (s *Store) UpdateIndex(updates map[wayupdate.WayId]wayupdate.Bucket) error {
	for id, b := range updates {
		if err := s.db.Put(idKey(prefixIndex, uint64(id)), putUvarint(uint64(b))); err != nil {
			return errors.Wrapf(err, "writing index for %d", id)
		}
	}
	return nil
}

// --- AtticStore ---

func (s *Store) ReadAttic(buckets map[wayupdate.Bucket]struct{}) (map[wayupdate.Bucket][]wayupdate.AtticEntry[wayupdate.Delta], error) {
	out := make(map[wayupdate.Bucket][]wayupdate.AtticEntry[wayupdate.Delta], len(buckets))
	for b := range buckets {
		var entries []wayupdate.AtticEntry[wayupdate.Delta]
		prefix := bucketPrefix(prefixAttic, uint32(b))
		err := s.db.Iterate(prefix, func(key, value []byte) bool {
			ts := keySuffix(key)
			d, err := binary.UnmarshalDelta(value)
			if err != nil {
				return false
			}
			entries = append(entries, wayupdate.AtticEntry[wayupdate.Delta]{Value: d, Timestamp: wayupdate.Timestamp(ts)})
			return true
		})
		if err != nil {
			return nil, errors.Wrapf(err, "reading attic bucket %d", b)
		}
		if len(entries) > 0 {
			out[b] = entries
		}
	}
	return out, nil
}

func (s *Store) UpdateAttic(toDelete, toInsert map[wayupdate.Bucket][]wayupdate.AtticEntry[wayupdate.Delta]) error {
	for b, entries := range toDelete {
		for _, e := range entries {
			key := bucketKey(prefixAttic, uint32(b), uint64(e.Timestamp))
			if err := s.db.Delete(key); err != nil {
				return errors.Wrapf(err, "deleting attic entry for %d", e.Value.ID)
			}
			if err := s.removeFromTimeline(e.Value.ID, e.Timestamp); err != nil {
				return err
			}
		}
	}
	for b, entries := range toInsert {
		for _, e := range entries {
			key := bucketKey(prefixAttic, uint32(b), uint64(e.Timestamp))
			if err := s.db.Put(key, binary.MarshalDelta(e.Value)); err != nil {
				return errors.Wrapf(err, "writing attic entry for %d", e.Value.ID)
			}
			if err := s.addToTimeline(e.Value.ID, e.Timestamp, b); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Store) ReadBucketList(ids []wayupdate.WayId) (map[wayupdate.WayId]map[wayupdate.Bucket]struct{}, error) {
	out := make(map[wayupdate.WayId]map[wayupdate.Bucket]struct{}, len(ids))
	for _, id := range ids {
		val, err := s.db.Get(idKey(prefixBucketList, uint64(id)))
		if err != nil {
			return nil, errors.Wrapf(err, "reading bucket list for %d", id)
		}
		if val == nil {
			continue
		}
		out[id] = decodeBucketSet(val)
	}
	return out, nil
}

func (s *Store) UpdateBucketList(id wayupdate.WayId, buckets map[wayupdate.Bucket]struct{}) error {
	existing, err := s.ReadBucketList([]wayupdate.WayId{id})
	if err != nil {
		return err
	}
	merged := existing[id]
	if merged == nil {
		merged = make(map[wayupdate.Bucket]struct{}, len(buckets))
	}
	for b := range buckets {
		merged[b] = struct{}{}
	}
	return s.db.Put(idKey(prefixBucketList, uint64(id)), encodeBucketSet(merged))
}

// atticTimelineEntry is one link of the per-id sorted (timestamp, bucket) chain used to
// answer YoungestAtticTimestamp/ExistingAtticDelta without a full bucket
// scan, and to reconstruct reference skeletons for the reconciler.
type atticTimelineEntry struct {
	ts     wayupdate.Timestamp
	bucket wayupdate.Bucket
}

func (s *Store) loadTimeline(id wayupdate.WayId) ([]atticTimelineEntry, error) {
	val, err := s.db.Get(idKey(prefixAtticMeta, uint64(id)))
	if err != nil {
		return nil, err
	}
	if val == nil {
		return nil, nil
	}
	n, adv := uvarint(val)
	if adv <= 0 {
		return nil, nil
	}
	buf := val[adv:]
	entries := make([]atticTimelineEntry, 0, n)
	for i := uint64(0); i < n; i++ {
		ts, a1 := uvarint(buf)
		if a1 <= 0 {
			break
		}
		buf = buf[a1:]
		b, a2 := uvarint(buf)
		if a2 <= 0 {
			break
		}
		buf = buf[a2:]
		entries = append(entries, atticTimelineEntry{ts: wayupdate.Timestamp(ts), bucket: wayupdate.Bucket(b)})
	}
	return entries, nil
}

func (s *Store) saveTimeline(id wayupdate.WayId, entries []atticTimelineEntry) error {
	sort.Slice(entries, func(i, j int) bool { return entries[i].ts < entries[j].ts })
	buf := putUvarint(uint64(len(entries)))
	for _, e := range entries {
		buf = append(buf, putUvarint(uint64(e.ts))...)
		buf = append(buf, putUvarint(uint64(e.bucket))...)
	}
	return s.db.Put(idKey(prefixAtticMeta, uint64(id)), buf)
}

func (s *Store) addToTimeline(id wayupdate.WayId, ts wayupdate.Timestamp, bucket wayupdate.Bucket) error {
	entries, err := s.loadTimeline(id)
	if err != nil {
		return err
	}
	for i, e := range entries {
		if e.ts == ts {
			entries[i].bucket = bucket
			return s.saveTimeline(id, entries)
		}
	}
	entries = append(entries, atticTimelineEntry{ts: ts, bucket: bucket})
	return s.saveTimeline(id, entries)
}

func (s *Store) removeFromTimeline(id wayupdate.WayId, ts wayupdate.Timestamp) error {
	entries, err := s.loadTimeline(id)
	if err != nil {
		return err
	}
	out := entries[:0]
	for _, e := range entries {
		if e.ts != ts {
			out = append(out, e)
		}
	}
	return s.saveTimeline(id, out)
}

func (s *Store) YoungestAtticTimestamp(id wayupdate.WayId) (wayupdate.Timestamp, bool, error) {
	entries, err := s.loadTimeline(id)
	if err != nil {
		return 0, false, err
	}
	if len(entries) == 0 {
		return 0, false, nil
	}
	return entries[len(entries)-1].ts, true, nil
}

func (s *Store) ExistingAtticDelta(id wayupdate.WayId, t wayupdate.Timestamp) (wayupdate.Bucket, wayupdate.Delta, wayupdate.Skeleton, bool) {
	entries, err := s.loadTimeline(id)
	if err != nil {
		return 0, wayupdate.Delta{}, wayupdate.Skeleton{}, false
	}
	idx := -1
	for i, e := range entries {
		if e.ts == t {
			idx = i
			break
		}
	}
	if idx < 0 {
		return 0, wayupdate.Delta{}, wayupdate.Skeleton{}, false
	}

	bucket := entries[idx].bucket
	val, err := s.db.Get(bucketKey(prefixAttic, uint32(bucket), uint64(t)))
	if err != nil || val == nil {
		return 0, wayupdate.Delta{}, wayupdate.Skeleton{}, false
	}
	delta, err := binary.UnmarshalDelta(val)
	if err != nil {
		return 0, wayupdate.Delta{}, wayupdate.Skeleton{}, false
	}

	reference, ok := s.currentSkeleton(id)
	if !ok {
		reference = wayupdate.Skeleton{}
	}
	for i := len(entries) - 1; i > idx; i-- {
		newerVal, err := s.db.Get(bucketKey(prefixAttic, uint32(entries[i].bucket), uint64(entries[i].ts)))
		if err != nil || newerVal == nil {
			continue
		}
		newerDelta, err := binary.UnmarshalDelta(newerVal)
		if err != nil {
			continue
		}
		reference = wayupdate.ExpandDelta(newerDelta, reference)
	}

	return bucket, delta, reference, true
}

func (s *Store) UpdateUndelete(toInsert map[wayupdate.Bucket][]wayupdate.AtticEntry[wayupdate.WayId]) error {
	for b, entries := range toInsert {
		for _, e := range entries {
			key := bucketKey(prefixUndelete, uint32(b), uint64(e.Timestamp))
			if err := s.db.Put(key, putUvarint(uint64(e.Value))); err != nil {
				return errors.Wrapf(err, "writing undelete for %d", e.Value)
			}
		}
	}
	return nil
}

func (s *Store) UpdateChangelog(entries map[wayupdate.Timestamp][]wayupdate.WayId) error {
	for ts, ids := range entries {
		buf := putUvarint(uint64(len(ids)))
		for _, id := range ids {
			buf = append(buf, putUvarint(uint64(id))...)
		}
		if err := s.db.Put(idKey(prefixChangelog, uint64(ts)), buf); err != nil {
			return errors.Wrapf(err, "writing changelog for %d", ts)
		}
	}
	return nil
}

// --- MetaStore ---

func (s *Store) ReadMeta(ids []wayupdate.WayId) (map[wayupdate.WayId]wayupdate.MetaRecord, error) {
	out := make(map[wayupdate.WayId]wayupdate.MetaRecord, len(ids))
	for _, id := range ids {
		val, err := s.db.Get(idKey(prefixMeta, uint64(id)))
		if err != nil {
			return nil, errors.Wrapf(err, "reading meta for %d", id)
		}
		if val == nil {
			continue
		}
		m, err := binary.UnmarshalMeta(val)
		if err != nil {
			continue
		}
		out[id] = m
	}
	return out, nil
}

func (s *Store) UpdateMeta(toDelete, toInsert map[wayupdate.Bucket][]wayupdate.MetaRecord) error {
	for _, recs := range toDelete {
		for _, m := range recs {
			if err := s.db.Delete(idKey(prefixMeta, uint64(m.ID))); err != nil {
				return errors.Wrapf(err, "deleting meta for %d", m.ID)
			}
		}
	}
	for _, recs := range toInsert {
		for _, m := range recs {
			if err := s.db.Put(idKey(prefixMeta, uint64(m.ID)), binary.MarshalMeta(m)); err != nil {
				return errors.Wrapf(err, "writing meta for %d", m.ID)
			}
		}
	}
	return nil
}

func (s *Store) UpdateAtticMeta(toInsert map[wayupdate.Bucket][]wayupdate.AtticEntry[wayupdate.MetaRecord]) error {
	for _, entries := range toInsert {
		for _, e := range entries {
			key := bucketKey(prefixAtticMeta+1, uint32(e.Value.ID&0xffffffff), uint64(e.Timestamp))
			if err := s.db.Put(key, binary.MarshalMeta(e.Value)); err != nil {
				return errors.Wrapf(err, "writing attic meta for %d", e.Value.ID)
			}
		}
	}
	return nil
}

// --- NodeStore ---

func (s *Store) ReadNodes(ids []wayupdate.NodeId) (map[wayupdate.NodeId]wayupdate.NodeSnapshot, error) {
	out := make(map[wayupdate.NodeId]wayupdate.NodeSnapshot, len(ids))
	for _, id := range ids {
		val, err := s.db.Get(idKey('n', uint64(id)))
		if err != nil {
			return nil, errors.Wrapf(err, "reading node %d", id)
		}
		if val == nil {
			continue
		}
		upper, n := uvarint(val)
		if n <= 0 {
			continue
		}
		lower, _ := uvarint(val[n:])
		out[id] = wayupdate.NodeSnapshot{ID: id, Coord: wayupdate.Coord{Upper: wayupdate.Bucket(upper), Lower: uint32(lower)}}
	}
	return out, nil
}
