package cache

import (
	"encoding/binary"

	"github.com/omniscale/osmdelta/wayupdate"
)

// putUvarint/uvarint are the small-value varint helpers Store uses for its
// own bookkeeping records (index entries, timeline entries, changelog
// counts) — kept separate from cache/binary, which codes only against
// wayupdate's value types.
func putUvarint(v uint64) []byte {
	buf := make([]byte, binary.MaxVarintLen64)
	n := binary.PutUvarint(buf, v)
	return buf[:n]
}

func uvarint(buf []byte) (uint64, int) {
	return binary.Uvarint(buf)
}

// keySuffix extracts the trailing 8-byte big-endian sub-key (way id or
// timestamp) from a key produced by bucketKey.
func keySuffix(key []byte) uint64 {
	if len(key) < 8 {
		return 0
	}
	return binary.BigEndian.Uint64(key[len(key)-8:])
}

// encodeBucketSet/decodeBucketSet pack a set of buckets as a
// count-prefixed uvarint list, the value stored under prefixBucketList.
func encodeBucketSet(set map[wayupdate.Bucket]struct{}) []byte {
	buf := putUvarint(uint64(len(set)))
	for b := range set {
		buf = append(buf, putUvarint(uint64(b))...)
	}
	return buf
}

func decodeBucketSet(val []byte) map[wayupdate.Bucket]struct{} {
	n, adv0 := uvarint(val)
	buf := val[adv0:]
	out := make(map[wayupdate.Bucket]struct{}, n)
	for i := uint64(0); i < n; i++ {
		v, adv := uvarint(buf)
		if adv <= 0 {
			break
		}
		out[wayupdate.Bucket(v)] = struct{}{}
		buf = buf[adv:]
	}
	return out
}
