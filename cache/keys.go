package cache

import "encoding/binary"

// kvStore is the minimal interface both backends (BadgerDB, LevelDB)
// satisfy; Store codes only against this so the backend is swappable via
// config.Config.Backend.
type kvStore interface {
	Get(key []byte) ([]byte, error)
	Put(key, value []byte) error
	Delete(key []byte) error
	Iterate(prefix []byte, fn func(key, value []byte) bool) error
}

// Key prefixes, one byte each, separating the logical stores sharing one
// physical kvStore.
const (
	prefixCurrent    = byte('c')
	prefixIndex      = byte('i')
	prefixAttic      = byte('a')
	prefixBucketList = byte('b')
	prefixUndelete   = byte('u')
	prefixChangelog  = byte('l')
	prefixMeta       = byte('m')
	prefixAtticMeta  = byte('M')
)

// idKey packs a single 64-bit id into a big-endian key, the same scheme as
// imposm3's idToKeyBuf in cache/osm.go.
func idKey(prefix byte, id uint64) []byte {
	b := make([]byte, 9)
	b[0] = prefix
	binary.BigEndian.PutUint64(b[1:], id)
	return b
}

// bucketKey packs a bucket id followed by a sub-key (way id or timestamp)
// so that Iterate(bucketPrefix(prefix, bucket), ...) visits every entry
// stored under that bucket in key order.
func bucketKey(prefix byte, bucket uint32, sub uint64) []byte {
	b := make([]byte, 13)
	b[0] = prefix
	binary.BigEndian.PutUint32(b[1:5], bucket)
	binary.BigEndian.PutUint64(b[5:], sub)
	return b
}

func bucketPrefix(prefix byte, bucket uint32) []byte {
	b := make([]byte, 5)
	b[0] = prefix
	binary.BigEndian.PutUint32(b[1:], bucket)
	return b
}
