package cache

import (
	"github.com/jmhodges/levigo"

	"github.com/omniscale/osmdelta/config"
)

// LevelDB is the alternate kvStore backend, adapted from imposm3's
// cache/osm.go base `cache` struct (the same levigo option wiring:
// LRU cache, max open files, block restart interval, write buffer) —
// imposm3 opened one such store per element kind (coords/ways/nodes); here
// one LevelDB wraps one logical store (current/attic/meta/...), selected by
// config.Config.Backend alongside BadgerDB.
type LevelDB struct {
	db *levigo.DB
	wo *levigo.WriteOptions
	ro *levigo.ReadOptions
	lru *levigo.Cache
}

func OpenLevelDB(path string, opts config.StoreOptions) (*LevelDB, error) {
	o := levigo.NewOptions()
	o.SetCreateIfMissing(true)

	var lru *levigo.Cache
	if opts.CacheSizeM > 0 {
		lru = levigo.NewLRUCache(opts.CacheSizeM * 1024 * 1024)
		o.SetCache(lru)
	}
	if opts.MaxOpenFiles > 0 {
		o.SetMaxOpenFiles(opts.MaxOpenFiles)
	}
	if opts.BlockRestartInterval > 0 {
		o.SetBlockRestartInterval(opts.BlockRestartInterval)
	}
	if opts.WriteBufferSizeM > 0 {
		o.SetWriteBufferSize(opts.WriteBufferSizeM * 1024 * 1024)
	}
	if opts.BlockSizeK > 0 {
		o.SetBlockSize(opts.BlockSizeK * 1024)
	}

	db, err := levigo.Open(path, o)
	if err != nil {
		return nil, err
	}
	return &LevelDB{
		db:  db,
		wo:  levigo.NewWriteOptions(),
		ro:  levigo.NewReadOptions(),
		lru: lru,
	}, nil
}

func (l *LevelDB) Get(key []byte) ([]byte, error) {
	return l.db.Get(l.ro, key)
}

func (l *LevelDB) Put(key, value []byte) error {
	return l.db.Put(l.wo, key, value)
}

func (l *LevelDB) Delete(key []byte) error {
	return l.db.Delete(l.wo, key)
}

func (l *LevelDB) Iterate(prefix []byte, fn func(key, value []byte) bool) error {
	it := l.db.NewIterator(l.ro)
	defer it.Close()
	for it.Seek(prefix); it.Valid(); it.Next() {
		k := it.Key()
		if len(k) < len(prefix) || string(k[:len(prefix)]) != string(prefix) {
			break
		}
		if !fn(k, it.Value()) {
			break
		}
	}
	return it.GetError()
}

func (l *LevelDB) Close() {
	l.db.Close()
	if l.lru != nil {
		l.lru.Close()
	}
}
