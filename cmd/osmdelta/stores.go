package main

import (
	"path/filepath"

	"github.com/dgraph-io/badger"

	"github.com/omniscale/osmdelta/cache"
	"github.com/omniscale/osmdelta/config"
)

// openStores opens the five logical stores (current, ids, attic, meta,
// nodes) as five physical backends under basedir, named after imposm3's
// per-element cache files (nodes.cache, ways.cache, ...) — here split by
// logical store rather than OSM element kind.
type openStoreSet struct {
	current *cache.Store
	ids     *cache.Store
	attic   *cache.Store
	meta    *cache.Store
	nodes   *cache.Store

	closers []func() error
}

func (s *openStoreSet) Close() {
	for _, c := range s.closers {
		c()
	}
}

func openStores(basedir string, cfg config.Config) (*openStoreSet, error) {
	set := &openStoreSet{}

	openOne := func(name string, opts config.StoreOptions) (*cache.Store, error) {
		path := filepath.Join(basedir, name)
		switch cfg.Backend {
		case "leveldb":
			db, err := cache.OpenLevelDB(path, opts)
			if err != nil {
				return nil, err
			}
			set.closers = append(set.closers, func() error { db.Close(); return nil })
			return cache.NewStore(db), nil
		default:
			bopts := badger.DefaultOptions(path)
			db, err := badger.Open(bopts)
			if err != nil {
				return nil, err
			}
			wrapped := &cache.BadgerDB{DB: db}
			set.closers = append(set.closers, db.Close)
			return cache.NewStore(wrapped), nil
		}
	}

	var err error
	if set.current, err = openOne("current", cfg.Current); err != nil {
		return nil, err
	}
	if set.ids, err = openOne("ids", cfg.Current); err != nil {
		return nil, err
	}
	if set.attic, err = openOne("attic", cfg.Attic); err != nil {
		return nil, err
	}
	if set.meta, err = openOne("meta", cfg.Meta); err != nil {
		return nil, err
	}
	if set.nodes, err = openOne("nodes", cfg.Nodes); err != nil {
		return nil, err
	}
	return set, nil
}
