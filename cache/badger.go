package cache

import "github.com/dgraph-io/badger"

// BadgerDB is a thin wrapper giving badger.DB the three-method kvStore
// shape the rest of this package codes against, adapted from imposm3's
// cache/badger.go (whose Get/Put/Delete bodies short-circuited on an early
// "return nil" before ever touching the transaction — a no-op in practice;
// fixed here, see DESIGN.md).
type BadgerDB struct {
	*badger.DB
}

func (db *BadgerDB) Get(key []byte) ([]byte, error) {
	var data []byte
	err := db.DB.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			data = append([]byte(nil), val...)
			return nil
		})
	})
	return data, err
}

func (db *BadgerDB) Put(key, value []byte) error {
	return db.DB.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

func (db *BadgerDB) Delete(key []byte) error {
	return db.DB.Update(func(txn *badger.Txn) error {
		err := txn.Delete(key)
		if err == badger.ErrKeyNotFound {
			return nil
		}
		return err
	})
}

// Iterate calls fn for every key with the given prefix, stopping early if
// fn returns false.
func (db *BadgerDB) Iterate(prefix []byte, fn func(key, value []byte) bool) error {
	return db.DB.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key := append([]byte(nil), item.Key()...)
			cont := true
			err := item.Value(func(val []byte) error {
				cont = fn(key, append([]byte(nil), val...))
				return nil
			})
			if err != nil {
				return err
			}
			if !cont {
				break
			}
		}
		return nil
	})
}
