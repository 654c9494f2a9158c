package db

import (
	"fmt"

	"github.com/google/orderedcode"
	lru "github.com/hashicorp/golang-lru"
	dbm "github.com/tendermint/tm-db"

	"github.com/ledgerlight/ledgerlight/light/store"
)

const defaultCacheSize = 16

type dbs struct {
	db     dbm.DB
	prefix string
	cache  *lru.Cache
}

// New returns a Storage that wraps any DB (with an optional prefix in case you
// want to use one DB with many light clients). Values read or written are
// kept in a small LRU cache in front of the DB.
func New(db dbm.DB, prefix string) store.Storage {
	cache, err := lru.New(defaultCacheSize)
	if err != nil {
		panic(err)
	}
	return &dbs{db: db, prefix: prefix, cache: cache}
}

// Get loads the value stored under key.
//
// Safe for concurrent use by multiple goroutines.
func (s *dbs) Get(key string) ([]byte, error) {
	if v, ok := s.cache.Get(key); ok {
		return append([]byte(nil), v.([]byte)...), nil
	}

	k, err := s.dbKey(key)
	if err != nil {
		return nil, err
	}
	bz, err := s.db.Get(k)
	if err != nil {
		return nil, fmt.Errorf("get %q: %w", key, err)
	}
	if bz == nil {
		return nil, store.ErrKeyNotFound
	}
	s.cache.Add(key, append([]byte(nil), bz...))
	return bz, nil
}

// Set persists value under key, syncing the write to disk.
//
// Safe for concurrent use by multiple goroutines.
func (s *dbs) Set(key string, value []byte) error {
	k, err := s.dbKey(key)
	if err != nil {
		return err
	}
	// drop the cached value first so a failed write never leaves it stale
	s.cache.Remove(key)
	if err := s.db.SetSync(k, value); err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	s.cache.Add(key, append([]byte(nil), value...))
	return nil
}

func (s *dbs) dbKey(key string) ([]byte, error) {
	k, err := orderedcode.Append(nil, s.prefix, key)
	if err != nil {
		return nil, fmt.Errorf("encoding key %q: %w", key, err)
	}
	return k, nil
}
