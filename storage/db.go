package storage

import (
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/core/rawdb"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/ethdb/leveldb"
	"github.com/ethereum/go-ethereum/triedb"
)

// ErrKeyNotFound is returned by Get when the key is absent from the store.
var ErrKeyNotFound = errors.New("storage: key not found")

// Database is a generic interface for a key-value store so the ledger can run
// against either an in-memory backend (tests) or a persistent one. TrieDB
// exposes the shared trie database so all state mutations operate on the same
// backing storage.
type Database interface {
	Put(key []byte, value []byte) error
	Get(key []byte) ([]byte, error)
	Has(key []byte) (bool, error)
	TrieDB() *triedb.Database
	Close()
}

// ethStore carries the go-ethereum database handle plus a lazily constructed
// trie database shared by every trie opened against this store.
type ethStore struct {
	db       ethdb.Database
	trieOnce sync.Once
	trieDB   *triedb.Database
}

func (s *ethStore) Put(key []byte, value []byte) error {
	return s.db.Put(key, value)
}

func (s *ethStore) Get(key []byte) ([]byte, error) {
	ok, err := s.db.Has(key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrKeyNotFound
	}
	return s.db.Get(key)
}

func (s *ethStore) Has(key []byte) (bool, error) {
	return s.db.Has(key)
}

func (s *ethStore) TrieDB() *triedb.Database {
	s.trieOnce.Do(func() {
		s.trieDB = triedb.NewDatabase(s.db, nil)
	})
	return s.trieDB
}

func (s *ethStore) Close() {
	_ = s.db.Close()
}

// --- In-memory backend ---

// MemDB keeps all data in memory. It is used by tests and development tooling.
type MemDB struct {
	ethStore
}

func NewMemDB() *MemDB {
	return &MemDB{ethStore{db: rawdb.NewMemoryDatabase()}}
}

// --- Persistent backend ---

// LevelDB is a persistent key-value store backed by goleveldb.
type LevelDB struct {
	ethStore
}

// NewLevelDB creates or opens a LevelDB database at the specified path.
func NewLevelDB(path string) (*LevelDB, error) {
	kv, err := leveldb.New(path, 0, 0, "dq/ledger", false)
	if err != nil {
		return nil, err
	}
	return &LevelDB{ethStore{db: rawdb.NewDatabase(kv)}}, nil
}
