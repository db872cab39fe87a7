// Package kvstore is the shared, exclusively-owned working-directory state
// store every registered app version builds its Instance on top of. It
// follows the same cometbft-db-backed, mutex-serialized exclusivity
// contract as source.LocalSource, so exclusive ownership of the state
// store under a working directory is enforced the same way for both the
// local block source and every app version.
package kvstore

import (
	"encoding/json"
	"sync"

	dbm "github.com/cometbft/cometbft-db"

	"github.com/cosmos-archival/reindexer/internal/xerrors"
)

// Meta is the small header every version keeps alongside its own
// version-specific state: the height/chain-id pair Metadata() reports, and
// a ready flag a Migrate sets so the next BeginBlock at the post-upgrade
// genesis height is allowed to proceed.
type Meta struct {
	Height  int64  `json:"height"`
	ChainID string `json:"chain_id"`
	Ready   bool   `json:"ready"`
}

const metaKey = "meta"

// Store is one version's exclusively-owned state handle.
type Store struct {
	mu sync.Mutex
	db dbm.DB
}

// Open takes exclusive ownership of the store directory under name
// (distinct per version, e.g. "vseed-state", so two versions pointed at
// the same workingDir never collide on disk).
func Open(workingDir, name, backend string) (*Store, error) {
	db, err := dbm.NewDB(name, dbm.BackendType(backend), workingDir)
	if err != nil {
		return nil, xerrors.VersionRuntime.Wrap(err, "opening app version state store")
	}
	return &Store{db: db}, nil
}

// Close relinquishes the store's handle.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// GetMeta reads the store's header, or the zero Meta if none was written
// yet (an uninitialized instance).
func (s *Store) GetMeta() (Meta, bool, error) {
	var m Meta
	ok, err := s.GetJSON(metaKey, &m)
	return m, ok, err
}

// PutMeta writes the store's header.
func (s *Store) PutMeta(m Meta) error {
	return s.PutJSON(metaKey, m)
}

// GetJSON reads and unmarshals the value at key, reporting false if absent.
func (s *Store) GetJSON(key string, out interface{}) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.db.Get([]byte(key))
	if err != nil {
		return false, xerrors.VersionRuntime.Wrap(err, "reading app version state")
	}
	if data == nil {
		return false, nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, xerrors.VersionRuntime.Wrap(err, "decoding app version state")
	}
	return true, nil
}

// PutJSON marshals and writes v at key.
func (s *Store) PutJSON(key string, v interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(v)
	if err != nil {
		return xerrors.VersionRuntime.Wrap(err, "encoding app version state")
	}
	if err := s.db.Set([]byte(key), data); err != nil {
		return xerrors.VersionRuntime.Wrap(err, "writing app version state")
	}
	return nil
}

// Delete removes the value at key.
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.Delete([]byte(key)); err != nil {
		return xerrors.VersionRuntime.Wrap(err, "deleting app version state")
	}
	return nil
}
