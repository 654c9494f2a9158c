package light

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ledgerlight/ledgerlight/light/store"
	"github.com/ledgerlight/ledgerlight/types"
)

// trustedStateStore holds the trusted state in memory and in storage. Its
// only mutation is ratchet, which never moves the state backwards.
type trustedStateStore struct {
	mtx     sync.RWMutex
	state   types.TrustedState
	storage store.Storage
}

// loadTrustedStateStore restores the state persisted in storage.
func loadTrustedStateStore(storage store.Storage) (*trustedStateStore, error) {
	state, err := loadTrustedState(storage)
	if err != nil {
		return nil, err
	}
	return &trustedStateStore{state: state, storage: storage}, nil
}

// newTrustedStateStore starts from bootstrap, unless storage holds a state
// at least as new. Nothing is written until the first ratchet.
func newTrustedStateStore(bootstrap types.TrustedState, storage store.Storage) (*trustedStateStore, error) {
	s := &trustedStateStore{state: bootstrap, storage: storage}
	stored, err := loadTrustedState(storage)
	switch {
	case errors.Is(err, store.ErrKeyNotFound):
	case err != nil:
		return nil, err
	case !bootstrap.IsNewerThan(stored):
		s.state = stored
	}
	return s, nil
}

func loadTrustedState(storage store.Storage) (types.TrustedState, error) {
	bz, err := storage.Get(store.TrustedStateKey)
	if err != nil {
		return types.TrustedState{}, fmt.Errorf("load trusted state: %w", err)
	}
	state, err := types.UnmarshalTrustedState(bz)
	if err != nil {
		return types.TrustedState{}, ErrDecode{Method: "stored trusted state", Reason: err}
	}
	return state, nil
}

func (s *trustedStateStore) trustedState() types.TrustedState {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return s.state
}

func (s *trustedStateStore) version() uint64 {
	return s.trustedState().Version()
}

func (s *trustedStateStore) waypoint() types.Waypoint {
	return s.trustedState().Waypoint()
}

// ratchet replaces the state with next if next is newer, persisting it
// first. It reports whether the state changed. A failed write leaves the
// state untouched.
func (s *trustedStateStore) ratchet(next types.TrustedState) (bool, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if !next.IsNewerThan(s.state) {
		return false, nil
	}
	if err := s.storage.Set(store.TrustedStateKey, next.Marshal()); err != nil {
		return false, fmt.Errorf("persist trusted state: %w", err)
	}
	s.state = next
	return true, nil
}
