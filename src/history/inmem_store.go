package history

import (
	"strconv"

	cm "github.com/mosaicnetworks/spantree/src/common"
)

// InmemStore implements the Store interface with an in-memory rolling window.
// Old rounds are evicted once the window is full.
type InmemStore struct {
	cacheSize  int
	roundCache *cm.RollingIndex
}

// NewInmemStore ...
func NewInmemStore(cacheSize int) *InmemStore {
	return &InmemStore{
		cacheSize:  cacheSize,
		roundCache: cm.NewRollingIndex("RoundCache", cacheSize),
	}
}

// CacheSize implements the Store interface.
func (s *InmemStore) CacheSize() int {
	return s.cacheSize
}

// SetRound implements the Store interface. Rounds that were skipped since the
// last recorded one are left as holes which GetRound reports as not found.
func (s *InmemStore) SetRound(round *Round) error {
	last := s.roundCache.LastIndex()
	if last >= 0 {
		for i := last + 1; i < round.Index; i++ {
			if err := s.roundCache.Set(nil, i); err != nil {
				return err
			}
		}
	}
	return s.roundCache.Set(round, round.Index)
}

// GetRound implements the Store interface.
func (s *InmemStore) GetRound(index int) (*Round, error) {
	if s.roundCache.LastIndex() < 0 {
		return nil, cm.NewStoreErr("RoundCache", cm.Empty, strconv.Itoa(index))
	}
	res, err := s.roundCache.GetItem(index)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, cm.NewStoreErr("RoundCache", cm.KeyNotFound, strconv.Itoa(index))
	}
	return res.(*Round), nil
}

// LastRound implements the Store interface.
func (s *InmemStore) LastRound() int {
	return s.roundCache.LastIndex()
}

// Close implements the Store interface.
func (s *InmemStore) Close() error {
	return nil
}
