package history

import (
	"fmt"
	"os"
	"strconv"

	"github.com/dgraph-io/badger"
	cm "github.com/mosaicnetworks/spantree/src/common"
	"github.com/sirupsen/logrus"
)

const (
	roundPrefix  = "round"
	lastRoundKey = "last_round"
)

// BadgerStore persists rounds to a Badger database and keeps the most recent
// ones in an InmemStore for fast access.
type BadgerStore struct {
	inmemStore *InmemStore
	db         *badger.DB
	path       string
	lastRound  int
}

// NewBadgerStore opens an existing database or creates a new one if nothing is
// found in path.
func NewBadgerStore(cacheSize int, path string, logger *logrus.Entry) (*BadgerStore, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, err
	}

	opts := badger.DefaultOptions(path).
		WithSyncWrites(false).
		WithTruncate(true)

	if logger != nil {
		opts = opts.WithLogger(logger.WithField("ns", "badger"))
	}

	handle, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	store := &BadgerStore{
		inmemStore: NewInmemStore(cacheSize),
		db:         handle,
		path:       path,
		lastRound:  -1,
	}

	last, err := store.dbGetLastRound()
	if err != nil {
		handle.Close()
		return nil, err
	}
	store.lastRound = last

	return store, nil
}

/*******************************************************************************
Keys
*******************************************************************************/

func roundKey(index int) []byte {
	return []byte(fmt.Sprintf("%s_%09d", roundPrefix, index))
}

/*******************************************************************************
Implement the Store interface
*******************************************************************************/

// CacheSize implements the Store interface.
func (s *BadgerStore) CacheSize() int {
	return s.inmemStore.CacheSize()
}

// SetRound implements the Store interface. A database previously written by
// an earlier run may already hold rounds; those are overwritten.
func (s *BadgerStore) SetRound(round *Round) error {
	if err := s.dbSetRound(round); err != nil {
		return err
	}
	if round.Index > s.lastRound {
		s.lastRound = round.Index
	}

	if err := s.inmemStore.SetRound(round); err != nil {
		// rounds rolled out of the cache are still in the database
		if !cm.IsStore(err, cm.TooLate) {
			return err
		}
	}
	return nil
}

// GetRound implements the Store interface.
func (s *BadgerStore) GetRound(index int) (*Round, error) {
	res, err := s.inmemStore.GetRound(index)
	if err == nil {
		return res, nil
	}
	return s.dbGetRound(index)
}

// LastRound implements the Store interface.
func (s *BadgerStore) LastRound() int {
	return s.lastRound
}

// Close implements the Store interface.
func (s *BadgerStore) Close() error {
	if err := s.inmemStore.Close(); err != nil {
		return err
	}
	return s.db.Close()
}

/*******************************************************************************
DB Methods
*******************************************************************************/

func (s *BadgerStore) dbGetRound(index int) (*Round, error) {
	var roundBytes []byte
	key := roundKey(index)
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		roundBytes, err = item.ValueCopy(nil)
		return err
	})

	if err != nil {
		if isDBKeyNotFound(err) {
			return nil, cm.NewStoreErr("RoundDB", cm.KeyNotFound, strconv.Itoa(index))
		}
		return nil, err
	}

	round := new(Round)
	if err := round.Unmarshal(roundBytes); err != nil {
		return nil, err
	}

	return round, nil
}

func (s *BadgerStore) dbSetRound(round *Round) error {
	val, err := round.Marshal()
	if err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		//insert [round_index] => [round bytes]
		if err := txn.Set(roundKey(round.Index), val); err != nil {
			return err
		}
		if round.Index < s.lastRound {
			return nil
		}
		return txn.Set([]byte(lastRoundKey), []byte(strconv.Itoa(round.Index)))
	})
}

func (s *BadgerStore) dbGetLastRound() (int, error) {
	last := -1
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(lastRoundKey))
		if err != nil {
			return err
		}
		val, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		last, err = strconv.Atoi(string(val))
		return err
	})

	if err != nil && isDBKeyNotFound(err) {
		return -1, nil
	}

	return last, err
}

func isDBKeyNotFound(err error) bool {
	return err == badger.ErrKeyNotFound
}
