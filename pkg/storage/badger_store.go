package storage

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/bits-and-blooms/bloom/v3"
	badger "github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"sitemap-monitor/pkg/log"
	"sitemap-monitor/pkg/utils"
)

const (
	visitedDirPattern  = "visited-*" // Per-run directory inside state_dir
	bloomCapacity      = 100_000
	bloomFalsePositive = 0.01
	maxConflictRetries = 10
)

// BadgerVisitedSet keeps the visited set on disk for sitemap trees too large to hold in memory.
// A bloom filter in front of Badger answers "definitely new"; only possible repeats are
// looked up. The database directory is private to the run and removed on Close.
type BadgerVisitedSet struct {
	db     *badger.DB
	dir    string
	log    *logrus.Entry
	filter *bloom.BloomFilter
	mu     sync.Mutex // Serializes MarkVisited so the filter never lags the database
	count  atomic.Int64
}

// NewBadgerVisitedSet opens a fresh Badger database in a temporary directory under stateDir
func NewBadgerVisitedSet(stateDir string, logger *logrus.Entry) (*BadgerVisitedSet, error) {
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return nil, fmt.Errorf("%w: cannot create state directory %s: %w", utils.ErrFilesystem, stateDir, err)
	}
	dir, err := os.MkdirTemp(stateDir, visitedDirPattern)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot create visited directory in %s: %w", utils.ErrFilesystem, stateDir, err)
	}

	badgerLogger := log.NewBadgerLogrusAdapter(logger.WithField("component", "badgerdb"))
	opts := badger.DefaultOptions(dir).
		WithLogger(badgerLogger).
		WithNumVersionsToKeep(1)

	db, err := badger.Open(opts)
	if err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("%w: failed to open badger database at %s: %w", utils.ErrDatabase, dir, err)
	}

	logger.WithField("path", dir).Debug("Visited set database opened")
	return &BadgerVisitedSet{
		db:     db,
		dir:    dir,
		log:    logger,
		filter: bloom.NewWithEstimates(bloomCapacity, bloomFalsePositive),
	}, nil
}

// dbUpdate wraps db.Update with a retry loop for BadgerDB transaction conflicts.
func (s *BadgerVisitedSet) dbUpdate(fn func(txn *badger.Txn) error) error {
	for i := range maxConflictRetries {
		err := s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		s.log.Debugf("BadgerDB transaction conflict (attempt %d/%d), retrying", i+1, maxConflictRetries)
	}
	return fmt.Errorf("%w: transaction conflict not resolved after %d retries", utils.ErrDatabase, maxConflictRetries)
}

// MarkVisited implements VisitedSet
func (s *BadgerVisitedSet) MarkVisited(normalizedURL string) (bool, error) {
	key := utils.URLKey(normalizedURL)

	s.mu.Lock()
	defer s.mu.Unlock()
	maybeSeen := s.filter.Test(key)

	added := false
	err := s.dbUpdate(func(txn *badger.Txn) error {
		added = false
		if maybeSeen {
			_, errGet := txn.Get(key)
			if errGet == nil {
				return nil
			}
			if !errors.Is(errGet, badger.ErrKeyNotFound) {
				return errGet
			}
		}
		if errSet := txn.SetEntry(badger.NewEntry(key, []byte{})); errSet != nil {
			return errSet
		}
		added = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("%w: mark visited %s: %w", utils.ErrDatabase, normalizedURL, err)
	}

	if added {
		s.filter.Add(key)
		s.count.Add(1)
	}
	return added, nil
}

// Len implements VisitedSet
func (s *BadgerVisitedSet) Len() int {
	return int(s.count.Load())
}

// Close closes the database and removes its directory
func (s *BadgerVisitedSet) Close() error {
	var closeErr error
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			closeErr = fmt.Errorf("%w: close visited database: %w", utils.ErrDatabase, err)
		}
		s.db = nil
	}
	if err := os.RemoveAll(s.dir); err != nil && closeErr == nil {
		closeErr = fmt.Errorf("%w: remove visited directory %s: %w", utils.ErrFilesystem, s.dir, err)
	}
	return closeErr
}
