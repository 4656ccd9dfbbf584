package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"listing-ingest/pkg/log"
	"listing-ingest/pkg/models"
	"listing-ingest/pkg/utils"
)

const (
	assetKeyPrefix = "asset:"   // prefix for media URL keys
	assetDBDir     = "asset_db" // subdirectory within stateDir
)

// BadgerAssetStore implements AssetStore on BadgerDB.
type BadgerAssetStore struct {
	db       *badger.DB
	log      *logrus.Entry
	keyCount atomic.Int64
}

// NewBadgerAssetStore opens (or creates) the asset index under stateDir.
func NewBadgerAssetStore(stateDir string, logger *logrus.Entry) (*BadgerAssetStore, error) {
	dbPath := filepath.Join(stateDir, assetDBDir)
	if err := os.MkdirAll(dbPath, 0o755); err != nil {
		return nil, fmt.Errorf("%w: cannot create state directory %s: %w", utils.ErrFilesystem, dbPath, err)
	}

	logger.Infof("Opening asset index at: %s", dbPath)

	badgerLogger := log.NewBadgerLogrusAdapter(logger.WithField("component", "badgerdb"))
	opts := badger.DefaultOptions(dbPath).
		WithLogger(badgerLogger).
		WithNumVersionsToKeep(1)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: opening badger database at %s: %w", utils.ErrDatabase, dbPath, err)
	}

	store := &BadgerAssetStore{db: db, log: logger}
	if count, err := store.countKeys(); err != nil {
		logger.Warnf("Failed counting existing asset keys: %v", err)
	} else {
		store.keyCount.Store(int64(count))
	}
	return store, nil
}

func (s *BadgerAssetStore) countKeys() (int, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

const maxConflictRetries = 10

// dbUpdate wraps db.Update with a retry loop for transaction conflicts.
// Concurrent MVCC transactions on overlapping keys can return
// badger.ErrConflict; these resolve in microseconds.
func (s *BadgerAssetStore) dbUpdate(fn func(txn *badger.Txn) error) error {
	for i := 0; i < maxConflictRetries; i++ {
		err := s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		s.log.Debugf("BadgerDB transaction conflict (attempt %d/%d), retrying", i+1, maxConflictRetries)
	}
	return fmt.Errorf("%w: transaction conflict not resolved after %d retries", utils.ErrDatabase, maxConflictRetries)
}

// CheckAsset implements AssetStore.
func (s *BadgerAssetStore) CheckAsset(mediaURL string) (models.AssetStatus, *models.AssetDBEntry, error) {
	status := models.AssetStatusNotFound
	var entry *models.AssetDBEntry
	key := []byte(assetKeyPrefix + mediaURL)

	errView := s.db.View(func(txn *badger.Txn) error {
		item, errGet := txn.Get(key)
		if errors.Is(errGet, badger.ErrKeyNotFound) {
			return nil
		}
		if errGet != nil {
			return fmt.Errorf("%w: getting asset key '%s': %w", utils.ErrDatabase, string(key), errGet)
		}
		return item.Value(func(val []byte) error {
			var decoded models.AssetDBEntry
			if errJSON := json.Unmarshal(val, &decoded); errJSON != nil {
				s.log.Warnf("Failed to unmarshal AssetDBEntry for key '%s': %v", string(key), errJSON)
				return nil // treat as not found, a rerun will overwrite it
			}
			entry = &decoded
			status = decoded.Status
			return nil
		})
	})
	if errView != nil {
		return models.AssetStatusDBError, nil, errView
	}
	return status, entry, nil
}

// RecordAsset implements AssetStore.
func (s *BadgerAssetStore) RecordAsset(mediaURL string, entry models.AssetDBEntry) error {
	key := []byte(assetKeyPrefix + mediaURL)

	entryBytes, errJSON := json.Marshal(entry)
	if errJSON != nil {
		return fmt.Errorf("%w: marshaling AssetDBEntry for key '%s': %w", utils.ErrDatabase, string(key), errJSON)
	}

	isNew := false
	err := s.dbUpdate(func(txn *badger.Txn) error {
		_, errGet := txn.Get(key)
		if errors.Is(errGet, badger.ErrKeyNotFound) {
			isNew = true
		}
		return txn.SetEntry(badger.NewEntry(key, entryBytes))
	})
	if err != nil {
		return fmt.Errorf("%w: setting asset record for key '%s': %w", utils.ErrDatabase, string(key), err)
	}
	if isNew {
		s.keyCount.Add(1)
	}
	s.log.Debugf("Recorded asset outcome for key '%s': %s", string(key), entry.Status)
	return nil
}

// Count implements AssetStore.
func (s *BadgerAssetStore) Count() (int, error) {
	return int(s.keyCount.Load()), nil
}

// RunGC runs BadgerDB's value log garbage collection periodically.
func (s *BadgerAssetStore) RunGC(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if s.db == nil || s.db.IsClosed() {
				continue
			}
			// Loop until the GC reports nothing left to rewrite.
			for {
				if err := s.db.RunValueLogGC(0.5); err != nil {
					if !errors.Is(err, badger.ErrNoRewrite) {
						s.log.Warnf("BadgerDB GC error: %v", err)
					}
					break
				}
			}
		case <-ctx.Done():
			s.log.Debugf("Stopping asset index GC: %v", ctx.Err())
			return
		}
	}
}

// Close implements AssetStore.
func (s *BadgerAssetStore) Close() error {
	if s.db == nil || s.db.IsClosed() {
		return nil
	}
	s.log.Info("Closing asset index")
	return s.db.Close()
}
