package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/dustin/go-humanize"

	"github.com/dolsel/livetv/pkg/apperr"
	"github.com/dolsel/livetv/pkg/logger"
	"github.com/dolsel/livetv/pkg/store/keys"
)

const (
	DefaultWindow = 50
	MaxWindow     = 200
)

// Options tunes Open. Zero values pick defaults.
type Options struct {
	// FS overrides the filesystem; tests pass vfs.NewMem().
	FS        vfs.FS
	CacheSize int64
	// NoSync commits batches without fsync.
	NoSync       bool
	DefaultLimit int
	MaxLimit     int
}

// DB is the message store. All methods are safe for concurrent use,
// including with Close: operations that start after Close fail Transient.
type DB struct {
	// mu is held shared by every operation and exclusively by Close.
	mu     sync.RWMutex
	closed bool

	db           *pebble.DB
	path         string
	wo           *pebble.WriteOptions
	seq          *sequencer
	defaultLimit int
	maxLimit     int
}

// Open opens (or creates) the pebble database at path and resumes the id
// sequence from the highest registered message id.
func Open(path string, opts Options) (*DB, error) {
	po := &pebble.Options{Logger: pebbleLogger{}}
	if opts.FS != nil {
		po.FS = opts.FS
	}
	if opts.CacheSize > 0 {
		c := pebble.NewCache(opts.CacheSize)
		defer c.Unref()
		po.Cache = c
	}

	logger.Info("opening_pebble_db", "path", path, "cache", humanize.IBytes(uint64(opts.CacheSize)))
	pdb, err := pebble.Open(path, po)
	if err != nil {
		logger.Error("pebble_open_failed", "path", path, "error", err)
		return nil, fmt.Errorf("open pebble %s: %w", path, err)
	}

	s := &DB{
		db:           pdb,
		path:         path,
		wo:           pebble.Sync,
		defaultLimit: DefaultWindow,
		maxLimit:     MaxWindow,
	}
	if opts.NoSync {
		s.wo = pebble.NoSync
	}
	if opts.DefaultLimit > 0 {
		s.defaultLimit = opts.DefaultLimit
	}
	if opts.MaxLimit > 0 {
		s.maxLimit = opts.MaxLimit
	}
	if s.defaultLimit > s.maxLimit {
		s.defaultLimit = s.maxLimit
	}

	ts, id, err := s.lastStamp()
	if err != nil {
		_ = pdb.Close()
		return nil, err
	}
	s.seq = newSequencer(ts, id)
	logger.Info("pebble_opened", "path", path, "last_id", id)
	return s, nil
}

// Close waits for in-flight operations to finish, then closes pebble.
// Calling it again is a no-op.
func (s *DB) Close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.db.Close(); err != nil {
		return err
	}
	logger.Info("pebble_closed", "path", s.path)
	return nil
}

// Ready reports whether the store is open.
func (s *DB) Ready() bool {
	if s == nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.closed
}

var errClosed = errors.New("store closed")

// acquire holds the store open for one operation. The caller must invoke
// the returned release exactly once, and must not call another exported
// method before releasing.
func (s *DB) acquire(op string) (func(), error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, apperr.Transient(errClosed, op)
	}
	return s.mu.RUnlock, nil
}

func (s *DB) Path() string { return s.path }

// Checkpoint writes a consistent copy of the database into dir, which must not exist.
func (s *DB) Checkpoint(dir string) error {
	release, err := s.acquire("checkpoint")
	if err != nil {
		return err
	}
	defer release()
	if err := s.db.Checkpoint(dir, pebble.WithFlushedWAL()); err != nil {
		return apperr.Transient(err, "checkpoint")
	}
	return nil
}

// Metrics exposes pebble internals for gauges. It returns nil once closed.
func (s *DB) Metrics() *pebble.Metrics {
	release, err := s.acquire("metrics")
	if err != nil {
		return nil
	}
	defer release()
	return s.db.Metrics()
}

// lastStamp reads the highest registered id and the timestamp of its message.
func (s *DB) lastStamp() (int64, uint64, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(keys.MessageIDPrefix),
		UpperBound: keys.PrefixUpperBound(keys.MessageIDPrefix),
	})
	if err != nil {
		return 0, 0, err
	}
	defer iter.Close()
	if !iter.Last() {
		return 0, 0, iter.Error()
	}
	primary := string(iter.Value())
	ts, id, err := keys.ParseMessageStamp(primary)
	if err != nil {
		return 0, 0, fmt.Errorf("recover sequence: %w", err)
	}
	return ts, id, nil
}

// getRaw, getJSON, commit and prefixIter expect the caller to hold acquire.
func (s *DB) getRaw(key string) ([]byte, error) {
	v, closer, err := s.db.Get([]byte(key))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, err
		}
		return nil, apperr.Transient(err, "get "+key)
	}
	out := append([]byte(nil), v...)
	_ = closer.Close()
	return out, nil
}

func (s *DB) getJSON(key string, v any) error {
	b, err := s.getRaw(key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (s *DB) commit(b *pebble.Batch, op string) error {
	if err := b.Commit(s.wo); err != nil {
		logger.Error("batch_commit_failed", "op", op, "error", err)
		return apperr.Transient(err, op)
	}
	return nil
}

func (s *DB) prefixIter(prefix string) (*pebble.Iterator, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(prefix),
		UpperBound: keys.PrefixUpperBound(prefix),
	})
	if err != nil {
		return nil, apperr.Transient(err, "iterate "+prefix)
	}
	return iter, nil
}

// clampLimit applies the window default and cap.
func (s *DB) clampLimit(limit int) int {
	if limit <= 0 {
		return s.defaultLimit
	}
	if limit > s.maxLimit {
		return s.maxLimit
	}
	return limit
}

func marshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		// models are plain structs; a failure here is a programming error
		panic(fmt.Sprintf("store: marshal %T: %v", v, err))
	}
	return b
}

// pebbleLogger routes pebble's own logging through the slog logger.
type pebbleLogger struct{}

func (pebbleLogger) Infof(format string, args ...interface{}) {
	logger.Debug("pebble", "msg", fmt.Sprintf(format, args...))
}

func (pebbleLogger) Errorf(format string, args ...interface{}) {
	logger.Error("pebble", "msg", fmt.Sprintf(format, args...))
}

func (pebbleLogger) Fatalf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	logger.Error("pebble_fatal", "msg", msg)
	panic(msg)
}
