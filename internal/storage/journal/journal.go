package journal

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/yndnr/framesync-go/internal/core/domain"
	"github.com/yndnr/framesync-go/internal/telemetry/metric"
)

var (
	ErrNotFound = errors.New("journal: round not found")
	ErrClosed   = errors.New("journal: closed")
)

var keyPrefix = []byte("r/")

// pruneEvery is how many appends pass between prune sweeps.
const pruneEvery = 64

// Entry is one merged round.
type Entry struct {
	Round    uint64         `json:"round" yaml:"round"`
	Digest   uint64         `json:"digest" yaml:"digest"`
	At       time.Time      `json:"at" yaml:"at"`
	Nodes    []string       `json:"nodes" yaml:"nodes"`
	Missing  []string       `json:"missing,omitempty" yaml:"missing,omitempty"`
	TimedOut bool           `json:"timed_out" yaml:"timed_out"`
	Events   []domain.Event `json:"-" yaml:"-"`
}

// Options configures a Journal.
type Options struct {
	Dir string

	// RetainRounds bounds the number of kept rounds. Zero keeps all.
	RetainRounds uint64

	// ReadOnly opens an existing journal for inspection.
	ReadOnly bool

	// GCInterval is the value log GC period. Zero disables GC.
	GCInterval time.Duration

	SyncWrites bool
}

// Journal is a Badger-backed round journal.
type Journal struct {
	db     *badger.DB
	opts   Options
	logger *slog.Logger

	mu      sync.Mutex
	appends uint64
	closed  atomic.Bool

	appended prometheus.Counter
	pruned   prometheus.Counter

	stopCh chan struct{}
	doneCh chan struct{}
}

// Open opens or creates the journal in opts.Dir.
func Open(opts Options, logger *slog.Logger) (*Journal, error) {
	if opts.Dir == "" {
		return nil, fmt.Errorf("journal: dir is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "journal")

	bopts := badger.DefaultOptions(opts.Dir)
	bopts.Logger = &badgerLogger{logger: logger}
	bopts.ReadOnly = opts.ReadOnly
	bopts.SyncWrites = opts.SyncWrites
	bopts.ValueLogFileSize = 64 << 20
	bopts.NumVersionsToKeep = 1

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", opts.Dir, err)
	}

	j := &Journal{
		db:     db,
		opts:   opts,
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}

	if opts.GCInterval > 0 && !opts.ReadOnly {
		go j.gcLoop(opts.GCInterval)
	} else {
		close(j.doneCh)
	}

	logger.Info("journal opened",
		"dir", opts.Dir,
		"retain_rounds", opts.RetainRounds,
		"read_only", opts.ReadOnly)
	return j, nil
}

// RegisterMetrics registers journal counters with reg.
func (j *Journal) RegisterMetrics(reg prometheus.Registerer) *Journal {
	f := promauto.With(reg)
	j.appended = f.NewCounter(prometheus.CounterOpts{
		Namespace: metric.Namespace,
		Subsystem: "journal",
		Name:      "appends_total",
		Help:      "Rounds written to the journal.",
	})
	j.pruned = f.NewCounter(prometheus.CounterOpts{
		Namespace: metric.Namespace,
		Subsystem: "journal",
		Name:      "pruned_total",
		Help:      "Rounds removed by retention.",
	})
	return j
}

// Append writes e. Rounds are expected in increasing order.
func (j *Journal) Append(e Entry) error {
	if j.closed.Load() {
		return ErrClosed
	}
	value, err := encodeEntry(e)
	if err != nil {
		return err
	}

	if err := j.db.Update(func(txn *badger.Txn) error {
		return txn.Set(roundKey(e.Round), value)
	}); err != nil {
		return fmt.Errorf("journal: append round %d: %w", e.Round, err)
	}
	if j.appended != nil {
		j.appended.Inc()
	}

	j.mu.Lock()
	j.appends++
	sweep := j.appends%pruneEvery == 0
	j.mu.Unlock()

	if sweep && j.opts.RetainRounds > 0 && e.Round >= j.opts.RetainRounds {
		if _, err := j.Prune(e.Round - j.opts.RetainRounds + 1); err != nil {
			j.logger.Warn("journal prune failed", "error", err)
		}
	}
	return nil
}

// Get returns the entry for round.
func (j *Journal) Get(round uint64) (Entry, error) {
	var e Entry
	err := j.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(roundKey(round))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrNotFound
			}
			return err
		}
		return item.Value(func(v []byte) error {
			e, err = decodeEntry(v)
			return err
		})
	})
	return e, err
}

// Range returns up to limit entries starting at round from, in order.
// A non-positive limit returns all.
func (j *Journal) Range(from uint64, limit int) ([]Entry, error) {
	var out []Entry
	err := j.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = keyPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(roundKey(from)); it.Valid(); it.Next() {
			if limit > 0 && len(out) >= limit {
				break
			}
			err := it.Item().Value(func(v []byte) error {
				e, err := decodeEntry(v)
				if err != nil {
					return err
				}
				out = append(out, e)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return out, err
}

// Last returns the most recent entry.
func (j *Journal) Last() (Entry, error) {
	var e Entry
	err := j.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = keyPrefix
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		it.Seek(roundKey(^uint64(0)))
		if !it.Valid() {
			return ErrNotFound
		}
		return it.Item().Value(func(v []byte) error {
			var err error
			e, err = decodeEntry(v)
			return err
		})
	})
	return e, err
}

// Prune deletes entries before round and returns how many were removed.
func (j *Journal) Prune(before uint64) (int, error) {
	var keys [][]byte
	err := j.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = keyPrefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().KeyCopy(nil)
			if keyRound(key) >= before {
				break
			}
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil || len(keys) == 0 {
		return 0, err
	}

	wb := j.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range keys {
		if err := wb.Delete(k); err != nil {
			return 0, fmt.Errorf("journal: prune: %w", err)
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, fmt.Errorf("journal: prune: %w", err)
	}

	if j.pruned != nil {
		j.pruned.Add(float64(len(keys)))
	}
	j.logger.Debug("journal pruned", "before_round", before, "deleted", len(keys))
	return len(keys), nil
}

// Close stops GC and closes the database.
func (j *Journal) Close() error {
	if !j.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(j.stopCh)
	<-j.doneCh

	if err := j.db.Close(); err != nil {
		return fmt.Errorf("journal: close: %w", err)
	}
	return nil
}

func (j *Journal) gcLoop(interval time.Duration) {
	defer close(j.doneCh)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			for {
				if err := j.db.RunValueLogGC(0.5); err != nil {
					if !errors.Is(err, badger.ErrNoRewrite) {
						j.logger.Warn("journal gc failed", "error", err)
					}
					break
				}
			}
		case <-j.stopCh:
			return
		}
	}
}

func roundKey(round uint64) []byte {
	k := make([]byte, len(keyPrefix)+8)
	copy(k, keyPrefix)
	binary.BigEndian.PutUint64(k[len(keyPrefix):], round)
	return k
}

func keyRound(key []byte) uint64 {
	if len(key) != len(keyPrefix)+8 {
		return 0
	}
	return binary.BigEndian.Uint64(key[len(keyPrefix):])
}

// badgerLogger adapts slog.Logger to Badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
