// Package snapshot takes pebble checkpoints on a cron schedule and keeps
// the newest few.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/adhocore/gronx"
	"github.com/dustin/go-humanize"

	"github.com/dolsel/livetv/pkg/apperr"
	"github.com/dolsel/livetv/pkg/config"
	"github.com/dolsel/livetv/pkg/logger"
	"github.com/dolsel/livetv/pkg/telemetry"
	"github.com/dolsel/livetv/pkg/timeutil"
)

const dirPrefix = "snap-"

// Checkpointer writes a consistent copy of the database into a new directory.
type Checkpointer interface {
	Checkpoint(dir string) error
}

type Manager struct {
	cfg config.SnapshotConfig
	db  Checkpointer

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func New(cfg config.SnapshotConfig, db Checkpointer) *Manager {
	return &Manager{cfg: cfg, db: db}
}

// Start runs the schedule until ctx is done. It returns immediately when
// snapshots are disabled.
func (m *Manager) Start(ctx context.Context) {
	if !m.cfg.Enabled {
		logger.Info("snapshot_disabled")
		return
	}
	logger.Info("snapshot_enabled", "cron", m.cfg.Cron, "dir", m.cfg.Dir, "keep", m.cfg.Keep)
	ctx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	m.cancel = cancel
	m.mu.Unlock()
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.scheduleLoop(ctx)
	}()
}

// Stop ends the schedule and waits for a checkpoint in progress to finish.
// It is safe to call without Start and more than once.
func (m *Manager) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
}

func (m *Manager) scheduleLoop(ctx context.Context) {
	for {
		next, err := gronx.NextTickAfter(m.cfg.Cron, timeutil.Now(), false)
		if err != nil {
			logger.Error("snapshot_nexttick_failed", "cron", m.cfg.Cron, "error", err)
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		wait := time.Until(next)
		if wait < time.Second {
			wait = time.Second
		}
		select {
		case <-time.After(wait):
			if _, err := m.TakeSnapshot(); err != nil {
				logger.Error("snapshot_run_error", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

// ErrBusy is returned when a snapshot is already in progress.
var ErrBusy = errors.New("snapshot already running")

// TakeSnapshot writes a checkpoint now and prunes old ones. It returns the
// new snapshot directory.
func (m *Manager) TakeSnapshot() (string, error) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return "", apperr.Transient(ErrBusy, "snapshot")
	}
	m.running = true
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.running = false
		m.mu.Unlock()
	}()

	if err := os.MkdirAll(m.cfg.Dir, 0o755); err != nil {
		telemetry.SnapshotsTaken.WithLabelValues("error").Inc()
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}
	dest := filepath.Join(m.cfg.Dir, dirPrefix+timeutil.Now().Format("20060102T150405.000000000Z"))
	start := time.Now()
	if err := m.db.Checkpoint(dest); err != nil {
		telemetry.SnapshotsTaken.WithLabelValues("error").Inc()
		return "", err
	}
	telemetry.SnapshotsTaken.WithLabelValues("ok").Inc()
	logger.Info("snapshot_written", "path", dest, "size", humanize.IBytes(dirSize(dest)), "took", time.Since(start))

	removed, err := m.prune()
	if err != nil {
		logger.Warn("snapshot_prune_failed", "error", err)
	} else if removed > 0 {
		logger.Info("snapshot_pruned", "removed", removed)
	}
	return dest, nil
}

// List returns snapshot directories, newest first.
func (m *Manager) List() ([]string, error) {
	entries, err := os.ReadDir(m.cfg.Dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), dirPrefix) {
			out = append(out, e.Name())
		}
	}
	// names embed a sortable UTC timestamp
	sort.Sort(sort.Reverse(sort.StringSlice(out)))
	for i := range out {
		out[i] = filepath.Join(m.cfg.Dir, out[i])
	}
	return out, nil
}

func (m *Manager) prune() (int, error) {
	if m.cfg.Keep <= 0 {
		return 0, nil
	}
	snaps, err := m.List()
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, dir := range snaps[min(m.cfg.Keep, len(snaps)):] {
		if err := os.RemoveAll(dir); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

func dirSize(root string) uint64 {
	var total uint64
	_ = filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			total += uint64(info.Size())
		}
		return nil
	})
	return total
}
