package poller

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/dolsel/livetv/pkg/apperr"
	"github.com/dolsel/livetv/pkg/config"
	"github.com/dolsel/livetv/pkg/logger"
)

const defaultDedupSize = 1024

type Options struct {
	Interval    time.Duration
	MaxFailures int
	Backoff     time.Duration
	MaxBackoff  time.Duration
	DedupSize   int
}

// ChannelOptions returns the channel cadence from cfg.
func ChannelOptions(cfg config.PollerConfig) Options {
	return fromConfig(cfg, cfg.ChannelInterval.Duration())
}

// ThreadOptions returns the private thread cadence from cfg.
func ThreadOptions(cfg config.PollerConfig) Options {
	return fromConfig(cfg, cfg.ThreadInterval.Duration())
}

func fromConfig(cfg config.PollerConfig, interval time.Duration) Options {
	return Options{
		Interval:    interval,
		MaxFailures: cfg.MaxFailures,
		Backoff:     cfg.Backoff.Duration(),
		MaxBackoff:  cfg.MaxBackoff.Duration(),
	}
}

func (o Options) withDefaults() Options {
	if o.Interval <= 0 {
		o.Interval = 3 * time.Second
	}
	if o.MaxFailures <= 0 {
		o.MaxFailures = 5
	}
	if o.Backoff <= 0 {
		o.Backoff = 500 * time.Millisecond
	}
	if o.MaxBackoff < o.Backoff {
		o.MaxBackoff = o.Backoff
	}
	if o.DedupSize <= 0 {
		o.DedupSize = defaultDedupSize
	}
	return o
}

// Poller repeatedly fetches a window and emits items it has not seen yet.
type Poller[T any] struct {
	fetch func() ([]T, error)
	id    func(T) uint64
	opts  Options
	seen  *idSet
}

func New[T any](fetch func() ([]T, error), id func(T) uint64, opts Options) *Poller[T] {
	opts = opts.withDefaults()
	return &Poller[T]{fetch: fetch, id: id, opts: opts, seen: newIDSet(opts.DedupSize)}
}

// Run polls until ctx is done. emit sees each new item once, in window order.
// onErr receives non-retryable errors immediately and transient errors after
// MaxFailures consecutive failures; polling continues either way.
func (p *Poller[T]) Run(ctx context.Context, emit func(T), onErr func(error)) error {
	bo := p.newBackoff()
	failures := 0
	for {
		wait := p.opts.Interval
		items, err := p.fetch()
		switch {
		case err == nil:
			failures = 0
			bo.Reset()
			for _, it := range items {
				if p.seen.add(p.id(it)) {
					emit(it)
				}
			}
		case apperr.IsTransient(err):
			failures++
			wait = bo.NextBackOff()
			logger.Debug("poll_retry", "attempt", failures, "wait", wait, "error", err)
			if failures >= p.opts.MaxFailures {
				report(onErr, err)
				failures = 0
				bo.Reset()
				wait = p.opts.Interval
			}
		default:
			failures = 0
			bo.Reset()
			report(onErr, err)
		}

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
		}
	}
}

// newBackoff doubles from Backoff up to MaxBackoff without jitter and never
// gives up; giving up is counted by MaxFailures instead.
func (p *Poller[T]) newBackoff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.opts.Backoff
	bo.MaxInterval = p.opts.MaxBackoff
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = 0
	bo.Reset()
	return bo
}

func report(onErr func(error), err error) {
	if onErr != nil {
		onErr(err)
	}
}

// idSet remembers the most recent ids, evicting the oldest when full.
type idSet struct {
	ring []uint64
	next int
	full bool
	m    map[uint64]struct{}
}

func newIDSet(size int) *idSet {
	return &idSet{ring: make([]uint64, size), m: make(map[uint64]struct{}, size)}
}

// add reports whether id was new.
func (s *idSet) add(id uint64) bool {
	if _, ok := s.m[id]; ok {
		return false
	}
	if s.full {
		delete(s.m, s.ring[s.next])
	}
	s.ring[s.next] = id
	s.m[id] = struct{}{}
	s.next++
	if s.next == len(s.ring) {
		s.next = 0
		s.full = true
	}
	return true
}
