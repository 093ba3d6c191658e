package store

import (
	"sync/atomic"
	"time"
)

type stamp struct {
	ts int64
	id uint64
}

// sequencer hands out (created_at, id) pairs that are both non-decreasing
// in allocation order. created_at never moves backwards even when the
// wall clock does.
type sequencer struct {
	cur atomic.Pointer[stamp]
}

func newSequencer(ts int64, id uint64) *sequencer {
	s := &sequencer{}
	s.cur.Store(&stamp{ts: ts, id: id})
	return s
}

func (s *sequencer) next(now time.Time) (time.Time, uint64) {
	n := now.UTC().UnixNano()
	for {
		cur := s.cur.Load()
		nxt := &stamp{ts: n, id: cur.id + 1}
		if cur.ts > n {
			nxt.ts = cur.ts
		}
		if s.cur.CompareAndSwap(cur, nxt) {
			return time.Unix(0, nxt.ts).UTC(), nxt.id
		}
	}
}

func (s *sequencer) last() uint64 {
	return s.cur.Load().id
}
