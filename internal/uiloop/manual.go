package uiloop

import (
	"sort"
	"time"
)

// Manual is a deterministic scheduler. Callbacks run on the goroutine that
// calls Drain, Frame, Advance or Settle.
type Manual struct {
	now    time.Duration
	seq    uint64
	posted []func()
	frames []*entry
	timers []*entry
}

type entry struct {
	due       time.Duration
	seq       uint64
	fn        func()
	cancelled bool
}

// settleLimit bounds Settle against callbacks that keep rescheduling themselves.
const settleLimit = 10000

// NewManual returns a manual loop at virtual time zero.
func NewManual() *Manual {
	return &Manual{}
}

// Now returns the virtual time elapsed since creation.
func (m *Manual) Now() time.Duration {
	return m.now
}

// Post queues fn to run on the next Drain.
func (m *Manual) Post(fn func()) {
	if fn == nil {
		return
	}
	m.posted = append(m.posted, fn)
}

// AfterFunc schedules fn to run once virtual time has advanced by d.
func (m *Manual) AfterFunc(d time.Duration, fn func()) func() {
	if d < 0 {
		d = 0
	}
	e := m.newEntry(m.now+d, fn)
	m.timers = append(m.timers, e)
	return func() { e.cancelled = true }
}

// NextFrame schedules fn for the next Frame call.
func (m *Manual) NextFrame(fn func()) func() {
	e := m.newEntry(m.now, fn)
	m.frames = append(m.frames, e)
	return func() { e.cancelled = true }
}

// Drain runs posted tasks, including ones they post, until none remain.
func (m *Manual) Drain() {
	for len(m.posted) > 0 {
		fn := m.posted[0]
		m.posted = m.posted[1:]
		fn()
	}
}

// Frame runs the frame callbacks queued before the call, then drains posted tasks.
// Callbacks that request another frame wait for the next Frame call.
func (m *Manual) Frame() {
	frames := m.frames
	m.frames = nil
	for _, e := range frames {
		if e.cancelled {
			continue
		}
		e.cancelled = true
		e.fn()
		m.Drain()
	}
	m.Drain()
}

// Advance moves virtual time forward by d, firing due timers in order.
func (m *Manual) Advance(d time.Duration) {
	if d < 0 {
		d = 0
	}
	target := m.now + d
	m.Drain()
	for {
		next := m.nextTimer(target)
		if next == nil {
			break
		}
		if next.due > m.now {
			m.now = next.due
		}
		next.cancelled = true
		next.fn()
		m.Drain()
	}
	m.now = target
	m.compact()
}

// Settle runs posted tasks, frames and timers due at the current time until
// nothing is left to do without advancing the clock.
func (m *Manual) Settle() {
	for i := 0; i < settleLimit; i++ {
		progressed := false
		if len(m.posted) > 0 {
			m.Drain()
			progressed = true
		}
		if m.liveFrames() > 0 {
			m.Frame()
			progressed = true
		}
		if m.nextTimer(m.now) != nil {
			m.Advance(0)
			progressed = true
		}
		if !progressed {
			return
		}
	}
}

// Pending reports the number of queued tasks, frames and live timers.
func (m *Manual) Pending() int {
	count := len(m.posted) + m.liveFrames()
	for _, e := range m.timers {
		if !e.cancelled {
			count++
		}
	}
	return count
}

func (m *Manual) newEntry(due time.Duration, fn func()) *entry {
	m.seq++
	if fn == nil {
		fn = func() {}
	}
	return &entry{due: due, seq: m.seq, fn: fn}
}

func (m *Manual) nextTimer(limit time.Duration) *entry {
	var best *entry
	for _, e := range m.timers {
		if e.cancelled || e.due > limit {
			continue
		}
		if best == nil || e.due < best.due || (e.due == best.due && e.seq < best.seq) {
			best = e
		}
	}
	return best
}

func (m *Manual) liveFrames() int {
	count := 0
	for _, e := range m.frames {
		if !e.cancelled {
			count++
		}
	}
	return count
}

func (m *Manual) compact() {
	live := m.timers[:0]
	for _, e := range m.timers {
		if !e.cancelled {
			live = append(live, e)
		}
	}
	m.timers = live
	sort.SliceStable(m.timers, func(i, j int) bool {
		if m.timers[i].due != m.timers[j].due {
			return m.timers[i].due < m.timers[j].due
		}
		return m.timers[i].seq < m.timers[j].seq
	})
}
