package clock

import (
	"container/heap"

	"github.com/kamstrup/intmap"
)

// Token identifies a scheduled callback. The zero Token is never issued.
type Token uint64

type timer struct {
	token    Token
	at       float64
	seq      uint64
	period   float64 // > 0 for repeating timers
	fn       func()
	canceled bool
	index    int // heap index, -1 when not in the heap
}

type timerHeap []*timer

func (h timerHeap) Len() int { return len(h) }
func (h timerHeap) Less(i, j int) bool {
	if h[i].at != h[j].at {
		return h[i].at < h[j].at
	}
	return h[i].seq < h[j].seq
}
func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *timerHeap) Push(x any) {
	t := x.(*timer)
	t.index = len(*h)
	*h = append(*h, t)
}
func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}

// Scheduler owns game time. Callbacks run synchronously inside Advance, in
// (fire time, registration order) order. A delay <= 0 always lands on the next
// tick so a callback can never re-arm itself into the tick it is running in.
type Scheduler struct {
	now        float64
	tick       uint64
	tickLength float64
	seq        uint64
	next       Token

	queue    timerHeap
	nextTick []*timer
	timers   *intmap.Map[Token, *timer]
}

// New creates a scheduler whose ticks are tickLength seconds long
func New(tickLength float64) *Scheduler {
	if tickLength <= 0 {
		tickLength = 1.0 / 60
	}
	return &Scheduler{
		tickLength: tickLength,
		timers:     intmap.New[Token, *timer](64),
	}
}

// Now returns the current game time in seconds
func (s *Scheduler) Now() float64 { return s.now }

// Tick returns the number of completed Advance calls
func (s *Scheduler) Tick() uint64 { return s.tick }

// TickLength returns the nominal tick length in seconds
func (s *Scheduler) TickLength() float64 { return s.tickLength }

// Pending returns the number of armed callbacks
func (s *Scheduler) Pending() int { return s.timers.Len() }

func (s *Scheduler) issue(fn func(), period float64) *timer {
	s.next++
	s.seq++
	t := &timer{token: s.next, seq: s.seq, period: period, fn: fn, index: -1}
	s.timers.Put(t.token, t)
	return t
}

func (s *Scheduler) arm(t *timer, at float64) {
	s.seq++
	t.seq = s.seq
	t.at = at
	heap.Push(&s.queue, t)
}

// After runs fn once, delay seconds from now
func (s *Scheduler) After(delay float64, fn func()) Token {
	t := s.issue(fn, 0)
	if delay <= 0 {
		s.nextTick = append(s.nextTick, t)
		return t.token
	}
	s.arm(t, s.now+delay)
	return t.token
}

// NextTick runs fn at the start of the next Advance
func (s *Scheduler) NextTick(fn func()) Token {
	return s.After(0, fn)
}

// Every runs fn first seconds from now and then every period seconds until canceled.
// A non-positive period is replaced by the tick length.
func (s *Scheduler) Every(first, period float64, fn func()) Token {
	if period <= 0 {
		period = s.tickLength
	}
	t := s.issue(fn, period)
	if first <= 0 {
		s.nextTick = append(s.nextTick, t)
		return t.token
	}
	s.arm(t, s.now+first)
	return t.token
}

// Cancel disarms the callback. It reports whether the token was armed.
func (s *Scheduler) Cancel(tok Token) bool {
	if tok == 0 {
		return false
	}
	t, ok := s.timers.Get(tok)
	if !ok {
		return false
	}
	t.canceled = true
	s.timers.Del(tok)
	if t.index >= 0 {
		heap.Remove(&s.queue, t.index)
	}
	return true
}

// Active reports whether the token is still armed
func (s *Scheduler) Active(tok Token) bool {
	if tok == 0 {
		return false
	}
	_, ok := s.timers.Get(tok)
	return ok
}

// Remaining returns the seconds until the token fires, or -1 when it is not armed
func (s *Scheduler) Remaining(tok Token) float64 {
	t, ok := s.timers.Get(tok)
	if !ok {
		return -1
	}
	if t.index < 0 {
		return 0
	}
	return t.at - s.now
}

// Advance moves time forward by dt, running next-tick callbacks first and
// then every timer that comes due, in order.
func (s *Scheduler) Advance(dt float64) {
	s.tick++

	pending := s.nextTick
	s.nextTick = nil
	for _, t := range pending {
		s.fire(t)
	}

	target := s.now + dt
	for len(s.queue) > 0 && s.queue[0].at <= target {
		t := heap.Pop(&s.queue).(*timer)
		if t.at > s.now {
			s.now = t.at
		}
		s.fire(t)
	}
	s.now = target
}

func (s *Scheduler) fire(t *timer) {
	if t.canceled {
		return
	}
	if t.period > 0 {
		// re-arm before running so the callback can cancel itself
		s.arm(t, s.now+t.period)
	} else {
		s.timers.Del(t.token)
	}
	t.fn()
}
