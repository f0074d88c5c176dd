package timer

import (
	"fmt"
	"sync"
	"time"
)

// Poster receives expiry events, usually a task mailbox.
type Poster interface {
	Send(msg any) bool
}

// Expired is posted when a timer runs out.
type Expired struct {
	Code       int
	IsMM       bool
	generation uint64
}

func (e *Expired) String() string {
	return fmt.Sprintf("T%d expired", e.Code)
}

// Timer is a named NAS timer. Expiry is only ever observed as an *Expired
// message in the poster's mailbox.
type Timer struct {
	Code     int
	IsMM     bool
	Interval time.Duration

	mu      sync.Mutex
	poster  Poster
	t       *time.Timer
	gen     uint64
	running bool
	started time.Time
	armed   time.Duration
}

func New(code int, isMM bool, interval time.Duration, poster Poster) *Timer {
	return &Timer{Code: code, IsMM: isMM, Interval: interval, poster: poster}
}

// Start arms the timer for its configured interval. A running timer is
// restarted from the full interval.
func (t *Timer) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.startLocked(t.Interval)
}

// StartWith arms the timer for d and keeps d as the new interval, as when
// the network assigns a timer value.
func (t *Timer) StartWith(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.startLocked(d)
}

// SetInterval changes the interval used by the next Start. A running
// timer keeps its current deadline.
func (t *Timer) SetInterval(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Interval = d
}

func (t *Timer) startLocked(d time.Duration) {
	t.stopLocked()
	t.Interval = d
	t.armed = d
	t.running = true
	t.started = time.Now()
	gen := t.gen
	t.t = time.AfterFunc(d, func() { t.fire(gen) })
}

func (t *Timer) fire(gen uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if gen != t.gen || !t.running {
		return
	}
	t.running = false
	// posted under the lock so that Stop returning means no event follows
	t.poster.Send(&Expired{Code: t.Code, IsMM: t.IsMM, generation: gen})
}

// Stop disarms the timer. Once Stop returns no expiry from the stopped run
// will be posted.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
}

func (t *Timer) stopLocked() {
	if t.t != nil {
		t.t.Stop()
		t.t = nil
	}
	t.gen++
	t.running = false
}

func (t *Timer) IsRunning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// Remaining is zero for a stopped timer.
func (t *Timer) Remaining() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return 0
	}
	if r := t.armed - time.Since(t.started); r > 0 {
		return r
	}
	return 0
}

// Current reports whether e belongs to the latest run of t. An expiry that
// was already queued when the timer got restarted is stale.
func (t *Timer) Current(e *Expired) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return e.Code == t.Code && e.generation == t.gen
}

func (t *Timer) String() string {
	return fmt.Sprintf("T%d", t.Code)
}
