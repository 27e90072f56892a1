package schedule

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"crewpager/internal/message"
	"crewpager/pkg/logx"
)

// fakeClock drives timers manually so tests never sleep.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

func newFakeClock(now time.Time) *fakeClock { return &fakeClock{now: now} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves the clock forward, firing due timers in time order.
// Callbacks run without the clock lock so they may arm new timers; newly
// armed timers that fall within the advanced window fire too.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()
	for {
		c.mu.Lock()
		var next *fakeTimer
		for _, t := range c.timers {
			if t.fired || t.stopped || t.at.After(target) {
				continue
			}
			if next == nil || t.at.Before(next.at) {
				next = t
			}
		}
		if next == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		next.fired = true
		if next.at.After(c.now) {
			c.now = next.at
		}
		f := next.f
		c.mu.Unlock()
		f()
	}
}

// fakeSink records MarkSent and Record calls.
type fakeSink struct {
	mu       sync.Mutex
	sent     []int64
	recorded []*message.Message
}

func (s *fakeSink) Record(m *message.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recorded = append(s.recorded, m)
}

func (s *fakeSink) MarkSent(id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, id)
	return nil
}

type fakeDispatcher struct {
	mu   sync.Mutex
	msgs []*message.Message
}

func (d *fakeDispatcher) Dispatch(m *message.Message) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.msgs = append(d.msgs, m)
}

func (d *fakeDispatcher) ids() []int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]int64, 0, len(d.msgs))
	for _, m := range d.msgs {
		out = append(out, m.ID)
	}
	return out
}

func scheduledMsg(id int64, at time.Time, rec message.Recurrence) *message.Message {
	return &message.Message{
		ID:              id,
		Text:            "scheduled",
		Responses:       []string{"OK"},
		Status:          message.StatusScheduled,
		Devices:         []int{1},
		DeviceResponses: map[int]message.DeviceResponse{},
		ScheduledAt:     at,
		Recurrence:      rec,
		CreatedAt:       at.Add(-time.Hour),
	}
}

func newTestService(clock Clock, disp Dispatcher, sink Sink) *Service {
	return New(Config{}, disp, sink, nil, clock, logx.Nop())
}

func TestScheduleFires(t *testing.T) {
	start := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := newFakeClock(start)
	disp := &fakeDispatcher{}
	sink := &fakeSink{}
	s := newTestService(clock, disp, sink)

	m := scheduledMsg(100, start.Add(10*time.Minute), message.RecurNone)
	if err := s.Schedule(m); err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if len(s.Pending()) != 1 {
		t.Fatalf("pending = %d, want 1", len(s.Pending()))
	}

	clock.Advance(9 * time.Minute)
	if got := disp.ids(); len(got) != 0 {
		t.Fatalf("fired early: %v", got)
	}

	clock.Advance(2 * time.Minute)
	if got := disp.ids(); len(got) != 1 || got[0] != 100 {
		t.Fatalf("dispatched = %v, want [100]", got)
	}
	if len(sink.sent) != 1 || sink.sent[0] != 100 {
		t.Fatalf("sent = %v, want [100]", sink.sent)
	}
	if len(s.Pending()) != 0 {
		t.Fatalf("entry must be gone after firing")
	}
}

func TestScheduleDetachesFromCaller(t *testing.T) {
	start := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := newFakeClock(start)
	disp := &fakeDispatcher{}
	sink := &fakeSink{}
	s := newTestService(clock, disp, sink)

	m := scheduledMsg(100, start.Add(time.Minute), message.RecurNone)
	if err := s.Schedule(m); err != nil {
		t.Fatalf("Schedule: %v", err)
	}

	// Once scheduled the entry must not share state with the caller's
	// message, which the history log keeps mutating.
	m.Text = "rewritten"
	m.DeviceResponses[1] = message.DeviceResponse{Text: "early"}

	clock.Advance(2 * time.Minute)
	disp.mu.Lock()
	defer disp.mu.Unlock()
	if len(disp.msgs) != 1 {
		t.Fatalf("dispatched = %d messages, want 1", len(disp.msgs))
	}
	fired := disp.msgs[0]
	if fired == m {
		t.Fatalf("dispatcher received the caller's pointer")
	}
	if fired.Text != "scheduled" || len(fired.DeviceResponses) != 0 {
		t.Fatalf("caller mutations leaked into the fired message: %q %v", fired.Text, fired.DeviceResponses)
	}
}

func TestScheduleRejectsUnscheduled(t *testing.T) {
	clock := newFakeClock(time.Now())
	s := newTestService(clock, &fakeDispatcher{}, &fakeSink{})

	sent := scheduledMsg(1, time.Now().Add(time.Hour), message.RecurNone)
	sent.Status = message.StatusSent
	if err := s.Schedule(sent); !errors.Is(err, ErrNotScheduled) {
		t.Fatalf("Schedule(sent) err = %v, want ErrNotScheduled", err)
	}
	if err := s.Schedule(nil); !errors.Is(err, ErrNotScheduled) {
		t.Fatalf("Schedule(nil) err = %v", err)
	}
}

func TestCancel(t *testing.T) {
	start := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := newFakeClock(start)
	disp := &fakeDispatcher{}
	s := newTestService(clock, disp, &fakeSink{})

	m := scheduledMsg(7, start.Add(5*time.Minute), message.RecurNone)
	if err := s.Schedule(m); err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if err := s.Cancel(7); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	clock.Advance(time.Hour)
	if got := disp.ids(); len(got) != 0 {
		t.Fatalf("cancelled message fired: %v", got)
	}

	// Cancelling twice, or after firing, reports ErrNotPending.
	if err := s.Cancel(7); !errors.Is(err, ErrNotPending) {
		t.Fatalf("second Cancel err = %v, want ErrNotPending", err)
	}
	fired := scheduledMsg(8, clock.Now().Add(time.Minute), message.RecurNone)
	_ = s.Schedule(fired)
	clock.Advance(2 * time.Minute)
	if err := s.Cancel(8); !errors.Is(err, ErrNotPending) {
		t.Fatalf("Cancel(fired) err = %v, want ErrNotPending", err)
	}
}

func TestRecurrenceReschedules(t *testing.T) {
	start := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := newFakeClock(start)
	disp := &fakeDispatcher{}
	sink := &fakeSink{}
	s := newTestService(clock, disp, sink)

	first := start.Add(time.Hour)
	m := scheduledMsg(50, first, message.RecurDaily)
	if err := s.Schedule(m); err != nil {
		t.Fatalf("Schedule: %v", err)
	}

	clock.Advance(2 * time.Hour)
	if len(disp.ids()) != 1 {
		t.Fatalf("dispatched = %v, want one fire", disp.ids())
	}

	// A successor was recorded and has a live timer one day out.
	sink.mu.Lock()
	if len(sink.recorded) != 1 {
		sink.mu.Unlock()
		t.Fatalf("recorded = %d successors, want 1", len(sink.recorded))
	}
	succ := sink.recorded[0]
	sink.mu.Unlock()

	if succ.ID == m.ID {
		t.Fatalf("successor reused the original id")
	}
	wantNext := first.AddDate(0, 0, 1)
	if !succ.ScheduledAt.Equal(wantNext) {
		t.Fatalf("successor at %v, want %v", succ.ScheduledAt, wantNext)
	}
	pending := s.Pending()
	if len(pending) != 1 || pending[0].MessageID != succ.ID {
		t.Fatalf("pending = %+v, want the successor", pending)
	}

	// And the successor itself fires a day later, chaining again.
	clock.Advance(24 * time.Hour)
	if got := disp.ids(); len(got) != 2 {
		t.Fatalf("dispatched = %v, want two fires", got)
	}
}

func TestPendingSoonestFirst(t *testing.T) {
	start := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := newFakeClock(start)
	s := newTestService(clock, &fakeDispatcher{}, &fakeSink{})

	_ = s.Schedule(scheduledMsg(1, start.Add(3*time.Hour), message.RecurNone))
	_ = s.Schedule(scheduledMsg(2, start.Add(1*time.Hour), message.RecurNone))
	_ = s.Schedule(scheduledMsg(3, start.Add(2*time.Hour), message.RecurNone))

	pending := s.Pending()
	if len(pending) != 3 {
		t.Fatalf("pending = %d, want 3", len(pending))
	}
	if !sort.SliceIsSorted(pending, func(i, j int) bool {
		return pending[i].At.Before(pending[j].At)
	}) {
		t.Fatalf("pending not sorted by time: %+v", pending)
	}
	if pending[0].MessageID != 2 || pending[2].MessageID != 1 {
		t.Fatalf("order = %+v", pending)
	}
}

func TestStopDropsTimers(t *testing.T) {
	start := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := newFakeClock(start)
	disp := &fakeDispatcher{}
	s := newTestService(clock, disp, &fakeSink{})

	_ = s.Schedule(scheduledMsg(1, start.Add(time.Minute), message.RecurNone))
	s.Stop(context.Background())

	clock.Advance(time.Hour)
	if got := disp.ids(); len(got) != 0 {
		t.Fatalf("fired after Stop: %v", got)
	}
	if len(s.Pending()) != 0 {
		t.Fatalf("pending entries survived Stop")
	}
}
