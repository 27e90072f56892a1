// Package schedule holds pending delayed sends, fires them through the
// dispatch engine, and re-enqueues successors for recurring messages.
//
// Delivery is best effort on wall-clock timers: there is no catch-up for
// fires missed while the process was stopped, and no tie-break between
// timers expiring at the same instant.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"crewpager/internal/eventbus"
	"crewpager/internal/message"
	"crewpager/pkg/logx"
)

var (
	ErrNotScheduled = errors.New("message is not scheduled")
	ErrNotPending   = errors.New("no pending schedule for message")
)

type Config struct {
	Timezone string // IANA TZ for interval jobs; empty means local
}

// Dispatcher pushes a fired message onto its target devices.
type Dispatcher interface {
	Dispatch(m *message.Message)
}

// Sink is the slice of the history log the scheduler needs: marking fired
// messages sent and recording recurrence successors.
type Sink interface {
	Record(m *message.Message)
	MarkSent(id int64, at time.Time) error
}

type entry struct {
	msg   *message.Message
	at    time.Time
	ver   uint64
	timer Timer
}

// Service owns one live timer per scheduled message, keyed by message id.
// Each (re-)arm bumps a version counter so callbacks from stopped or
// replaced timers detect they are stale and return without firing.
type Service struct {
	log   logx.Logger
	bus   eventbus.Bus
	clock Clock

	dispatcher Dispatcher
	sink       Sink

	tmu     sync.Mutex
	entries map[int64]*entry

	mu     sync.Mutex
	cfg    Config
	parser cron.Parser
	c      *cron.Cron
	loc    *time.Location
}

func New(cfg Config, dispatcher Dispatcher, sink Sink, bus eventbus.Bus, clock Clock, log logx.Logger) *Service {
	if clock == nil {
		clock = RealClock()
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		log:        log,
		bus:        bus,
		clock:      clock,
		dispatcher: dispatcher,
		sink:       sink,
		entries:    map[int64]*entry{},
		cfg:        cfg,
		parser:     cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
}

// Start brings up the cron runner for interval jobs. One-shot message
// timers work without Start.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return
	}
	s.loc = s.loadLocationLocked()
	s.c = cron.New(cron.WithParser(s.parser), cron.WithLocation(s.loc))
	s.c.Start()
	s.log.Info("scheduler started", logx.String("tz", s.loc.String()))
}

// Stop halts the cron runner and every pending one-shot timer.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	if s.c != nil {
		<-s.c.Stop().Done()
		s.c = nil
	}
	s.mu.Unlock()

	s.tmu.Lock()
	for id, e := range s.entries {
		if e.timer != nil {
			_ = e.timer.Stop()
		}
		delete(s.entries, id)
	}
	s.tmu.Unlock()

	s.log.Info("scheduler stopped")
}

// Schedule arms a timer for m, which must be in scheduled status. On fire
// the message is marked sent, dispatched, and (when recurring) a successor
// message is created, recorded and scheduled in turn.
func (s *Service) Schedule(m *message.Message) error {
	if m == nil || m.Status != message.StatusScheduled || m.ScheduledAt.IsZero() {
		return ErrNotScheduled
	}

	s.tmu.Lock()
	defer s.tmu.Unlock()

	prev := uint64(0)
	if old, ok := s.entries[m.ID]; ok {
		if old.timer != nil {
			_ = old.timer.Stop()
		}
		prev = old.ver
	}
	// The entry keeps a detached copy: once recorded the live message
	// belongs to the history log, and fire() must not read it while a
	// response is being written.
	e := &entry{msg: m.Clone(), at: m.ScheduledAt, ver: prev + 1}
	s.entries[m.ID] = e

	delay := m.ScheduledAt.Sub(s.clock.Now())
	if delay < 0 {
		delay = 0
	}
	id, ver := m.ID, e.ver
	e.timer = s.clock.AfterFunc(delay, func() { s.fire(id, ver) })

	s.log.Debug("message scheduled",
		logx.Int64("id", m.ID),
		logx.Time("at", m.ScheduledAt),
		logx.String("recurrence", string(m.Recurrence)))
	return nil
}

func (s *Service) fire(id int64, ver uint64) {
	s.tmu.Lock()
	e, ok := s.entries[id]
	if !ok || e.ver != ver {
		// Cancelled or re-armed while this callback was in flight.
		s.tmu.Unlock()
		return
	}
	delete(s.entries, id)
	m := e.msg
	s.tmu.Unlock()

	now := s.clock.Now()
	if err := s.sink.MarkSent(id, now); err != nil {
		s.log.Warn("mark sent failed", logx.Int64("id", id), logx.Err(err))
	}
	s.dispatcher.Dispatch(m)

	s.publish(eventbus.TypeScheduleFired, FiredEvent{MessageID: id, At: now})
	s.log.Info("scheduled message fired", logx.Int64("id", id))

	if m.Recurrence != message.RecurNone {
		next := m.Recurrence.Next(m.ScheduledAt)
		succ := m.Successor(message.NewID(now), next, now)
		s.sink.Record(succ)
		if err := s.Schedule(succ); err != nil {
			s.log.Error("recurrence scheduling failed",
				logx.Int64("id", succ.ID), logx.Err(err))
		}
	}
}

// Cancel stops the pending timer for id. It fails with ErrNotPending when
// the message already fired or was never scheduled; state is unchanged.
func (s *Service) Cancel(id int64) error {
	s.tmu.Lock()
	e, ok := s.entries[id]
	if !ok {
		s.tmu.Unlock()
		return fmt.Errorf("%w: %d", ErrNotPending, id)
	}
	delete(s.entries, id)
	if e.timer != nil {
		_ = e.timer.Stop()
	}
	s.tmu.Unlock()

	s.publish(eventbus.TypeScheduleRemoved, CancelledEvent{MessageID: id})
	s.log.Info("scheduled message cancelled", logx.Int64("id", id))
	return nil
}

// Pending lists the messages with live timers, soonest first.
func (s *Service) Pending() []PendingInfo {
	s.tmu.Lock()
	defer s.tmu.Unlock()
	out := make([]PendingInfo, 0, len(s.entries))
	for id, e := range s.entries {
		out = append(out, PendingInfo{
			MessageID:  id,
			At:         e.at,
			Recurrence: e.msg.Recurrence,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
	return out
}

// AddInterval registers a repeating job on the cron runner ("@every"
// spec). The scheduler must be started. Jobs run on cron's goroutine; a
// panic guard keeps one bad job from taking the runner down.
func (s *Service) AddInterval(name string, every time.Duration, job func(ctx context.Context) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c == nil {
		return errors.New("scheduler not started")
	}
	spec := fmt.Sprintf("@every %s", every.String())
	_, err := s.c.AddFunc(spec, func() {
		defer func() {
			if r := recover(); r != nil {
				s.log.Error("interval job panicked", logx.String("job", name), logx.Any("panic", r))
			}
		}()
		if err := job(context.Background()); err != nil {
			s.log.Warn("interval job failed", logx.String("job", name), logx.Err(err))
		}
	})
	if err != nil {
		return err
	}
	s.log.Debug("interval job registered", logx.String("job", name), logx.String("spec", spec))
	return nil
}

func (s *Service) loadLocationLocked() *time.Location {
	tz := strings.TrimSpace(s.cfg.Timezone)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		s.log.Warn("invalid timezone; falling back to Local", logx.String("tz", tz), logx.Err(err))
		return time.Local
	}
	return loc
}

func (s *Service) publish(typ string, data any) {
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: typ, Data: data})
	}
}

// PendingInfo describes one live schedule entry.
type PendingInfo struct {
	MessageID  int64
	At         time.Time
	Recurrence message.Recurrence
}

// FiredEvent is the bus payload for TypeScheduleFired.
type FiredEvent struct {
	MessageID int64
	At        time.Time
}

// CancelledEvent is the bus payload for TypeScheduleRemoved.
type CancelledEvent struct {
	MessageID int64
}
