// Package history keeps the append-only, most-recent-first record of every
// composed message, with live status and recorded responses.
//
// The log owns all recorded messages: status, sentAt and deviceResponses
// are mutated here and nowhere else. Everything handed out is a deep copy.
package history

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"crewpager/internal/eventbus"
	"crewpager/internal/message"
	"crewpager/pkg/logx"
)

var (
	ErrNotFound     = errors.New("message not found")
	ErrNotScheduled = errors.New("only scheduled messages can be deleted")
	ErrNotTargeted  = errors.New("device was not targeted by this message")
)

type Log struct {
	mu    sync.Mutex
	items []*message.Message // newest first
	index map[int64]*message.Message

	bus eventbus.Bus
	log logx.Logger
}

func NewLog(bus eventbus.Bus, log logx.Logger) *Log {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Log{index: map[int64]*message.Message{}, bus: bus, log: log}
}

// Record inserts m at the head of the log.
func (l *Log) Record(m *message.Message) {
	l.mu.Lock()
	l.items = append([]*message.Message{m}, l.items...)
	l.index[m.ID] = m
	l.mu.Unlock()

	l.publish(eventbus.TypeMessageRecorded, m.Clone())
	l.log.Debug("message recorded",
		logx.Int64("id", m.ID),
		logx.String("status", string(m.Status)),
		logx.Int("devices", len(m.Devices)))
}

// Get returns a snapshot of the message with the given id.
func (l *Log) Get(id int64) (*message.Message, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.index[id]
	if !ok {
		return nil, false
	}
	return m.Clone(), true
}

// MarkSent flips a scheduled message to sent at the given instant.
func (l *Log) MarkSent(id int64, at time.Time) error {
	l.mu.Lock()
	m, ok := l.index[id]
	if !ok {
		l.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	m.Status = message.StatusSent
	m.SentAt = at
	snap := m.Clone()
	l.mu.Unlock()

	l.publish(eventbus.TypeMessageSent, snap)
	return nil
}

// AddResponse records a worker's reply under deviceID and flips the whole
// message to responded. The global status flips on the first response,
// independent of other devices' pending state. Returns a snapshot of the
// updated message.
func (l *Log) AddResponse(id int64, deviceID int, text string, at time.Time) (*message.Message, error) {
	l.mu.Lock()
	m, ok := l.index[id]
	if !ok {
		l.mu.Unlock()
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if !m.Targets(deviceID) {
		l.mu.Unlock()
		return nil, fmt.Errorf("%w: device %d, message %d", ErrNotTargeted, deviceID, id)
	}
	m.DeviceResponses[deviceID] = message.DeviceResponse{Text: text, At: at}
	m.Status = message.StatusResponded
	snap := m.Clone()
	l.mu.Unlock()

	l.publish(eventbus.TypeMessageResponded, snap)
	l.log.Info("response recorded",
		logx.Int64("id", id),
		logx.Int("device", deviceID),
		logx.String("response", text))
	return snap, nil
}

// Delete removes a message from history. Permitted only while the message
// is still scheduled; the caller is responsible for cancelling its timer
// with the scheduler first.
func (l *Log) Delete(id int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.index[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if m.Status != message.StatusScheduled {
		return ErrNotScheduled
	}
	delete(l.index, id)
	for i, it := range l.items {
		if it.ID == id {
			l.items = append(l.items[:i], l.items[i+1:]...)
			break
		}
	}
	return nil
}

// Draft is the read-only projection handed back to the composer form by
// the "re-use" action.
type Draft struct {
	TemplateKey string
	Text        string
	Responses   []string
	Devices     []int
}

// Reuse returns a draft snapshot for re-populating the composer.
// It does not mutate history.
func (l *Log) Reuse(id int64) (Draft, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.index[id]
	if !ok {
		return Draft{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return Draft{
		TemplateKey: m.TemplateID,
		Text:        m.Text,
		Responses:   append([]string(nil), m.Responses...),
		Devices:     append([]int(nil), m.Devices...),
	}, nil
}

// Snapshot returns deep copies of all messages, newest first.
func (l *Log) Snapshot() []*message.Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*message.Message, 0, len(l.items))
	for _, m := range l.items {
		out = append(out, m.Clone())
	}
	return out
}

// Len returns the number of recorded messages.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items)
}

func (l *Log) publish(typ string, data any) {
	if l.bus != nil {
		l.bus.Publish(eventbus.Event{Type: typ, Data: data})
	}
}
