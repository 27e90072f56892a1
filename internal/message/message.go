package message

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Limits enforced at send time (not at template-definition time).
const (
	MaxTextLen   = 140
	WarnTextLen  = 120
	MaxResponses = 3
)

type Severity string

const (
	SeverityInfo      Severity = "info"
	SeverityWarning   Severity = "warning"
	SeverityEmergency Severity = "emergency"
)

func ParseSeverity(s string) (Severity, error) {
	switch Severity(strings.ToLower(strings.TrimSpace(s))) {
	case SeverityInfo:
		return SeverityInfo, nil
	case SeverityWarning:
		return SeverityWarning, nil
	case SeverityEmergency:
		return SeverityEmergency, nil
	}
	return "", fmt.Errorf("unknown severity %q", s)
}

type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusSent      Status = "sent"
	StatusResponded Status = "responded"
)

// Recurrence is the fixed interval rule for scheduled messages.
// The zero value means "no recurrence".
type Recurrence string

const (
	RecurNone    Recurrence = ""
	RecurDaily   Recurrence = "daily"
	RecurWeekly  Recurrence = "weekly"
	RecurMonthly Recurrence = "monthly"
)

func ParseRecurrence(s string) (Recurrence, error) {
	switch Recurrence(strings.ToLower(strings.TrimSpace(s))) {
	case RecurNone:
		return RecurNone, nil
	case RecurDaily:
		return RecurDaily, nil
	case RecurWeekly:
		return RecurWeekly, nil
	case RecurMonthly:
		return RecurMonthly, nil
	}
	return "", fmt.Errorf("unknown recurrence %q", s)
}

// Next returns the successor occurrence for t.
//
// Monthly uses AddDate's calendar normalization: scheduling on Jan 31 rolls
// the next occurrence into early March, matching the platform date rollover
// the original mockup relied on.
func (r Recurrence) Next(t time.Time) time.Time {
	switch r {
	case RecurDaily:
		return t.AddDate(0, 0, 1)
	case RecurWeekly:
		return t.AddDate(0, 0, 7)
	case RecurMonthly:
		return t.AddDate(0, 1, 0)
	}
	return time.Time{}
}

// DeviceResponse is one worker's recorded reply.
type DeviceResponse struct {
	Text string
	At   time.Time
}

// Message is the central entity: one composed dispatch to a set of devices,
// tracked from creation through (scheduled) sending to worker responses.
//
// Mutable fields (Status, SentAt, ScheduledAt, DeviceResponses) are only
// touched by the history log, which owns all recorded messages; everything
// else is written once at compose time.
type Message struct {
	ID        int64
	Text      string
	Responses []string

	Status  Status
	Devices []int

	// DeviceResponses is populated incrementally as devices respond;
	// entries are never removed. Keys are always a subset of Devices.
	DeviceResponses map[int]DeviceResponse

	Severity   Severity
	Icon       string
	TemplateID string // empty means free-form message

	ScheduledAt time.Time // zero unless scheduled
	Recurrence  Recurrence

	CreatedAt time.Time
	SentAt    time.Time
}

// NewID derives a message id from the creation instant (millisecond
// precision, like the mockup's Date.now()). Monotonic enough in practice;
// rapid double-submission within the same millisecond is not guarded.
func NewID(now time.Time) int64 { return now.UnixMilli() }

// Targets reports whether the message was dispatched to the given device.
func (m *Message) Targets(deviceID int) bool {
	for _, d := range m.Devices {
		if d == deviceID {
			return true
		}
	}
	return false
}

// PendingDevices returns targeted devices that have not responded yet,
// in ascending order.
func (m *Message) PendingDevices() []int {
	var out []int
	for _, d := range m.Devices {
		if _, ok := m.DeviceResponses[d]; !ok {
			out = append(out, d)
		}
	}
	sort.Ints(out)
	return out
}

// Clone returns a deep copy.
func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	cp := *m
	cp.Responses = append([]string(nil), m.Responses...)
	cp.Devices = append([]int(nil), m.Devices...)
	cp.DeviceResponses = make(map[int]DeviceResponse, len(m.DeviceResponses))
	for k, v := range m.DeviceResponses {
		cp.DeviceResponses[k] = v
	}
	return &cp
}

// Successor builds the next occurrence of a recurring message: a brand new
// message (new id, fresh response state) with the same payload, scheduled
// for nextAt. The receiver is never mutated into the next occurrence.
func (m *Message) Successor(id int64, nextAt, createdAt time.Time) *Message {
	next := m.Clone()
	next.ID = id
	next.Status = StatusScheduled
	next.ScheduledAt = nextAt
	next.CreatedAt = createdAt
	next.SentAt = time.Time{}
	next.DeviceResponses = map[int]DeviceResponse{}
	return next
}
