// Package compose validates raw operator input and constructs message
// records, deciding immediate-send versus scheduled-send.
package compose

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"crewpager/internal/message"
	"crewpager/internal/template"
)

// ResponseInput is one of the up to three response button rows of the form.
type ResponseInput struct {
	Enabled bool
	Text    string
}

// ScheduleInput mirrors the schedule section of the form: separate date and
// time fields plus an optional recurrence rule.
type ScheduleInput struct {
	Date       string // "2006-01-02"
	Time       string // "15:04"
	Recurrence string // "", "daily", "weekly", "monthly"
}

// Input is everything the operator submitted for one send.
type Input struct {
	Text        string
	Responses   []ResponseInput
	Devices     []int
	Schedule    *ScheduleInput
	TemplateKey string
}

// DeviceSet is the subset of the device registry the composer needs.
type DeviceSet interface {
	Has(id int) bool
}

// Composer builds messages from operator input.
type Composer struct {
	Templates *template.Store
	Devices   DeviceSet

	// Now is injectable for deterministic tests; defaults to time.Now.
	Now func() time.Time
}

func New(templates *template.Store, devices DeviceSet) *Composer {
	return &Composer{Templates: templates, Devices: devices, Now: time.Now}
}

func (c *Composer) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// Compose validates in, first failure wins, mirroring the form checks:
//
//  1. text trimmed non-empty
//  2. text length <= 140
//  3. schedule (when present): date and time supplied, instant in the future
//  4. at least one device selected, all known
//  5. at least one enabled response with non-empty trimmed text
//
// On success it returns a message with status "scheduled" (schedule
// present) or "sent" (immediate), with severity and icon snapshotted from
// the template when the key resolves. An unknown template key degrades to
// free-form, like the original selector.
func (c *Composer) Compose(in Input) (*message.Message, error) {
	now := c.now()

	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, reject(ReasonEmptyMessage, "please enter a message")
	}
	// The limit counts characters, not bytes, matching pager displays.
	if utf8.RuneCountInString(text) > message.MaxTextLen {
		return nil, reject(ReasonMessageTooLong,
			fmt.Sprintf("message exceeds %d character limit", message.MaxTextLen))
	}

	var (
		scheduledAt time.Time
		recurrence  message.Recurrence
	)
	if in.Schedule != nil {
		at, rec, err := c.parseSchedule(*in.Schedule, now)
		if err != nil {
			return nil, err
		}
		scheduledAt, recurrence = at, rec
	}

	devices, err := c.parseDevices(in.Devices)
	if err != nil {
		return nil, err
	}

	responses := selectResponses(in.Responses)
	if len(responses) == 0 {
		return nil, reject(ReasonNoResponseConfigured, "please enable at least one response button")
	}

	msg := &message.Message{
		ID:              message.NewID(now),
		Text:            text,
		Responses:       responses,
		Devices:         devices,
		DeviceResponses: map[int]message.DeviceResponse{},
		Severity:        message.SeverityInfo,
		CreatedAt:       now,
	}

	if key := strings.TrimSpace(in.TemplateKey); key != "" {
		if t, err := c.Templates.Get(key); err == nil {
			msg.TemplateID = key
			msg.Severity = t.Severity
			msg.Icon = t.Icon
		}
	}

	if in.Schedule != nil {
		msg.Status = message.StatusScheduled
		msg.ScheduledAt = scheduledAt
		msg.Recurrence = recurrence
	} else {
		msg.Status = message.StatusSent
		msg.SentAt = now
	}

	return msg, nil
}

func (c *Composer) parseSchedule(in ScheduleInput, now time.Time) (time.Time, message.Recurrence, error) {
	date := strings.TrimSpace(in.Date)
	hhmm := strings.TrimSpace(in.Time)
	if date == "" || hhmm == "" {
		return time.Time{}, "", reject(ReasonInvalidSchedule,
			"please select both date and time for scheduled message")
	}
	at, err := time.ParseInLocation("2006-01-02 15:04", date+" "+hhmm, now.Location())
	if err != nil {
		return time.Time{}, "", reject(ReasonInvalidSchedule,
			fmt.Sprintf("invalid schedule %q %q", date, hhmm))
	}
	if !at.After(now) {
		return time.Time{}, "", reject(ReasonInvalidSchedule, "scheduled time must be in the future")
	}
	rec, err := message.ParseRecurrence(in.Recurrence)
	if err != nil {
		return time.Time{}, "", reject(ReasonInvalidSchedule, err.Error())
	}
	return at, rec, nil
}

func (c *Composer) parseDevices(ids []int) ([]int, error) {
	seen := map[int]bool{}
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if c.Devices != nil && !c.Devices.Has(id) {
			return nil, reject(ReasonUnknownDevice, fmt.Sprintf("unknown device %d", id))
		}
		out = append(out, id)
	}
	if len(out) == 0 {
		return nil, reject(ReasonNoDeviceSelected, "please select at least one device")
	}
	return out, nil
}

// selectResponses keeps enabled, non-empty rows in form order, capped at
// the response button limit.
func selectResponses(rows []ResponseInput) []string {
	out := make([]string, 0, message.MaxResponses)
	for _, r := range rows {
		if !r.Enabled {
			continue
		}
		text := strings.TrimSpace(r.Text)
		if text == "" {
			continue
		}
		out = append(out, text)
		if len(out) == message.MaxResponses {
			break
		}
	}
	return out
}
