package history

import (
	"errors"
	"testing"
	"time"

	"crewpager/internal/eventbus"
	"crewpager/internal/message"
	"crewpager/pkg/logx"
)

func newMsg(id int64, status message.Status, devices ...int) *message.Message {
	return &message.Message{
		ID:              id,
		Text:            "test",
		Responses:       []string{"OK"},
		Status:          status,
		Devices:         devices,
		DeviceResponses: map[int]message.DeviceResponse{},
	}
}

func TestRecordNewestFirst(t *testing.T) {
	l := NewLog(nil, logx.Nop())
	l.Record(newMsg(1, message.StatusSent, 1))
	l.Record(newMsg(2, message.StatusSent, 1))
	l.Record(newMsg(3, message.StatusScheduled, 2))

	snap := l.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("len = %d, want 3", len(snap))
	}
	if snap[0].ID != 3 || snap[1].ID != 2 || snap[2].ID != 1 {
		t.Fatalf("order = %d,%d,%d, want 3,2,1", snap[0].ID, snap[1].ID, snap[2].ID)
	}
	if l.Len() != 3 {
		t.Fatalf("Len = %d", l.Len())
	}
}

func TestGetReturnsCopy(t *testing.T) {
	l := NewLog(nil, logx.Nop())
	l.Record(newMsg(1, message.StatusSent, 1))

	m, ok := l.Get(1)
	if !ok {
		t.Fatalf("Get(1) not found")
	}
	m.Text = "mutated"
	m.DeviceResponses[1] = message.DeviceResponse{Text: "x"}

	again, _ := l.Get(1)
	if again.Text != "test" || len(again.DeviceResponses) != 0 {
		t.Fatalf("Get must hand out copies: %+v", again)
	}
}

func TestMarkSent(t *testing.T) {
	l := NewLog(nil, logx.Nop())
	l.Record(newMsg(1, message.StatusScheduled, 1))

	at := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	if err := l.MarkSent(1, at); err != nil {
		t.Fatalf("MarkSent: %v", err)
	}
	m, _ := l.Get(1)
	if m.Status != message.StatusSent || !m.SentAt.Equal(at) {
		t.Fatalf("after MarkSent: %q %v", m.Status, m.SentAt)
	}
	if err := l.MarkSent(99, at); !errors.Is(err, ErrNotFound) {
		t.Fatalf("MarkSent(missing) err = %v", err)
	}
}

func TestAddResponse(t *testing.T) {
	bus := eventbus.New()
	events, unsub := bus.Subscribe(8)
	defer unsub()

	l := NewLog(bus, logx.Nop())
	l.Record(newMsg(1, message.StatusSent, 1, 2))

	at := time.Now()
	snap, err := l.AddResponse(1, 2, "Starting Break", at)
	if err != nil {
		t.Fatalf("AddResponse: %v", err)
	}
	if snap.Status != message.StatusResponded {
		t.Fatalf("status = %q, want responded", snap.Status)
	}
	r, ok := snap.DeviceResponses[2]
	if !ok || r.Text != "Starting Break" {
		t.Fatalf("device response = %+v", snap.DeviceResponses)
	}

	// Untargeted device leaves the record untouched.
	if _, err := l.AddResponse(1, 3, "nope", at); !errors.Is(err, ErrNotTargeted) {
		t.Fatalf("AddResponse(untargeted) err = %v", err)
	}
	m, _ := l.Get(1)
	if len(m.DeviceResponses) != 1 {
		t.Fatalf("untargeted response recorded: %+v", m.DeviceResponses)
	}

	if _, err := l.AddResponse(42, 1, "x", at); !errors.Is(err, ErrNotFound) {
		t.Fatalf("AddResponse(missing) err = %v", err)
	}

	// The bus saw the record and the response.
	var types []string
	for len(events) > 0 {
		types = append(types, (<-events).Type)
	}
	found := false
	for _, typ := range types {
		if typ == eventbus.TypeMessageResponded {
			found = true
		}
	}
	if !found {
		t.Fatalf("no %s event published, got %v", eventbus.TypeMessageResponded, types)
	}
}

func TestDeleteOnlyScheduled(t *testing.T) {
	l := NewLog(nil, logx.Nop())
	l.Record(newMsg(1, message.StatusSent, 1))
	l.Record(newMsg(2, message.StatusScheduled, 1))

	if err := l.Delete(1); !errors.Is(err, ErrNotScheduled) {
		t.Fatalf("Delete(sent) err = %v, want ErrNotScheduled", err)
	}
	if err := l.Delete(2); err != nil {
		t.Fatalf("Delete(scheduled): %v", err)
	}
	if _, ok := l.Get(2); ok {
		t.Fatalf("deleted message still present")
	}
	if l.Len() != 1 {
		t.Fatalf("Len = %d, want 1", l.Len())
	}
	if err := l.Delete(2); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Delete(gone) err = %v, want ErrNotFound", err)
	}
}

func TestReuse(t *testing.T) {
	l := NewLog(nil, logx.Nop())
	m := newMsg(1, message.StatusSent, 2, 3)
	m.TemplateID = "break"
	m.Responses = []string{"Starting Break", "5 More Minutes"}
	l.Record(m)

	d, err := l.Reuse(1)
	if err != nil {
		t.Fatalf("Reuse: %v", err)
	}
	if d.TemplateKey != "break" || d.Text != "test" {
		t.Fatalf("draft = %+v", d)
	}
	if len(d.Devices) != 2 || len(d.Responses) != 2 {
		t.Fatalf("draft slices = %+v", d)
	}

	// Draft slices are detached from the stored message.
	d.Devices[0] = 99
	again, _ := l.Reuse(1)
	if again.Devices[0] != 2 {
		t.Fatalf("draft shares backing array with stored message")
	}

	if _, err := l.Reuse(404); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Reuse(missing) err = %v", err)
	}
}
