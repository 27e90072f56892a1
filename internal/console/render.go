package console

import (
	"fmt"
	"strings"

	"crewpager/internal/device"
	"crewpager/internal/dispatch"
	"crewpager/internal/eventbus"
	"crewpager/internal/message"
	"crewpager/internal/schedule"
	"crewpager/internal/template"
	"crewpager/pkg/screenfit"
)

const panelWidth = 34

// renderDevicePanel draws one boxed screen per device, the way the pager
// wall looks in the control room.
func (c *Console) renderDevicePanel() {
	sel := map[int]bool{}
	for _, id := range c.selection() {
		sel[id] = true
	}
	for _, st := range c.app.Devices() {
		c.renderDevice(st, sel[st.ID])
	}
}

func (c *Console) renderDevice(st device.State, selected bool) {
	mark := " "
	if selected {
		mark = "*"
	}
	online := "online"
	if !st.Online {
		online = "OFFLINE"
	}
	c.printf("+%s+\n", strings.Repeat("-", panelWidth))
	c.printf("|%s %-*s|\n", mark,
		panelWidth-2, fmt.Sprintf("Device %d  %s  [%s]", st.ID, online, st.Status))

	if st.CurrentMessageID == 0 {
		c.printf("| %-*s|\n", panelWidth-1, "(idle)")
		c.printf("+%s+\n", strings.Repeat("-", panelWidth))
		return
	}

	m, ok := c.app.Message(st.CurrentMessageID)
	if !ok {
		c.printf("| %-*s|\n", panelWidth-1, fmt.Sprintf("message #%d", st.CurrentMessageID))
		c.printf("+%s+\n", strings.Repeat("-", panelWidth))
		return
	}
	font := screenfit.DeviceFontPx(m.Text, len(m.Responses) > 0)
	head := m.Text
	if m.Icon != "" {
		head = m.Icon + " " + head
	}
	for _, line := range wrap(head, panelWidth-2) {
		c.printf("| %-*s|\n", panelWidth-1, line)
	}
	c.printf("| %-*s|\n", panelWidth-1, fmt.Sprintf("(%dpx)", font))
	if len(m.Responses) > 0 {
		btns := make([]string, len(m.Responses))
		for i, r := range m.Responses {
			btns[i] = fmt.Sprintf("[%s %dpx]", r, screenfit.ButtonFontPx(r))
		}
		for _, line := range wrap(strings.Join(btns, " "), panelWidth-2) {
			c.printf("| %-*s|\n", panelWidth-1, line)
		}
	}
	c.printf("+%s+\n", strings.Repeat("-", panelWidth))
}

func (c *Console) renderHistory(limit int) {
	items := c.app.History()
	if len(items) == 0 {
		c.printf("history is empty\n")
		return
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	for _, m := range items {
		c.printf("#%d  [%-9s]  %s\n", m.ID, m.Status, summarize(m.Text, 60))
		switch {
		case m.Status == message.StatusScheduled:
			c.printf("    at %s%s -> devices %s\n",
				m.ScheduledAt.Format("2006-01-02 15:04"),
				recurrenceSuffix(m.Recurrence), joinInts(m.Devices))
		default:
			c.printf("    sent %s -> devices %s\n",
				m.SentAt.Format("15:04:05"), joinInts(m.Devices))
		}
		for _, id := range m.Devices {
			if r, ok := m.DeviceResponses[id]; ok {
				c.printf("    device %d: %q at %s\n", id, r.Text, r.At.Format("15:04:05"))
			}
		}
		if pending := m.PendingDevices(); m.Status != message.StatusScheduled && len(pending) > 0 {
			c.printf("    awaiting: %s\n", joinInts(pending))
		}
	}
}

func (c *Console) renderPending() {
	entries := c.app.Pending()
	if len(entries) == 0 {
		c.printf("no pending schedules\n")
		return
	}
	for _, p := range entries {
		text := ""
		if m, ok := c.app.Message(p.MessageID); ok {
			text = "  " + summarize(m.Text, 48)
		}
		c.printf("#%d  %s%s%s\n", p.MessageID,
			p.At.Format("2006-01-02 15:04"), recurrenceSuffix(p.Recurrence), text)
	}
}

func (c *Console) renderTemplates() {
	for _, e := range c.app.Templates() {
		kind := "custom "
		if e.Builtin {
			kind = "builtin"
		}
		c.printf("  %-10s %s %s %s\n", e.Key, kind, e.Template.Icon, e.Template.Name)
	}
}

func (c *Console) renderTemplate(key string, t template.Template) {
	c.printf("%s  %s %s [%s]\n", key, t.Icon, t.Name, t.Severity)
	c.printf("  text: %s\n", t.Text)
	if len(t.Responses) > 0 {
		c.printf("  responses: %s\n", strings.Join(t.Responses, ", "))
	}
}

// formatEvent turns a bus event into a single notification line. Unknown
// payloads render as nothing; the console only narrates what it knows.
func formatEvent(ev eventbus.Event) string {
	switch ev.Type {
	case eventbus.TypeDeviceUpdated:
		a, ok := ev.Data.(dispatch.Assignment)
		if !ok || a.Message == nil {
			return ""
		}
		return fmt.Sprintf("device %d <- #%d %q", a.DeviceID, a.Message.ID, summarize(a.Message.Text, 40))
	case eventbus.TypeDeviceCleared:
		cl, ok := ev.Data.(dispatch.Cleared)
		if !ok {
			return ""
		}
		return fmt.Sprintf("device %d screen cleared", cl.DeviceID)
	case eventbus.TypeDeviceStatus:
		st, ok := ev.Data.(device.State)
		if !ok {
			return ""
		}
		return fmt.Sprintf("device %d status: %s", st.ID, st.Status)
	case eventbus.TypeMessageResponded:
		m, ok := ev.Data.(*message.Message)
		if !ok {
			return ""
		}
		return fmt.Sprintf("message #%d responded (%d/%d devices)",
			m.ID, len(m.DeviceResponses), len(m.Devices))
	case eventbus.TypeScheduleFired:
		f, ok := ev.Data.(schedule.FiredEvent)
		if !ok {
			return ""
		}
		return fmt.Sprintf("schedule #%d fired at %s", f.MessageID, f.At.Format("15:04:05"))
	case eventbus.TypeScheduleRemoved:
		cl, ok := ev.Data.(schedule.CancelledEvent)
		if !ok {
			return ""
		}
		return fmt.Sprintf("schedule #%d removed", cl.MessageID)
	}
	return ""
}

func summarize(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max-3]) + "..."
}

func wrap(text string, width int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{""}
	}
	var (
		lines []string
		cur   strings.Builder
	)
	for _, w := range words {
		if cur.Len() > 0 && cur.Len()+1+len(w) > width {
			lines = append(lines, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteByte(' ')
		}
		cur.WriteString(w)
	}
	lines = append(lines, cur.String())
	return lines
}
