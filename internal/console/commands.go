package console

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"crewpager/internal/compose"
	"crewpager/internal/message"
	"crewpager/internal/template"
)

// Command is one console verb. Route is the first token of the line;
// flags and positional args are parsed uniformly by the dispatcher.
type Command struct {
	Route       string
	Aliases     []string
	Description string
	Usage       string
	Handle      func(ctx context.Context, c *Console, req Request) error
}

func (c *Console) register(cmd *Command) {
	c.commands[cmd.Route] = cmd
	c.order = append(c.order, cmd.Route)
	for _, a := range cmd.Aliases {
		c.commands[a] = cmd
	}
}

func (c *Console) registerAll() {
	c.register(&Command{
		Route:       "help",
		Aliases:     []string{"?"},
		Description: "list commands, or show usage for one",
		Usage:       "help [command]",
		Handle:      cmdHelp,
	})
	c.register(&Command{
		Route:       "devices",
		Aliases:     []string{"d"},
		Description: "show the device panel",
		Usage:       "devices",
		Handle:      cmdDevices,
	})
	c.register(&Command{
		Route:       "select",
		Aliases:     []string{"sel"},
		Description: "select target devices for the next send",
		Usage:       "select all | none | <id> [<id>...]",
		Handle:      cmdSelect,
	})
	c.register(&Command{
		Route:       "send",
		Aliases:     []string{"s"},
		Description: "send a message to the selected devices, now or scheduled",
		Usage:       `send "<text>" [--template <key>] [--to 1,2] [--resp "a,b,c"] [--date YYYY-MM-DD --time HH:MM [--repeat daily|weekly|monthly]]`,
		Handle:      cmdSend,
	})
	c.register(&Command{
		Route:       "respond",
		Aliases:     []string{"r"},
		Description: "press a response button on a device",
		Usage:       `respond <device> "<text>"`,
		Handle:      cmdRespond,
	})
	c.register(&Command{
		Route:       "simulate",
		Description: "answer pending devices with a random canned reply",
		Usage:       "simulate",
		Handle:      cmdSimulate,
	})
	c.register(&Command{
		Route:       "clear",
		Description: "clear one device screen, or all of them",
		Usage:       "clear [<device>]",
		Handle:      cmdClear,
	})
	c.register(&Command{
		Route:       "device",
		Description: "take a device offline, or bring it back",
		Usage:       "device <id> online|offline",
		Handle:      cmdDeviceOnline,
	})
	c.register(&Command{
		Route:       "history",
		Aliases:     []string{"h"},
		Description: "show sent and scheduled messages, newest first",
		Usage:       "history [n]",
		Handle:      cmdHistory,
	})
	c.register(&Command{
		Route:       "pending",
		Aliases:     []string{"p"},
		Description: "show live schedule entries, soonest first",
		Usage:       "pending",
		Handle:      cmdPending,
	})
	c.register(&Command{
		Route:       "cancel",
		Description: "cancel a scheduled message before it fires",
		Usage:       "cancel <id>",
		Handle:      cmdCancel,
	})
	c.register(&Command{
		Route:       "reuse",
		Description: "load a history entry into the next send",
		Usage:       "reuse <id>",
		Handle:      cmdReuse,
	})
	c.register(&Command{
		Route:       "template",
		Aliases:     []string{"tpl"},
		Description: "list, show, save or delete message templates",
		Usage:       `template list | show <key> | save <key> --name <n> --text <t> [--type info|warning|emergency] [--icon <i>] [--resp "a,b"] | delete <key>`,
		Handle:      cmdTemplate,
	})
	c.register(&Command{
		Route:       "quit",
		Aliases:     []string{"exit", "q"},
		Description: "leave the console",
		Usage:       "quit",
		Handle: func(ctx context.Context, c *Console, req Request) error {
			return errQuit
		},
	})
}

func cmdHelp(ctx context.Context, c *Console, req Request) error {
	if len(req.Args) > 0 {
		cmd, ok := c.commands[strings.ToLower(req.Args[0])]
		if !ok {
			return fmt.Errorf("unknown command %q", req.Args[0])
		}
		c.printf("%s\n  %s\n  usage: %s\n", cmd.Route, cmd.Description, cmd.Usage)
		return nil
	}
	for _, route := range c.order {
		cmd := c.commands[route]
		c.printf("  %-10s %s\n", cmd.Route, cmd.Description)
	}
	return nil
}

func cmdDevices(ctx context.Context, c *Console, req Request) error {
	c.renderDevicePanel()
	return nil
}

func cmdSelect(ctx context.Context, c *Console, req Request) error {
	if len(req.Args) == 0 {
		sel := c.selection()
		if len(sel) == 0 {
			c.printf("no devices selected\n")
		} else {
			c.printf("selected: %s\n", joinInts(sel))
		}
		return nil
	}
	switch strings.ToLower(req.Args[0]) {
	case "all":
		ids := make([]int, 0)
		for _, st := range c.app.Devices() {
			ids = append(ids, st.ID)
		}
		c.setSelection(ids)
		c.printf("selected: %s\n", joinInts(ids))
		return nil
	case "none":
		c.setSelection(nil)
		c.printf("selection cleared\n")
		return nil
	}
	for _, arg := range req.Args {
		id, err := strconv.Atoi(arg)
		if err != nil {
			return fmt.Errorf("bad device id %q", arg)
		}
		if c.toggle(id) {
			c.printf("device %d selected\n", id)
		} else {
			c.printf("device %d deselected\n", id)
		}
	}
	return nil
}

func cmdSend(ctx context.Context, c *Console, req Request) error {
	d := c.takeDraft()

	text := strings.Join(req.Args, " ")
	in := compose.Input{}
	if d != nil {
		in.TemplateKey = d.TemplateKey
		in.Devices = d.Devices
		for _, r := range d.Responses {
			in.Responses = append(in.Responses, compose.ResponseInput{Enabled: true, Text: r})
		}
		if text == "" {
			text = d.Text
		}
	}
	in.Text = text

	if key, ok := req.Flag("template"); ok {
		in.TemplateKey = key
		if in.Text == "" {
			if t, err := c.app.Template(key); err == nil {
				in.Text = t.Text
				if len(in.Responses) == 0 {
					for _, r := range t.Responses {
						in.Responses = append(in.Responses, compose.ResponseInput{Enabled: true, Text: r})
					}
				}
			}
		}
	}
	if raw, ok := req.Flag("to"); ok {
		ids, err := parseIntList(raw)
		if err != nil {
			return err
		}
		in.Devices = ids
	} else if len(in.Devices) == 0 {
		in.Devices = c.selection()
	}
	if raw, ok := req.Flag("resp"); ok {
		in.Responses = in.Responses[:0]
		for _, r := range splitList(raw) {
			in.Responses = append(in.Responses, compose.ResponseInput{Enabled: true, Text: r})
		}
	}
	if len(in.Responses) == 0 {
		in.Responses = []compose.ResponseInput{
			{Enabled: true, Text: "OK"},
			{Enabled: true, Text: "Cancel"},
		}
	}

	date, hasDate := req.Flag("date")
	clock, hasTime := req.Flag("time")
	if hasDate || hasTime {
		sched := &compose.ScheduleInput{Date: date, Time: clock}
		if rec, ok := req.Flag("repeat"); ok {
			sched.Recurrence = rec
		}
		in.Schedule = sched
	}

	if n := len([]rune(strings.TrimSpace(in.Text))); n > message.WarnTextLen && n <= message.MaxTextLen {
		c.printf("warning: %d/%d characters\n", n, message.MaxTextLen)
	}

	msg, err := c.app.Send(in)
	if err != nil {
		// Put the draft back so a failed send does not eat a reuse.
		if d != nil {
			c.setDraft(d)
		}
		return err
	}
	if msg.Status == message.StatusScheduled {
		c.printf("scheduled #%d for %s%s -> devices %s\n",
			msg.ID, msg.ScheduledAt.Format("2006-01-02 15:04"),
			recurrenceSuffix(msg.Recurrence), joinInts(msg.Devices))
	} else {
		c.printf("sent #%d -> devices %s\n", msg.ID, joinInts(msg.Devices))
	}
	return nil
}

func cmdRespond(ctx context.Context, c *Console, req Request) error {
	if len(req.Args) < 2 {
		return fmt.Errorf("usage: respond <device> \"<text>\"")
	}
	id, err := strconv.Atoi(req.Args[0])
	if err != nil {
		return fmt.Errorf("bad device id %q", req.Args[0])
	}
	text := strings.Join(req.Args[1:], " ")
	if err := c.app.Respond(id, text); err != nil {
		return err
	}
	c.printf("device %d responding %q...\n", id, text)
	return nil
}

func cmdSimulate(ctx context.Context, c *Console, req Request) error {
	n := c.app.SimulateResponses()
	if n == 0 {
		c.printf("no devices have a pending message\n")
	} else {
		c.printf("simulated %d response(s)\n", n)
	}
	return nil
}

func cmdClear(ctx context.Context, c *Console, req Request) error {
	if len(req.Args) == 0 || strings.EqualFold(req.Args[0], "all") {
		c.app.ClearAllScreens()
		c.printf("all screens cleared\n")
		return nil
	}
	id, err := strconv.Atoi(req.Args[0])
	if err != nil {
		return fmt.Errorf("bad device id %q", req.Args[0])
	}
	c.app.ClearDevice(id)
	c.printf("device %d cleared\n", id)
	return nil
}

func cmdDeviceOnline(ctx context.Context, c *Console, req Request) error {
	if len(req.Args) != 2 {
		return fmt.Errorf("usage: device <id> online|offline")
	}
	id, err := strconv.Atoi(req.Args[0])
	if err != nil {
		return fmt.Errorf("bad device id %q", req.Args[0])
	}
	mode := strings.ToLower(req.Args[1])
	if mode != "online" && mode != "offline" {
		return fmt.Errorf("usage: device <id> online|offline")
	}
	if err := c.app.SetDeviceOnline(id, mode == "online"); err != nil {
		return err
	}
	c.printf("device %d %s\n", id, mode)
	return nil
}

func cmdHistory(ctx context.Context, c *Console, req Request) error {
	limit := 0
	if len(req.Args) > 0 {
		n, err := strconv.Atoi(req.Args[0])
		if err != nil || n < 1 {
			return fmt.Errorf("bad count %q", req.Args[0])
		}
		limit = n
	}
	c.renderHistory(limit)
	return nil
}

func cmdPending(ctx context.Context, c *Console, req Request) error {
	c.renderPending()
	return nil
}

func cmdCancel(ctx context.Context, c *Console, req Request) error {
	id, err := strconv.ParseInt(strings.TrimSpace(strings.Join(req.Args, "")), 10, 64)
	if err != nil {
		return fmt.Errorf("usage: cancel <id>")
	}
	if err := c.app.CancelScheduled(id); err != nil {
		return err
	}
	c.printf("schedule #%d cancelled\n", id)
	return nil
}

func cmdReuse(ctx context.Context, c *Console, req Request) error {
	id, err := strconv.ParseInt(strings.TrimSpace(strings.Join(req.Args, "")), 10, 64)
	if err != nil {
		return fmt.Errorf("usage: reuse <id>")
	}
	dr, err := c.app.Reuse(id)
	if err != nil {
		return err
	}
	c.setDraft(&draft{
		TemplateKey: dr.TemplateKey,
		Text:        dr.Text,
		Responses:   dr.Responses,
		Devices:     dr.Devices,
	})
	c.setSelection(dr.Devices)
	c.printf("draft loaded: %q -> devices %s (send to dispatch)\n", dr.Text, joinInts(dr.Devices))
	return nil
}

func cmdTemplate(ctx context.Context, c *Console, req Request) error {
	sub := "list"
	if len(req.Args) > 0 {
		sub = strings.ToLower(req.Args[0])
	}
	switch sub {
	case "list":
		c.renderTemplates()
		return nil
	case "show":
		if len(req.Args) < 2 {
			return fmt.Errorf("usage: template show <key>")
		}
		key := req.Args[1]
		t, err := c.app.Template(key)
		if err != nil {
			return err
		}
		c.renderTemplate(key, t)
		return nil
	case "save":
		if len(req.Args) < 2 {
			return fmt.Errorf("usage: template save <key> --name <n> --text <t>")
		}
		key := req.Args[1]
		t := template.Template{Severity: message.SeverityInfo}
		t.Name, _ = req.Flag("name")
		t.Text, _ = req.Flag("text")
		t.Icon, _ = req.Flag("icon")
		if raw, ok := req.Flag("resp"); ok {
			t.Responses = splitList(raw)
		}
		if raw, ok := req.Flag("type"); ok {
			sev, err := message.ParseSeverity(raw)
			if err != nil {
				return err
			}
			t.Severity = sev
		}
		if err := c.app.SaveTemplate(key, t); err != nil {
			return err
		}
		c.printf("template %q saved\n", key)
		return nil
	case "delete":
		if len(req.Args) < 2 {
			return fmt.Errorf("usage: template delete <key>")
		}
		key := req.Args[1]
		if err := c.app.DeleteTemplate(key); err != nil {
			return err
		}
		c.printf("template %q deleted\n", key)
		return nil
	default:
		return fmt.Errorf("unknown subcommand %q (list|show|save|delete)", sub)
	}
}

// ---- small parsers ----

func parseIntList(raw string) ([]int, error) {
	parts := splitList(raw)
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("bad device id %q", p)
		}
		out = append(out, n)
	}
	return out, nil
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func joinInts(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ",")
}

func recurrenceSuffix(r message.Recurrence) string {
	if r == message.RecurNone {
		return ""
	}
	return fmt.Sprintf(" (repeats %s)", r)
}
