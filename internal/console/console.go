// Package console is the line-oriented operator frontend. It owns no
// message state: every command delegates to the app layer, and live
// updates arrive over the event bus like any other observer.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"crewpager/internal/app"
	"crewpager/internal/compose"
	"crewpager/internal/eventbus"
	"crewpager/pkg/logx"
)

// Console reads commands from in and writes rendered output to out.
type Console struct {
	app *app.App
	in  io.Reader
	out io.Writer
	log logx.Logger

	mu       sync.Mutex
	selected map[int]bool
	draft    *draft

	commands map[string]*Command
	order    []string
}

// draft holds form state carried between commands, filled by `reuse` and
// consumed by the next `send`.
type draft struct {
	TemplateKey string
	Text        string
	Responses   []string
	Devices     []int
}

func New(a *app.App, in io.Reader, out io.Writer, log logx.Logger) *Console {
	if log.IsZero() {
		log = logx.Nop()
	}
	c := &Console{
		app:      a,
		in:       in,
		out:      out,
		log:      log,
		selected: map[int]bool{},
		commands: map[string]*Command{},
	}
	c.registerAll()
	return c
}

// Run consumes input lines until EOF, quit, or ctx cancellation. Bus
// events are rendered between prompts by a separate goroutine.
func (c *Console) Run(ctx context.Context) error {
	events, unsub := c.app.Bus().Subscribe(64)
	defer unsub()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				if line := c.renderEvent(ev); line != "" {
					c.printf("  %s\n", line)
				}
			}
		}
	}()
	defer func() { <-done }()

	c.printf("crewpager console. Type 'help' for commands.\n")
	c.renderDevicePanel()

	scanner := bufio.NewScanner(c.in)
	scanner.Buffer(make([]byte, 0, 4096), 1<<16)
	for {
		c.printf("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := c.dispatch(ctx, line); err != nil {
			if errors.Is(err, errQuit) {
				return nil
			}
			c.printf("error: %s\n", errString(err))
		}
	}
}

var errQuit = errors.New("quit")

func (c *Console) dispatch(ctx context.Context, line string) error {
	tokens, err := splitTokens(line)
	if err != nil {
		return err
	}
	if len(tokens) == 0 {
		return nil
	}
	name := strings.ToLower(tokens[0])
	cmd, ok := c.commands[name]
	if !ok {
		return fmt.Errorf("unknown command %q (try 'help')", name)
	}
	req := parseArgs(tokens[1:])
	return cmd.Handle(ctx, c, req)
}

func (c *Console) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}

// selection returns the currently selected device ids in ascending order.
func (c *Console) selection() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]int, 0, len(c.selected))
	for id, on := range c.selected {
		if on {
			out = append(out, id)
		}
	}
	sort.Ints(out)
	return out
}

func (c *Console) setSelection(ids []int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selected = map[int]bool{}
	for _, id := range ids {
		c.selected[id] = true
	}
}

func (c *Console) toggle(id int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selected[id] = !c.selected[id]
	return c.selected[id]
}

func (c *Console) takeDraft() *draft {
	c.mu.Lock()
	defer c.mu.Unlock()
	d := c.draft
	c.draft = nil
	return d
}

func (c *Console) setDraft(d *draft) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draft = d
}

// ---- input parsing ----

// Request is the parsed form of one command line: positional args plus
// --key value / --key=value flags.
type Request struct {
	Args  []string
	Flags map[string]string
}

func (r Request) Flag(name string) (string, bool) {
	v, ok := r.Flags[name]
	return v, ok
}

func parseArgs(tokens []string) Request {
	req := Request{Flags: map[string]string{}}
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		if !strings.HasPrefix(tok, "--") {
			req.Args = append(req.Args, tok)
			continue
		}
		key := strings.TrimPrefix(tok, "--")
		if eq := strings.IndexByte(key, '='); eq >= 0 {
			req.Flags[key[:eq]] = key[eq+1:]
			continue
		}
		if i+1 < len(tokens) && !strings.HasPrefix(tokens[i+1], "--") {
			req.Flags[key] = tokens[i+1]
			i++
		} else {
			req.Flags[key] = ""
		}
	}
	return req
}

// splitTokens splits a command line on whitespace, honoring single and
// double quotes so message text can contain spaces.
func splitTokens(line string) ([]string, error) {
	var (
		out   []string
		cur   strings.Builder
		quote rune
		open  bool
	)
	flush := func() {
		if cur.Len() > 0 || open {
			out = append(out, cur.String())
			cur.Reset()
			open = false
		}
	}
	for _, r := range line {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case r == '\'' || r == '"':
			quote = r
			open = true
		case r == ' ' || r == '\t':
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("unterminated %c-quote", quote)
	}
	flush()
	return out, nil
}

// errString strips wrapped detail down to the operator-facing line.
func errString(err error) string {
	var verr *compose.ValidationError
	if errors.As(err, &verr) {
		return verr.Msg
	}
	return err.Error()
}

func (c *Console) renderEvent(ev eventbus.Event) string {
	return formatEvent(ev)
}
