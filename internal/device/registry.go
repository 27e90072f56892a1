// Package device tracks the simulated worker terminals: a fixed set of
// small integer ids, each able to show one message at a time.
package device

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

const DefaultCount = 4

// StatusReady is the idle status line shown on a device.
const StatusReady = "OK"

var ErrUnknownDevice = errors.New("unknown device")

// State is the externally visible state of one device.
type State struct {
	ID               int
	Online           bool
	CurrentMessageID int64 // 0 when idle
	Status           string
	StatusKind       string // "ready", "received", "sending"
}

type slot struct {
	online     bool
	messageID  int64
	token      string // delivery token for the current assignment
	status     string
	statusKind string
	statusTok  string // guards transient status resets
}

// Registry holds the per-device current-message slots.
//
// At most one outstanding message per device: a new assignment silently
// overwrites the previous one. Every assignment is stamped with a fresh
// delivery token so callbacks armed against an overwritten assignment can
// detect they are stale.
type Registry struct {
	mu    sync.RWMutex
	slots map[int]*slot
	ids   []int
}

func NewRegistry(count int) *Registry {
	if count <= 0 {
		count = DefaultCount
	}
	r := &Registry{slots: make(map[int]*slot, count)}
	for id := 1; id <= count; id++ {
		r.slots[id] = &slot{online: true, status: StatusReady, statusKind: "ready"}
		r.ids = append(r.ids, id)
	}
	return r
}

// IDs returns all device ids in ascending order.
func (r *Registry) IDs() []int {
	out := make([]int, len(r.ids))
	copy(out, r.ids)
	return out
}

// Has reports whether id names a registered device.
func (r *Registry) Has(id int) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.slots[id]
	return ok
}

// Assign puts messageID on the device screen, overwriting whatever was
// there (the previous message's response opportunity is silently lost).
// It returns the delivery token for this assignment.
func (r *Registry) Assign(id int, messageID int64) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slots[id]
	if !ok {
		return "", fmt.Errorf("%w: %d", ErrUnknownDevice, id)
	}
	s.messageID = messageID
	s.token = uuid.NewString()
	return s.token, nil
}

// Current returns the message shown on the device and its delivery token.
// ok is false when the device is idle.
func (r *Registry) Current(id int) (messageID int64, token string, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, found := r.slots[id]
	if !found || s.messageID == 0 {
		return 0, "", false
	}
	return s.messageID, s.token, true
}

// Complete clears the device slot if token still matches the current
// assignment and returns the message that was on screen. A mismatched
// token means the device was re-dispatched (or cleared) while the caller's
// timer was in flight; the slot is left alone and ok is false.
func (r *Registry) Complete(id int, token string) (messageID int64, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, found := r.slots[id]
	if !found || s.messageID == 0 || s.token != token {
		return 0, false
	}
	messageID = s.messageID
	s.messageID = 0
	s.token = ""
	return messageID, true
}

// Clear empties the device screen unconditionally.
func (r *Registry) Clear(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.slots[id]; ok {
		s.messageID = 0
		s.token = ""
	}
}

// ClearAll empties every device screen and resets status lines.
func (r *Registry) ClearAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.slots {
		s.messageID = 0
		s.token = ""
		s.status = StatusReady
		s.statusKind = "ready"
		s.statusTok = ""
	}
}

// SetOnline flips the connection flag.
func (r *Registry) SetOnline(id int, online bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slots[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownDevice, id)
	}
	s.online = online
	return nil
}

// SetStatus sets the transient status line and returns a token for the
// matching auto-reset.
func (r *Registry) SetStatus(id int, text, kind string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slots[id]
	if !ok {
		return "", fmt.Errorf("%w: %d", ErrUnknownDevice, id)
	}
	s.status = text
	s.statusKind = kind
	s.statusTok = uuid.NewString()
	return s.statusTok, nil
}

// ResetStatus returns the status line to ready, but only when token still
// matches (a newer status supersedes older pending resets).
func (r *Registry) ResetStatus(id int, token string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slots[id]
	if !ok || s.statusTok != token {
		return false
	}
	s.status = StatusReady
	s.statusKind = "ready"
	s.statusTok = ""
	return true
}

// Snapshot returns a copy of all device states in id order.
func (r *Registry) Snapshot() []State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]State, 0, len(r.slots))
	for id, s := range r.slots {
		out = append(out, State{
			ID:               id,
			Online:           s.online,
			CurrentMessageID: s.messageID,
			Status:           s.status,
			StatusKind:       s.statusKind,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
