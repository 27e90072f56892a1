// Package template holds the message templates used to prefill the composer:
// a fixed built-in set plus session-scoped custom templates.
package template

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"crewpager/internal/message"
)

var (
	ErrNotFound      = errors.New("template not found")
	ErrBuiltin       = errors.New("built-in templates cannot be deleted")
	ErrKeyRequired   = errors.New("template key required")
	ErrNameRequired  = errors.New("template name required")
	ErrTextRequired  = errors.New("template text required")
	ErrKeyMalformed  = errors.New("template key may only contain letters, numbers and underscores")
)

var keyPattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// Template is a predefined message body, response set and severity.
type Template struct {
	Name      string
	Text      string
	Icon      string
	Responses []string
	Severity  message.Severity
}

func (t Template) clone() Template {
	t.Responses = append([]string(nil), t.Responses...)
	return t
}

// Store maps template keys to templates. Built-in keys are protected from
// deletion but may be overwritten by Upsert (edit-in-place: editing a
// built-in changes it for the rest of the session, it does not fork a copy).
//
// All custom templates live only in memory.
type Store struct {
	mu      sync.RWMutex
	builtin map[string]Template
	custom  map[string]Template
}

func NewStore() *Store {
	return &Store{
		builtin: builtins(),
		custom:  map[string]Template{},
	}
}

// Get returns the template for key.
func (s *Store) Get(key string) (Template, error) {
	key = strings.TrimSpace(key)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t, ok := s.builtin[key]; ok {
		return t.clone(), nil
	}
	if t, ok := s.custom[key]; ok {
		return t.clone(), nil
	}
	return Template{}, fmt.Errorf("%w: %q", ErrNotFound, key)
}

// IsBuiltin reports whether key names a built-in template.
func (s *Store) IsBuiltin(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.builtin[strings.TrimSpace(key)]
	return ok
}

// Upsert validates and saves a template under key. Saving over a built-in
// key replaces the built-in for the session; any other key creates or
// updates a custom template.
//
// An empty response set falls back to the default OK/Cancel pair.
func (s *Store) Upsert(key string, t Template) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return ErrKeyRequired
	}
	if !keyPattern.MatchString(key) {
		return fmt.Errorf("%w: %q", ErrKeyMalformed, key)
	}
	if strings.TrimSpace(t.Name) == "" {
		return ErrNameRequired
	}
	if strings.TrimSpace(t.Text) == "" {
		return ErrTextRequired
	}

	responses := make([]string, 0, message.MaxResponses)
	for _, r := range t.Responses {
		if r = strings.TrimSpace(r); r != "" {
			responses = append(responses, r)
		}
		if len(responses) == message.MaxResponses {
			break
		}
	}
	if len(responses) == 0 {
		responses = []string{"OK", "Cancel"}
	}
	t.Responses = responses

	if t.Severity == "" {
		t.Severity = message.SeverityInfo
	} else if _, err := message.ParseSeverity(string(t.Severity)); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.builtin[key]; ok {
		s.builtin[key] = t
		return nil
	}
	s.custom[key] = t
	return nil
}

// Remove deletes a custom template. Built-in keys are rejected.
func (s *Store) Remove(key string) error {
	key = strings.TrimSpace(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.builtin[key]; ok {
		return fmt.Errorf("%w (%q can only be edited)", ErrBuiltin, key)
	}
	if _, ok := s.custom[key]; !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, key)
	}
	delete(s.custom, key)
	return nil
}

// Entry pairs a key with its template for listings.
type Entry struct {
	Key      string
	Builtin  bool
	Template Template
}

// List returns built-ins in their fixed selector order followed by custom
// templates sorted by key.
func (s *Store) List() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Entry, 0, len(s.builtin)+len(s.custom))
	for _, key := range builtinOrder {
		if t, ok := s.builtin[key]; ok {
			out = append(out, Entry{Key: key, Builtin: true, Template: t.clone()})
		}
	}
	keys := make([]string, 0, len(s.custom))
	for k := range s.custom {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, Entry{Key: k, Template: s.custom[k].clone()})
	}
	return out
}
