package template

import (
	"errors"
	"testing"

	"crewpager/internal/message"
)

func TestBuiltinsPresent(t *testing.T) {
	s := NewStore()
	keys := []string{"safety", "break", "meeting", "task", "emergency", "office", "mood"}
	for _, key := range keys {
		tpl, err := s.Get(key)
		if err != nil {
			t.Fatalf("Get(%q): %v", key, err)
		}
		if tpl.Name == "" || tpl.Text == "" {
			t.Fatalf("builtin %q is incomplete: %+v", key, tpl)
		}
		if !s.IsBuiltin(key) {
			t.Fatalf("IsBuiltin(%q) = false", key)
		}
	}
	if got := len(s.List()); got != len(keys) {
		t.Fatalf("List() = %d entries, want %d", got, len(keys))
	}
}

func TestUpsertValidation(t *testing.T) {
	s := NewStore()
	cases := []struct {
		name    string
		key     string
		tpl     Template
		wantErr error
	}{
		{"empty key", "", Template{Name: "x", Text: "y"}, ErrKeyRequired},
		{"bad key", "no spaces", Template{Name: "x", Text: "y"}, ErrKeyMalformed},
		{"bad key dash", "shift-end", Template{Name: "x", Text: "y"}, ErrKeyMalformed},
		{"missing name", "ok_key", Template{Text: "y"}, ErrNameRequired},
		{"missing text", "ok_key", Template{Name: "x"}, ErrTextRequired},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := s.Upsert(tc.key, tc.tpl)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("Upsert err = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestUpsertDefaultsAndCaps(t *testing.T) {
	s := NewStore()

	if err := s.Upsert("plain", Template{Name: "Plain", Text: "hi"}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	tpl, err := s.Get("plain")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(tpl.Responses) != 2 || tpl.Responses[0] != "OK" || tpl.Responses[1] != "Cancel" {
		t.Fatalf("default responses = %v, want [OK Cancel]", tpl.Responses)
	}
	if tpl.Severity != message.SeverityInfo {
		t.Fatalf("default severity = %q, want info", tpl.Severity)
	}

	err = s.Upsert("many", Template{
		Name:      "Many",
		Text:      "hi",
		Responses: []string{"a", " ", "b", "c", "d"},
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	tpl, _ = s.Get("many")
	want := []string{"a", "b", "c"}
	if len(tpl.Responses) != len(want) {
		t.Fatalf("responses = %v, want %v", tpl.Responses, want)
	}
	for i := range want {
		if tpl.Responses[i] != want[i] {
			t.Fatalf("responses = %v, want %v", tpl.Responses, want)
		}
	}
}

func TestUpsertEditsBuiltinInPlace(t *testing.T) {
	s := NewStore()
	err := s.Upsert("break", Template{Name: "Long Break", Text: "Take 30.", Severity: message.SeverityInfo})
	if err != nil {
		t.Fatalf("Upsert over builtin: %v", err)
	}
	tpl, _ := s.Get("break")
	if tpl.Name != "Long Break" || tpl.Text != "Take 30." {
		t.Fatalf("builtin not edited: %+v", tpl)
	}
	if !s.IsBuiltin("break") {
		t.Fatalf("edited builtin must stay builtin")
	}
	// Still protected from deletion after an edit.
	if err := s.Remove("break"); !errors.Is(err, ErrBuiltin) {
		t.Fatalf("Remove(builtin) err = %v, want ErrBuiltin", err)
	}
}

func TestRemove(t *testing.T) {
	s := NewStore()
	if err := s.Remove("ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Remove(missing) err = %v, want ErrNotFound", err)
	}
	if err := s.Upsert("mine", Template{Name: "Mine", Text: "x"}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := s.Remove("mine"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := s.Get("mine"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get after remove err = %v, want ErrNotFound", err)
	}
}

func TestListOrder(t *testing.T) {
	s := NewStore()
	_ = s.Upsert("zebra", Template{Name: "Z", Text: "z"})
	_ = s.Upsert("alpha", Template{Name: "A", Text: "a"})

	entries := s.List()
	if len(entries) != 9 {
		t.Fatalf("List() = %d entries, want 9", len(entries))
	}
	if entries[0].Key != "safety" || !entries[0].Builtin {
		t.Fatalf("first entry = %+v, want builtin safety", entries[0])
	}
	if entries[7].Key != "alpha" || entries[8].Key != "zebra" {
		t.Fatalf("custom tail = %q,%q, want alpha,zebra", entries[7].Key, entries[8].Key)
	}
	if entries[7].Builtin || entries[8].Builtin {
		t.Fatalf("custom entries flagged builtin")
	}
}
