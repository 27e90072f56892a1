package device

import (
	"errors"
	"testing"
)

func TestNewRegistryDefaults(t *testing.T) {
	r := NewRegistry(0)
	if got := r.IDs(); len(got) != DefaultCount {
		t.Fatalf("IDs = %v, want %d devices", got, DefaultCount)
	}
	for _, st := range r.Snapshot() {
		if !st.Online || st.Status != StatusReady || st.StatusKind != "ready" {
			t.Fatalf("fresh device state = %+v", st)
		}
		if st.CurrentMessageID != 0 {
			t.Fatalf("fresh device has a message: %+v", st)
		}
	}
	if !r.Has(1) || !r.Has(DefaultCount) || r.Has(DefaultCount+1) {
		t.Fatalf("Has is wrong about the id range")
	}
}

func TestAssignOverwrites(t *testing.T) {
	r := NewRegistry(2)
	tok1, err := r.Assign(1, 100)
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	tok2, err := r.Assign(1, 200)
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if tok1 == tok2 {
		t.Fatalf("re-assignment must mint a fresh token")
	}
	id, tok, ok := r.Current(1)
	if !ok || id != 200 || tok != tok2 {
		t.Fatalf("Current = %d/%q/%v", id, tok, ok)
	}

	if _, err := r.Assign(9, 1); !errors.Is(err, ErrUnknownDevice) {
		t.Fatalf("Assign(unknown) err = %v", err)
	}
}

func TestCompleteTokenGuard(t *testing.T) {
	r := NewRegistry(1)
	tok1, _ := r.Assign(1, 100)

	// Stale token: device was re-assigned underneath the caller.
	_, _ = r.Assign(1, 200)
	if _, ok := r.Complete(1, tok1); ok {
		t.Fatalf("Complete accepted a stale token")
	}
	if id, _, ok := r.Current(1); !ok || id != 200 {
		t.Fatalf("stale Complete disturbed the slot: %d/%v", id, ok)
	}

	// Matching token clears the slot exactly once.
	_, tok2, _ := r.Current(1)
	id, ok := r.Complete(1, tok2)
	if !ok || id != 200 {
		t.Fatalf("Complete = %d/%v, want 200/true", id, ok)
	}
	if _, _, ok := r.Current(1); ok {
		t.Fatalf("slot not cleared after Complete")
	}
	if _, ok := r.Complete(1, tok2); ok {
		t.Fatalf("Complete must not succeed twice")
	}
}

func TestClearAndClearAll(t *testing.T) {
	r := NewRegistry(3)
	_, _ = r.Assign(1, 100)
	_, _ = r.Assign(2, 100)
	_, _ = r.SetStatus(2, "Received", "received")

	r.Clear(1)
	if _, _, ok := r.Current(1); ok {
		t.Fatalf("Clear left a message")
	}

	r.ClearAll()
	for _, st := range r.Snapshot() {
		if st.CurrentMessageID != 0 || st.Status != StatusReady || st.StatusKind != "ready" {
			t.Fatalf("ClearAll left state: %+v", st)
		}
	}
}

func TestStatusTokenGuard(t *testing.T) {
	r := NewRegistry(1)
	tok1, err := r.SetStatus(1, "Received", "received")
	if err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	// A newer status supersedes the old reset.
	tok2, _ := r.SetStatus(1, "Sending...", "sending")
	if r.ResetStatus(1, tok1) {
		t.Fatalf("stale reset token accepted")
	}
	st := r.Snapshot()[0]
	if st.Status != "Sending..." || st.StatusKind != "sending" {
		t.Fatalf("stale reset disturbed status: %+v", st)
	}

	if !r.ResetStatus(1, tok2) {
		t.Fatalf("current reset token rejected")
	}
	st = r.Snapshot()[0]
	if st.Status != StatusReady || st.StatusKind != "ready" {
		t.Fatalf("status after reset: %+v", st)
	}
	if r.ResetStatus(1, tok2) {
		t.Fatalf("reset must not apply twice")
	}
}

func TestSetOnline(t *testing.T) {
	r := NewRegistry(1)
	if err := r.SetOnline(1, false); err != nil {
		t.Fatalf("SetOnline: %v", err)
	}
	if st := r.Snapshot()[0]; st.Online {
		t.Fatalf("device still online")
	}
	if err := r.SetOnline(7, true); !errors.Is(err, ErrUnknownDevice) {
		t.Fatalf("SetOnline(unknown) err = %v", err)
	}
}
