package store

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func ruleDoc(id string) map[string]any {
	return map[string]any{
		"id":   id,
		"name": "rule " + id,
		"triggers": []any{
			map[string]any{"type": "event", "event_type": "device.join"},
		},
		"actions": []any{
			map[string]any{"type": "zigbee", "cmd": "onoff.on", "device_uid": "0x00124b0001020304", "endpoint": float64(1)},
		},
	}
}

func TestStore_PutGetList(t *testing.T) {
	s, err := Open("", 4)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := s.Put(ruleDoc("r1")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := s.Get("r1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != "r1" || got.Name != "rule r1" {
		t.Errorf("got = %+v", got)
	}
	if len(s.List()) != 1 {
		t.Errorf("List() len = %d, want 1", len(s.List()))
	}
}

func TestStore_PutReplacesExistingID(t *testing.T) {
	s, _ := Open("", 4)
	if _, err := s.Put(ruleDoc("r1")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	doc := ruleDoc("r1")
	doc["name"] = "renamed"
	if _, err := s.Put(doc); err != nil {
		t.Fatalf("Put (replace): %v", err)
	}
	if len(s.List()) != 1 {
		t.Fatalf("List() len = %d, want 1", len(s.List()))
	}
	got, _ := s.Get("r1")
	if got.Name != "renamed" {
		t.Errorf("Name = %q, want renamed", got.Name)
	}
}

func TestStore_CapacityExceeded(t *testing.T) {
	s, _ := Open("", 2)
	if _, err := s.Put(ruleDoc("r1")); err != nil {
		t.Fatalf("Put r1: %v", err)
	}
	if _, err := s.Put(ruleDoc("r2")); err != nil {
		t.Fatalf("Put r2: %v", err)
	}
	if _, err := s.Put(ruleDoc("r3")); !errors.Is(err, ErrCapacityExceeded) {
		t.Errorf("err = %v, want ErrCapacityExceeded", err)
	}
	if len(s.List()) != 2 {
		t.Errorf("List() len = %d, want 2 (rejected put must not mutate)", len(s.List()))
	}
}

func TestStore_RemoveNotFound(t *testing.T) {
	s, _ := Open("", 4)
	if err := s.Remove("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestStore_SetEnabled(t *testing.T) {
	s, _ := Open("", 4)
	if _, err := s.Put(ruleDoc("r1")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.SetEnabled("r1", false); err != nil {
		t.Fatalf("SetEnabled: %v", err)
	}
	got, _ := s.Get("r1")
	if got.Enabled {
		t.Error("expected Enabled = false")
	}
	if got.Compiled.Automation.Enabled != 0 {
		t.Error("expected compiled Automation.Enabled byte = 0")
	}
}

func TestStore_DurablePutSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store.bin")

	s, err := Open(path, 4)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := s.Put(ruleDoc("r1")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	reopened, err := Open(path, 4)
	if err != nil {
		t.Fatalf("Open (reload): %v", err)
	}
	if _, err := reopened.Get("r1"); err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
}

func TestStore_CorruptBlobLoadsEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store.bin")
	if err := os.WriteFile(path, []byte("not a valid blob"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	s, err := Open(path, 4)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if len(s.List()) != 0 {
		t.Fatalf("List() len = %d, want 0 (corrupt blob must load empty)", len(s.List()))
	}

	if _, err := s.Put(ruleDoc("r1")); err != nil {
		t.Fatalf("Put after corrupt load: %v", err)
	}
	reopened, err := Open(path, 4)
	if err != nil {
		t.Fatalf("Open (reload): %v", err)
	}
	if _, err := reopened.Get("r1"); err != nil {
		t.Fatalf("Get after reload: %v", err)
	}
}

func TestStore_BlobCountExceedsCapacityLoadsEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store.bin")

	seed, err := Open(filepath.Join(dir, "seed.bin"), 4)
	if err != nil {
		t.Fatalf("Open (seed): %v", err)
	}
	if _, err := seed.Put(ruleDoc("r1")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	buf, err := encodeBlob(seed.List())
	if err != nil {
		t.Fatalf("encodeBlob: %v", err)
	}
	// Inflate the header's declared count past the capacity Open is given.
	binary.LittleEndian.PutUint16(buf[6:8], 2)
	if err := os.WriteFile(path, buf, 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	s, err := Open(path, 1)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if len(s.List()) != 0 {
		t.Fatalf("List() len = %d, want 0 (count > capacity must load empty)", len(s.List()))
	}
}

func TestStore_CompileFailureLeavesNoTrace(t *testing.T) {
	s, _ := Open("", 4)
	bad := map[string]any{"id": "r1"} // missing name/triggers/actions
	if _, err := s.Put(bad); err == nil {
		t.Fatal("expected Put to fail on an invalid rule document")
	}
	if len(s.List()) != 0 {
		t.Errorf("List() len = %d, want 0", len(s.List()))
	}
}
