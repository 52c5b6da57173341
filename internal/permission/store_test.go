package permission

import (
	"path/filepath"
	"testing"
)

func TestRecordAndLookupRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(filepath.Join(dir, "store.json"))
	if err != nil {
		t.Fatal(err)
	}

	args := map[string]interface{}{"path": "a.go", "mode": "rw"}
	if err := s.Record("write_file", args, true, 0); err != nil {
		t.Fatal(err)
	}

	rec, ok, err := s.Lookup("write_file", args)
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if !rec.Allowed {
		t.Fatal("expected allowed=true")
	}
}

func TestLookupIgnoresKeyOrder(t *testing.T) {
	dir := t.TempDir()
	s, _ := NewStore(filepath.Join(dir, "store.json"))

	args1 := map[string]interface{}{"a": 1, "b": 2}
	args2 := map[string]interface{}{"b": 2, "a": 1}

	if err := s.Record("tool", args1, true, 0); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := s.Lookup("tool", args2); !ok {
		t.Fatal("expected key-order-independent hit")
	}
}

func TestLookupMissOnDifferentArguments(t *testing.T) {
	dir := t.TempDir()
	s, _ := NewStore(filepath.Join(dir, "store.json"))

	s.Record("tool", map[string]interface{}{"x": 1}, true, 0)
	if _, ok, _ := s.Lookup("tool", map[string]interface{}{"x": 2}); ok {
		t.Fatal("expected miss for differing argument value")
	}
}

func TestPersistsAcrossReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store.json")

	s1, _ := NewStore(path)
	s1.Record("exec", map[string]interface{}{"cmd": "ls"}, false, 0)

	s2, err := NewStore(path)
	if err != nil {
		t.Fatal(err)
	}
	rec, ok, _ := s2.Lookup("exec", map[string]interface{}{"cmd": "ls"})
	if !ok || rec.Allowed {
		t.Fatalf("expected reloaded denied record, got ok=%v rec=%+v", ok, rec)
	}
}
