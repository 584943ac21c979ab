package checkpoint

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestStore_LoadMissingFile(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "processed_courses.json"))
	set, err := s.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(set) != 0 {
		t.Errorf("Load() = %v, want empty", set)
	}
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "processed_courses.json")
	s := NewStore(path)

	if err := s.Save(NewSet("WINE 2000", "HOSF 9489", "ACCT 1000")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != `["ACCT 1000","HOSF 9489","WINE 2000"]` {
		t.Errorf("file content = %s, want sorted JSON array", raw)
	}

	set, err := s.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !set.Has("HOSF 9489") || len(set) != 3 {
		t.Errorf("Load() = %v", set.Sorted())
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %v", entries)
	}
}

func TestStore_LoadCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "processed_courses.json")
	if err := os.WriteFile(path, []byte(`["ACCT 1000",`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewStore(path).Load(); err == nil {
		t.Error("expected error for truncated checkpoint")
	}
}

func TestSet(t *testing.T) {
	s := NewSet()
	if !s.Add("A") || s.Add("A") {
		t.Error("Add should report only the first insertion")
	}
	s.Add("C")
	s.Add("B")
	if got := s.Sorted(); !reflect.DeepEqual(got, []string{"A", "B", "C"}) {
		t.Errorf("Sorted() = %v", got)
	}
	s.Remove("B")
	if s.Has("B") {
		t.Error("Remove did not delete")
	}
}
