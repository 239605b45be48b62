package local

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
)

type record struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "data"))
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	return store
}

func TestNewStore_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "store")
	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	if store.Path() != dir {
		t.Errorf("Path() = %q, want %q", store.Path(), dir)
	}
	info, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("directory not created: %v", err)
	}
	if !info.IsDir() {
		t.Error("expected directory, got file")
	}
}

func TestStore_SaveLoadDelete(t *testing.T) {
	store := newTestStore(t)

	if err := store.Save("programs", "p1", record{Name: "first", Value: 1}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := store.Save("programs", "p1", record{Name: "second", Value: 2}); err != nil {
		t.Fatalf("Save() overwrite error = %v", err)
	}

	var got record
	if err := store.Load("programs", "p1", &got); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Name != "second" || got.Value != 2 {
		t.Errorf("Load() = %+v, want overwritten record", got)
	}
	if !store.Exists("programs", "p1") {
		t.Error("Exists() = false after Save")
	}

	if err := store.Delete("programs", "p1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := store.Load("programs", "p1", &got); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load() after Delete error = %v, want ErrNotFound", err)
	}
	if err := store.Delete("programs", "p1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete() twice error = %v, want ErrNotFound", err)
	}
}

func TestStore_SaveLeavesNoTempFiles(t *testing.T) {
	store := newTestStore(t)
	for i := 0; i < 5; i++ {
		if err := store.Save("programs", "p1", record{Value: i}); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}

	entries, err := os.ReadDir(filepath.Join(store.Path(), "programs"))
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("leftover temp file %s", e.Name())
		}
	}
	if len(entries) != 1 {
		t.Errorf("entries = %d, want 1", len(entries))
	}
}

func TestStore_List(t *testing.T) {
	store := newTestStore(t)

	ids, err := store.List("missing")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("List() of missing collection = %v, want empty", ids)
	}

	for _, id := range []string{"c", "a", "b"} {
		store.Save("items", id, record{Name: id})
	}
	// Child directories are not records.
	store.SaveDir("items", "a", "tasks", "t1", record{})

	ids, err = store.List("items")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	sort.Strings(ids)
	if strings.Join(ids, ",") != "a,b,c" {
		t.Errorf("List() = %v, want [a b c]", ids)
	}
}

func TestStore_Dir(t *testing.T) {
	store := newTestStore(t)

	for _, name := range []string{"t1", "t2"} {
		if err := store.SaveDir("programs", "p1", "tasks", name, record{Name: name}); err != nil {
			t.Fatalf("SaveDir() error = %v", err)
		}
	}

	var got record
	if err := store.LoadDir("programs", "p1", "tasks", "t2", &got); err != nil {
		t.Fatalf("LoadDir() error = %v", err)
	}
	if got.Name != "t2" {
		t.Errorf("LoadDir() name = %q, want t2", got.Name)
	}
	if err := store.LoadDir("programs", "p1", "tasks", "t9", &got); !errors.Is(err, ErrNotFound) {
		t.Errorf("LoadDir() missing error = %v, want ErrNotFound", err)
	}

	names, err := store.ListDir("programs", "p1", "tasks")
	if err != nil {
		t.Fatalf("ListDir() error = %v", err)
	}
	if len(names) != 2 {
		t.Errorf("ListDir() = %v, want 2 names", names)
	}
	names, err = store.ListDir("programs", "p2", "tasks")
	if err != nil || len(names) != 0 {
		t.Errorf("ListDir() of missing dir = %v, %v", names, err)
	}
}

func TestStore_Concurrency(t *testing.T) {
	store := newTestStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			store.Save("concurrent", string(rune('a'+n)), record{Value: n})
		}(i)
		go func() {
			defer wg.Done()
			store.List("concurrent")
		}()
	}
	wg.Wait()

	ids, _ := store.List("concurrent")
	if len(ids) != 10 {
		t.Errorf("List() = %d ids, want 10", len(ids))
	}
}
