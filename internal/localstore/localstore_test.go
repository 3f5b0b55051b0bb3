package localstore

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()

	fs, err := NewFileStore(filepath.Join(t.TempDir(), "state"))
	if err != nil {
		t.Fatalf("Failed to create file store: %v", err)
	}
	return map[string]Store{"file": fs, "memory": NewMemoryStore()}
}

func TestProperty_SetThenGetReturnsValue(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			properties := gopter.NewProperties(nil)

			properties.Property("the last value set for a key is returned", prop.ForAll(
				func(key string, first, second []byte) bool {
					if err := store.Set(key, first); err != nil {
						return false
					}
					if err := store.Set(key, second); err != nil {
						return false
					}

					got, ok, err := store.Get(key)
					return err == nil && ok && string(got) == string(second)
				},
				gen.RegexMatch(`[a-z][a-z0-9_-]{0,20}`),
				gen.SliceOf(gen.UInt8()),
				gen.SliceOf(gen.UInt8()),
			))

			properties.TestingRun(t, gopter.ConsoleReporter(false))
		})
	}
}

func TestStore_DeleteAndMissing(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if _, ok, err := store.Get("cart"); ok || err != nil {
				t.Fatalf("Expected missing key, got ok=%v err=%v", ok, err)
			}

			if err := store.Set("cart", []byte(`[]`)); err != nil {
				t.Fatalf("Failed to set: %v", err)
			}
			if err := store.Delete("cart"); err != nil {
				t.Fatalf("Failed to delete: %v", err)
			}
			if _, ok, _ := store.Get("cart"); ok {
				t.Error("Key should be gone after delete")
			}
			if err := store.Delete("cart"); err != nil {
				t.Errorf("Deleting a missing key should succeed, got %v", err)
			}
		})
	}
}

func TestStore_RejectsPathKeys(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			for _, key := range []string{"", "../escape", "a/b", "UPPER"} {
				if err := store.Set(key, nil); !errors.Is(err, ErrInvalidKey) {
					t.Errorf("Expected ErrInvalidKey for %q, got %v", key, err)
				}
			}
		})
	}
}

func TestFileStore_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	for i := 0; i < 5; i++ {
		if err := store.Set("auth", []byte(`{"token":"x"}`)); err != nil {
			t.Fatalf("Failed to set: %v", err)
		}
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 || entries[0].Name() != "auth.json" {
		names := []string{}
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("Expected only auth.json, got %v", names)
	}
}

func TestMemoryStore_CopiesValues(t *testing.T) {
	store := NewMemoryStore()
	value := []byte("abc")
	store.Set("cart", value)
	value[0] = 'z'

	got, _, _ := store.Get("cart")
	if string(got) != "abc" {
		t.Errorf("Store must keep its own copy, got %q", got)
	}
}
