package snapstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/hazyhaar/entitlemate/snapshot"
)

func TestFileStore_Contract(t *testing.T) {
	exerciseStore(t, NewFile(FileConfig{Path: filepath.Join(t.TempDir(), "entitlements.json")}, nil))
}

func TestFileStore_DirectWrite(t *testing.T) {
	exerciseStore(t, NewFile(FileConfig{Path: filepath.Join(t.TempDir(), "entitlements.json"), DirectWrite: true}, nil))
}

func TestFileStore_NoTempLeftovers(t *testing.T) {
	dir := t.TempDir()
	s := NewFile(FileConfig{Path: filepath.Join(dir, "entitlements.json")}, nil)
	for i := 0; i < 3; i++ {
		if err := s.Save(context.Background(), sample()); err != nil {
			t.Fatal(err)
		}
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "entitlements.json" {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Fatalf("dir contents: %v", names)
	}
}

func TestFileStore_LoadCorrupt(t *testing.T) {
	// WHAT: A file that is not valid JSON surfaces as an error, not as empty.
	// WHY: Silently treating corruption as "no data" would hide data loss.
	path := filepath.Join(t.TempDir(), "entitlements.json")
	if err := os.WriteFile(path, []byte(`[{"a":`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFile(FileConfig{Path: path}, nil).Load(context.Background()); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestFileStore_ConcurrentSaves(t *testing.T) {
	// WHAT: After N concurrent saves the file equals exactly one of the payloads.
	// WHY: Two webhooks firing together must never leave a hybrid file.
	for _, direct := range []bool{false, true} {
		t.Run(fmt.Sprintf("direct=%v", direct), func(t *testing.T) {
			s := NewFile(FileConfig{Path: filepath.Join(t.TempDir(), "entitlements.json"), DirectWrite: direct}, nil)

			const n = 16
			payloads := make(map[string]bool, n)
			snaps := make([]snapshot.Snapshot, n)
			for i := range snaps {
				recs := make(snapshot.Snapshot, i+1)
				for j := range recs {
					recs[j] = snapshot.Record(fmt.Sprintf(`{"writer":%d,"row":%d}`, i, j))
				}
				snaps[i] = recs
				enc, _ := snapshot.Encode(recs)
				payloads[string(enc)] = true
			}

			var wg sync.WaitGroup
			for i := range snaps {
				wg.Add(1)
				go func(sn snapshot.Snapshot) {
					defer wg.Done()
					if err := s.Save(context.Background(), sn); err != nil {
						t.Error(err)
					}
				}(snaps[i])
			}
			wg.Wait()

			raw, err := s.Raw(context.Background())
			if err != nil {
				t.Fatal(err)
			}
			if !payloads[string(raw)] {
				t.Fatalf("final file matches no posted payload:\n%s", raw)
			}
		})
	}
}
