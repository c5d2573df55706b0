package pebblejobs

import (
	"testing"

	pebblestore "github.com/rzbill/xwork/internal/storage/pebble"
	"github.com/rzbill/xwork/internal/store"
	"github.com/rzbill/xwork/internal/store/storetest"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	db, err := pebblestore.Open(pebblestore.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeNever})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	s, err := Open(db)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore(t *testing.T) {
	storetest.Run(t, newTestStore)
}

func TestReopenKeepsSchema(t *testing.T) {
	dir := t.TempDir()
	db, err := pebblestore.Open(pebblestore.Options{DataDir: dir})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := Open(db); err != nil {
		t.Fatalf("store: %v", err)
	}
	_ = db.Close()

	db, err = pebblestore.Open(pebblestore.Options{DataDir: dir})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()
	if _, err := Open(db); err != nil {
		t.Fatalf("reopen store: %v", err)
	}
}

func TestIndexKeysDoNotCollide(t *testing.T) {
	a := string(indexPrefix(prefixTopicIdx, "ab"))
	b := string(indexKey(prefixTopicIdx, "abc", "0001"))
	if len(b) >= len(a) && b[:len(a)] == a {
		t.Fatalf("topic ab must not prefix topic abc")
	}
	if got := idFromIndexKey(indexKey(prefixOwnerIdx, "worker/1", "00ff")); got != "00ff" {
		t.Fatalf("id from key: %q", got)
	}
}
