package pebblestore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cockroachdb/pebble"
)

type testMetrics struct {
	read         int
	batchCommits int
	batchOps     int
}

func (m *testMetrics) ObserveRead(d time.Duration, bytes int) { m.read += bytes }
func (m *testMetrics) ObserveBatchCommit(d time.Duration, numOps int, bytes int) {
	m.batchCommits++
	m.batchOps += numOps
}

func newTestDB(t *testing.T) (*DB, *testMetrics) {
	t.Helper()
	metrics := &testMetrics{}
	db, err := Open(Options{
		DataDir:       t.TempDir(),
		Fsync:         FsyncModeInterval,
		FsyncInterval: 2 * time.Millisecond,
		Metrics:       metrics,
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, metrics
}

func TestSetGet(t *testing.T) {
	db, metrics := newTestDB(t)
	if err := db.Set([]byte("k1"), []byte("v1")); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := db.Get([]byte("k1"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != "v1" {
		t.Fatalf("got %q", got)
	}
	if metrics.read == 0 {
		t.Fatalf("expected read metrics to record bytes")
	}
	if _, err := db.Get([]byte("missing")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateReadsOwnWrites(t *testing.T) {
	db, metrics := newTestDB(t)
	ctx := context.Background()
	err := db.Update(ctx, func(b *pebble.Batch) error {
		if err := b.Set([]byte("a"), []byte("1"), nil); err != nil {
			return err
		}
		v, err := db.GetFrom(b, []byte("a"))
		if err != nil {
			return err
		}
		if string(v) != "1" {
			t.Fatalf("batch read %q", v)
		}
		return b.Set([]byte("b"), []byte("2"), nil)
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if metrics.batchCommits != 1 || metrics.batchOps != 2 {
		t.Fatalf("commit metrics: %+v", metrics)
	}
}

func TestUpdateDiscardsOnError(t *testing.T) {
	db, _ := newTestDB(t)
	boom := errors.New("boom")
	err := db.Update(context.Background(), func(b *pebble.Batch) error {
		_ = b.Set([]byte("x"), []byte("1"), nil)
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if _, err := db.Get([]byte("x")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("failed update must not write, got %v", err)
	}
}

func TestViewIsSnapshot(t *testing.T) {
	db, _ := newTestDB(t)
	ctx := context.Background()
	if err := db.Set([]byte("k"), []byte("old")); err != nil {
		t.Fatalf("set: %v", err)
	}
	err := db.View(ctx, func(r pebble.Reader) error {
		if err := db.Set([]byte("k"), []byte("new")); err != nil {
			return err
		}
		v, err := db.GetFrom(r, []byte("k"))
		if err != nil {
			return err
		}
		if string(v) != "old" {
			t.Fatalf("snapshot saw %q", v)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestScanPrefix(t *testing.T) {
	db, _ := newTestDB(t)
	for _, k := range []string{"p/1", "p/2", "p/3", "q/1"} {
		if err := db.Set([]byte(k), []byte(k)); err != nil {
			t.Fatalf("set: %v", err)
		}
	}
	var seen []string
	err := db.View(context.Background(), func(r pebble.Reader) error {
		return ScanPrefix(r, []byte("p/"), func(k, _ []byte) (bool, error) {
			seen = append(seen, string(k))
			return len(seen) < 2, nil
		})
	})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(seen) != 2 || seen[0] != "p/1" || seen[1] != "p/2" {
		t.Fatalf("scan order: %v", seen)
	}
}

func TestPrefixEnd(t *testing.T) {
	if got := string(PrefixEnd([]byte("ab"))); got != "ac" {
		t.Fatalf("PrefixEnd(ab) = %q", got)
	}
	if got := PrefixEnd([]byte{0x61, 0xff}); string(got) != "b" {
		t.Fatalf("PrefixEnd carry = %q", got)
	}
	if PrefixEnd([]byte{0xff}) != nil {
		t.Fatalf("all-0xff prefix has no end")
	}
}
