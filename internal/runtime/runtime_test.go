package runtime

import (
	"context"
	"testing"

	cfgpkg "github.com/rzbill/xwork/internal/config"
	"github.com/rzbill/xwork/internal/job"
	pebblestore "github.com/rzbill/xwork/internal/storage/pebble"
	"github.com/rzbill/xwork/internal/store"
)

func TestOpenCloseHealth(t *testing.T) {
	dir := t.TempDir()
	rt, err := Open(context.Background(), Options{DataDir: dir, Fsync: pebblestore.FsyncModeAlways, Config: cfgpkg.Default()})
	if err != nil {
		t.Fatalf("open runtime: %v", err)
	}
	defer rt.Close()
	if err := rt.CheckHealth(context.Background()); err != nil {
		t.Fatalf("health: %v", err)
	}
	if rt.DB() == nil || rt.Shared() {
		t.Fatalf("expected local pebble backend")
	}
}

func TestOpenLoadsIdentityLinks(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	rt, err := Open(ctx, Options{DataDir: dir, Fsync: pebblestore.FsyncModeAlways, Config: cfgpkg.Default()})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	err = rt.Store().Update(ctx, func(tx store.Tx) error {
		return tx.PutIdentityLink(job.IdentityLink{CorrelationID: "c1", UserID: "kermit"})
	})
	if err != nil {
		t.Fatalf("put link: %v", err)
	}
	if err := rt.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	rt, err = Open(ctx, Options{DataDir: dir, Fsync: pebblestore.FsyncModeAlways, Config: cfgpkg.Default()})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer rt.Close()
	if !rt.Identity().FindParticipants("c1").Matches("kermit", nil) {
		t.Fatalf("link not loaded on open")
	}
}
