// Package pebblestore provides a thin wrapper around Pebble with fsync policy,
// serialized read-your-writes transactions, snapshot views and a commit
// metrics hook.
//
// Usage:
//
//	db, err := pebblestore.Open(pebblestore.Options{
//	    DataDir: "./data",
//	    Fsync:   pebblestore.FsyncModeInterval,
//	})
//	if err != nil { /* handle */ }
//	defer db.Close()
//
//	err = db.Update(ctx, func(b *pebble.Batch) error {
//	    if _, err := db.GetFrom(b, []byte("k")); err == nil {
//	        return nil
//	    }
//	    return b.Set([]byte("k"), []byte("v"), nil)
//	})
//
//	_ = db.View(ctx, func(r pebble.Reader) error {
//	    return pebblestore.ScanPrefix(r, []byte("k"), func(k, v []byte) (bool, error) {
//	        return true, nil
//	    })
//	})
package pebblestore
