// Package runtime wires storage, config, identity links and notifications
// into a single xwork node. It exposes Open/Close and health checks for the
// services layered on top.
//
// Example:
//
//	cfg := config.Default()
//	rt, _ := runtime.Open(ctx, runtime.Options{DataDir: "./data", Fsync: pebblestore.FsyncModeAlways, Config: cfg})
//	defer rt.Close()
//	_ = rt.CheckHealth(ctx)
package runtime
