// Package config provides loading and environment overlay for xwork runtime
// configuration. It exposes a Default() baseline, file loading for JSON and
// YAML, and an XWORK_* environment overlay.
//
// Example:
//
//	cfg := config.Default()
//	if fileCfg, err := config.Load("/etc/xwork.yaml"); err == nil {
//	    cfg = fileCfg
//	}
//	if err := config.FromEnv(&cfg); err != nil {
//	    return err
//	}
//	rt, _ := runtime.Open(runtime.Options{DataDir: config.DefaultDataDir(), Config: cfg})
//	defer rt.Close()
package config
