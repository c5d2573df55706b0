// Package log provides xwork's structured logging facade.
//
// The package exposes a small Logger interface with leveled methods and a
// Field type for structured context. Records are routed through log/slog
// using a bridge handler that feeds our formatter and outputs, so every
// component logs with the same shape regardless of which API it used.
//
// Quick start
//
//	l := log.NewLogger(
//	    log.WithLevel(log.InfoLevel),
//	    log.WithFormatter(&log.TextFormatter{}),
//	    log.WithOutput(log.NewConsoleOutput()),
//	)
//	l = l.With(log.Component("acquire"), log.Str("topic", "invoices"))
//	l.Info("acquired jobs", log.Int("count", 3))
//
// # Configuration
//
// ApplyConfig builds a logger from a declarative Config (level, text or JSON
// format, optional redaction keys and sampling). RedirectStdLog routes the
// standard library logger (used by Pebble and goose) into a Logger.
package log
