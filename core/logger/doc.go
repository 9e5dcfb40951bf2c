// Package logger builds the zap logger shared by the CLI and the HTTP server.
//
// Production runs log JSON at info level. The console format is meant for
// operators running the sync command by hand. Every HTTP request carries a
// ray id; WithRayID attaches it so a synchronization triggered over HTTP can
// be followed through the engine logs.
//
//	log, _ := logger.New(&cfg.Log)
//	l := logger.WithRayID(log, c)
//	l.Error("Sync failed", zap.Error(err))
package logger
