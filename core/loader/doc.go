// Package loader registers HTTP features and mounts the enabled ones on a
// Fiber router.
//
// A feature bundles a service with its handler and reports whether it should
// be mounted. The sync server registers a single feature today; the Manager
// keeps start-up uniform and fails fast when a feature cannot load.
//
//	mgr := loader.NewManager(logger)
//	mgr.Register(syncfeature.NewFeature(engine, store, client, opts, logger))
//	if err := mgr.LoadAll(app); err != nil {
//	    logger.Fatal("Failed to load features", zap.Error(err))
//	}
package loader
