// Package storage provides an abstraction layer for object storage services.
//
// It wraps the MinIO Go client behind the Client interface so the report
// archive can be tested with the mock in core/storage/mocks. Both AWS S3 and
// self-hosted MinIO instances are supported.
//
// # Helpers
//
//   - EnsureBucket: creates the archive bucket on first use.
//   - PutJSON / GetJSON: store and load JSON documents; missing keys map to ErrNotFound.
//   - ListKeys / RemoveKeys: enumerate a prefix and delete in batches.
//
// # Usage
//
//	client, err := storage.NewClient(cfg.Storage)
//	err = storage.PutJSON(ctx, client, cfg.Storage.Bucket, "reports/Film/latest.json", report)
package storage
