// Package storage provides an abstraction layer for object storage services.
//
// It wraps the MinIO Go client to provide a simplified interface for common operations
// like checking bucket existence, uploading files, and listing objects. This abstraction
// supports both AWS S3 and self-hosted MinIO instances.
//
// # Client Interface
//
// The Client interface abstracts the underlying storage provider, making it easier
// to mock storage interactions for unit testing (as seen in core/storage/mocks).
//
// # Snapshots
//
// SnapshotStore keeps serialized relation end-point load states in a single bucket:
//
//   - EnsureBucket: Creates the bucket if needed.
//   - Save / Load: Writes and reads one snapshot by key.
//   - List / Delete / Purge: Manages snapshots below a key prefix.
//
// # Usage
//
//	client, err := storage.NewClient(cfg.Storage)
//	store := storage.NewSnapshotStore(client, cfg.Storage.Bucket)
//	err = store.Save(ctx, key, data)
package storage
