// Package snapshot persists session snapshots across reconnects and server
// restarts.
//
// A snapshot is an opaque byte payload keyed by session ID with an expiry;
// Envelope is the standard payload form (rendered HTML plus resume state).
// The Store interface defines the persistence contract:
//
//	store := snapshot.NewMemoryStore()
//	// or
//	store := snapshot.NewSQLStore(db)
//	// or
//	store, err := snapshot.OpenRedisStoreFromEnv()
//
// MemoryStore suits a single server. RedisStore and SQLStore share snapshots
// across a fleet so a session can resume on any instance. An S3-backed
// example lives behind the s3example build tag.
package snapshot
