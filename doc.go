// Package authlink links the identities an external authentication platform
// hands out (auth IDs) to the application's own user IDs, and adapts the
// platform's sign-in state to the application's session lifecycle.
//
// The package is designed for concurrent server workloads: Engine methods are safe to call
// from multiple goroutines after initialization through [Builder.Build].
//
// # Architecture boundaries
//
// authlink is the public surface. It exposes [Engine], [Builder], [Config], and value types
// (MetricsSnapshot, AuditEvent, etc.). The association rules live in the association
// package, storage backends under association/redisstore and association/pgstore, and
// request-scoped identity under claims and session.
//
// # What this package must NOT do
//
//   - Verify credentials or mint sessions. The external platform owns both.
//   - Retry storage calls. Failures surface to the caller wrapped in
//     [ErrStoreUnavailable].
//   - Perform I/O during [Builder.Build] beyond opening clients, unless
//     Store.AutoMigrate is set.
//
// # Consistency
//
// Each record write is atomic, but writes to the two collections are not.
// A crash between them leaves a one-sided mapping that [Engine.Reconcile]
// repairs.
package authlink
