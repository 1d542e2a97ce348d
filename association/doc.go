// Package association owns the bidirectional auth-ID / user-ID mapping.
//
// The mapping is stored as two independently keyed record collections:
// one keyed by the external auth ID ([AuthIDRecord]) and one keyed by the
// internal user ID ([UserAuthRecord]). Either side may be created by other
// subsystems before the association exists, so the collections are never
// joined into a single record.
//
// # Consistency contract
//
// [Service.Associate] performs two independent writes. A failure between the
// first write (AuthIDRecord) and the second (UserAuthRecord) leaves a
// one-sided mapping. Nothing repairs this inline; [Service.Reconcile] is the
// explicit repair path.
//
// Concurrent associate calls for the same key race at the storage layer and
// the last write per record wins.
//
// # What this package must NOT do
//
//   - Import the root authlink package, claims, or session.
//   - Physically remove records. Deletion only sets the tombstone flag.
//   - Retry storage failures.
package association
