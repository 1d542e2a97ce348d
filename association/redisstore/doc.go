// Package redisstore is the Redis backend for the association collections.
//
// # Key layout
//
//	<prefix>:aid:<authID>   binary AuthIDRecord
//	<prefix>:uid:<userID>   binary UserAuthRecord
//	<prefix>:aidx:<userID>  authID (index used when the UserAuthRecord is missing)
//
// Keys never expire. Tombstoned records stay in place with the deleted flag
// set.
//
// # Binary encoding
//
// Each value is a version byte, a flag byte (bit 0 = deleted), the
// cross-referenced ID as a 1-byte length-prefixed string, and the creation
// and update times as big-endian unix milliseconds. Payloads with an unknown
// version or a truncated body decode to [association.ErrRecordCorrupt].
//
// # What this package must NOT do
//
//   - Apply lookup visibility rules; tombstoned records are returned as-is.
//   - Retry failed commands.
package redisstore
