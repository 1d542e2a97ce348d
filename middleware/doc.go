// Package middleware exposes HTTP middleware adapters built on top of
// authlink.Engine.
//
// # Guards
//
//   - [RequireClaims] rejects requests without a signed-in principal.
//   - [RequireAdmin] additionally requires admin rights.
//   - [ResolveUser] maps the principal to its internal user ID.
//   - [SignOutHandler] expires the platform session cookies.
//
// Guards store the principal with authlink.WithClaims and the user ID with
// authlink.WithUserID.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT implement
// authentication logic itself. All decisions are delegated to the Engine.
//
// # What this package must NOT do
//
//   - Parse or verify credentials directly (delegates to the claims provider).
//   - Access storage (Engine handles I/O).
package middleware
