// Package session adapts the external platform's session lifecycle to the
// application.
//
// Session establishment belongs to the platform, so [Hooks] only clears the
// platform's cookies on sign-out and relays the current claims from an
// injected [claims.Provider].
//
// # What this package must NOT do
//
//   - Issue, sign, or encrypt cookies.
//   - Translate or retry provider errors.
//   - Hold per-request state.
package session
