// Package jwt verifies application-minted session tokens with strict
// validation semantics. It never issues tokens; minting belongs to whichever
// service owns the session.
package jwt
