// Package auth provides pluggable inbound authentication for the relay.
//
// Authentication uses a chain-of-responsibility pattern with three-outcome
// voting: each authenticator returns Yes (identity found), No (credentials
// invalid), or Abstain (can't handle). A configurable default decides when
// all authenticators abstain.
//
// Auth is implemented as HTTP middleware, keeping it decoupled from the
// relay service. The middleware also enforces per-tier rate limits once a
// caller is identified.
package auth
