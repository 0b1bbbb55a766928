// Package accounts implements the user account lifecycle: registration with
// email verification, login/logout backed by JWT session cookies, password
// reset, and a read-only profile projection.
//
// Verification and reset links carry stateless action tokens: each token is
// signed over a fingerprint of the mutable user fields it attests to, so
// consuming the token (activating the account, changing the password hash)
// invalidates every previously issued token for that purpose without any
// revocation bookkeeping. See ActionTokens.
//
// Persistence runs on Bun repositories; uniqueness checks and writes share a
// transaction so concurrent registrations cannot race the username/email
// constraints.
package accounts
