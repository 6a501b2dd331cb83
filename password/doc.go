// Package password implements password hashing and verification with Argon2id defaults.
//
// # Output format
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Config.ForPolicy] sizes the hasher's byte cap to the reset length policy,
// so a password accepted before the token is consumed is never rejected by
// the hash step afterwards.
//
// # Architecture boundaries
//
// This package owns hashing, verification, and the length policy applied to a
// new password before a reset token is redeemed. Account providers hash the
// new password here before storing it.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords; callers supply plaintext and receive hashes.
//   - Import any other goReset package.
//   - Log plaintext passwords or hash parameters at runtime.
package password
