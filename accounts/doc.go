// Package accounts provides goReset.AccountProvider implementations.
//
// SQLProvider resolves accounts in a users table and stores the new
// password as an Argon2id hash. MemoryProvider keeps everything in process
// and suits tests and examples.
package accounts
