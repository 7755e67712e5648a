// Package password implements the engine's one-way credential hashing using
// Argon2id in PHC string format. Verification fails closed: a malformed or
// empty stored hash is treated as a mismatch, never an error the caller must
// distinguish from a wrong password.
package password
