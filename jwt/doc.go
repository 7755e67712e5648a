// Package jwt signs and verifies the engine's bearer tokens. Access and
// refresh tokens share a payload shape (subject, optional device binding,
// expiry) but are signed with distinct HS256 secrets and carry distinct
// lifetimes, so neither class can be replayed as the other.
package jwt
