// Package jwt issues and verifies HS256 access tokens for authenticated subjects.
//
// Only HS256 is accepted. The header algorithm must match exactly, so "none" and
// any substituted algorithm fail verification. Issuer and audience are enforced
// when configured, including on the WithoutExpiryCheck path.
package jwt
