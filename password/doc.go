// Package password hashes passwords with argon2id and verifies argon2id and
// legacy bcrypt hashes.
//
// New hashes use the PHC string form with unpadded standard base64:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<key>
//
// Verify returns a [Result]. A correct password against a hash cheaper than
// the current parameters, or against bcrypt under a [Chain], yields
// [NeedsRehash]. A hash that cannot be decoded is an error wrapping
// [ErrMalformedHash], so callers can tell corrupt storage apart from a wrong
// password.
//
// Plaintext never leaves the call that received it. The package does not
// store hashes and imports no other credcore package.
package password
