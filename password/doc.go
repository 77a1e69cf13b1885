// Package password hashes and verifies passwords with Argon2id.
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Argon2.NeedsUpgrade] reports hashes produced with weaker parameters so
// callers can rehash after the next successful login. The session layer
// treats hashing as an opaque [Hasher]; only the demo service uses it.
package password
