// Package password implements password hashing and verification with Argon2id defaults.
//
// # Output format
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// The [Argon2] type supports transparent parameter upgrades: if the stored hash
// was produced with weaker parameters, [Argon2.NeedsRehash] returns true so the
// caller can re-hash on the next successful login.
//
// # Architecture boundaries
//
// This package owns hashing and verification only. Which accounts exist and
// where their hashes live is the caller's concern.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords — callers supply plaintext and receive hashes.
//   - Import any other rotauth package.
//   - Log plaintext passwords or hash parameters at runtime.
package password
