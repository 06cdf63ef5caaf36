// Package password hashes and verifies student account passwords.
//
// Hashes are Argon2id in the PHC string format. The package also owns the
// password policy applied at registration time:
//   - length bounds (counted in runes)
//   - mixed-case letters plus at least one digit (portal default)
//   - optional rejection of trivially weak passwords
//
// Encoded hashes are treated as untrusted input during Verify and rejected when
// their cost parameters are far above the configured ones.
package password
