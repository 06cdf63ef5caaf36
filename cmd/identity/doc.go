// Package identity holds student accounts for the project bank.
//
// It defines the User model, the Store persistence boundary with in-memory
// and PostgreSQL implementations, and the normalization rules for emails and
// roll numbers. Passwords are hashed with security/password before storage.
package identity
