package identity

import (
	"errors"

	"projectbank/cmd/security/password"
)

// PasswordHasher hashes and verifies plain passwords.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(encoded, plain string) (bool, error)
}

var _ PasswordHasher = password.Config{}

// DefaultHasher returns the env-configured Argon2id hasher, falling back to
// password.DefaultConfig when the environment is invalid.
func DefaultHasher() password.Config {
	cfg, err := password.FromEnv()
	if err != nil {
		return password.DefaultConfig()
	}
	return cfg
}

// CheckPassword verifies plain against u's stored hash.
// A mismatch or an unusable hash both report ErrInvalidCredentials.
func CheckPassword(h PasswordHasher, u User, plain string) error {
	const op = "identity.CheckPassword"

	ok, err := h.Verify(u.PasswordHash, plain)
	if err != nil {
		if errors.Is(err, password.ErrInvalidHash) {
			return OpError{Op: op, Kind: ErrInvalidCredentials, Msg: "unusable stored hash"}
		}
		return err
	}
	if !ok {
		return OpError{Op: op, Kind: ErrInvalidCredentials}
	}
	return nil
}
