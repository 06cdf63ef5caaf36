package app

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"projectbank/cmd/security/token"
)

// LoadTokenKey returns the session signing key.
//
// With RequireTokenKey set a missing or short PB_TOKEN_KEY fails startup.
// Otherwise a missing key is replaced by a random one, so issued sessions
// only live as long as the process.
func LoadTokenKey(cfg Config, log Logger) ([]byte, error) {
	key, err := token.KeyFromEnv()
	switch {
	case err == nil:
		return key, nil
	case errors.Is(err, token.ErrKeyTooShort):
		return nil, fmt.Errorf("security policy: %s is too short (min %d bytes)", token.KeyEnv, token.MinKeyBytes)
	case errors.Is(err, token.ErrKeyMissing) && cfg.RequireTokenKey:
		return nil, fmt.Errorf("security policy: PB_REQUIRE_TOKEN_KEY=true but %s is missing", token.KeyEnv)
	case errors.Is(err, token.ErrKeyMissing):
	default:
		return nil, err
	}

	buf := make([]byte, token.MinKeyBytes)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("generate token key: %w", err)
	}
	key = []byte(hex.EncodeToString(buf))
	log.Warn("security.token_key.ephemeral", "env", token.KeyEnv, "fingerprint", token.Fingerprint(string(key)))
	return key, nil
}
