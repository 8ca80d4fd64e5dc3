// Client secret hashing.
//
// Client secrets are stored as bcrypt hashes. The salt and cost are embedded
// in each hash, so Verify needs nothing but the stored string.
//
// Hash format:
//
//	$2a$12$<22-char salt><31-char hash>
//	 ^   ^
//	 |   cost (2^12 rounds)
//	 version
package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// defaultCost is the bcrypt work factor. Verification happens once per token
// request, not per API call, so a high cost is affordable.
const defaultCost = 12

// ErrSecretMismatch is returned by Verify when the secret is wrong.
var ErrSecretMismatch = errors.New("auth: client secret does not match")

// SecretHasher provides bcrypt hashing and verification of client secrets.
// The cost is a field so tests can use the minimum.
type SecretHasher struct {
	cost int
}

// NewSecretHasher creates a SecretHasher with cost 12.
func NewSecretHasher() *SecretHasher {
	return &SecretHasher{cost: defaultCost}
}

// NewSecretHasherWithCost creates a SecretHasher with a custom cost. Tests in
// other packages pass bcrypt.MinCost; never do that in production.
func NewSecretHasherWithCost(cost int) *SecretHasher {
	return &SecretHasher{cost: cost}
}

// Hash hashes a plaintext secret. Secrets longer than 72 bytes are rejected
// because bcrypt would silently ignore the rest.
func (h *SecretHasher) Hash(secret string) (string, error) {
	if len(secret) > 72 {
		return "", errors.New("auth: client secret must be 72 bytes or fewer")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), h.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing client secret: %w", err)
	}
	return string(hashed), nil
}

// Verify checks secret against a stored hash. It returns ErrSecretMismatch
// for a wrong secret and a wrapped error for an unusable hash.
//
// bcrypt.CompareHashAndPassword compares in constant time.
func (h *SecretHasher) Verify(hash, secret string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrSecretMismatch
		}
		return fmt.Errorf("auth: comparing client secret hash: %w", err)
	}
	return nil
}
