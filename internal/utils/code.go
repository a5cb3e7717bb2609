package utils

import (
    "crypto/rand"
    "fmt"
    "io"
    "math/big"

    "golang.org/x/crypto/bcrypt"
)

const (
    codeMin  = 100000
    codeSpan = 900000 // codes are uniform over [100000, 999999]
)

// NewNumericCode returns a six digit code drawn uniformly from r.  A nil
// reader means crypto/rand.
func NewNumericCode(r io.Reader) (string, error) {
    if r == nil {
        r = rand.Reader
    }
    n, err := rand.Int(r, big.NewInt(codeSpan))
    if err != nil {
        return "", fmt.Errorf("generate code: %w", err)
    }
    return fmt.Sprintf("%06d", codeMin+n.Int64()), nil
}

// HashCode returns the bcrypt hash of a one-time code using the given cost.
func HashCode(code string, cost int) (string, error) {
    b, err := bcrypt.GenerateFromPassword([]byte(code), cost)
    if err != nil {
        return "", err
    }
    return string(b), nil
}

// VerifyCode safely compares a bcrypt hash and a plain code.
func VerifyCode(hash, code string) bool {
    return bcrypt.CompareHashAndPassword([]byte(hash), []byte(code)) == nil
}
