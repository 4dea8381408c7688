package utils

import "golang.org/x/crypto/bcrypt"

// MinPasswordLen is the minimum accepted password length at signup and reset.
const MinPasswordLen = 8

// HashPassword returns a bcrypt hash of the plaintext using the given cost.
// Plaintext passwords are never stored; a new hash is computed on every
// password write.
func HashPassword(plain string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword safely compares a bcrypt hash and a plaintext password.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
