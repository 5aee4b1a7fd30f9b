package crypto

import "golang.org/x/crypto/bcrypt"

// bcryptCost matches the policy the rest of the platform hashes with.
const bcryptCost = 12

// HashPassword hashes plaintext using bcrypt. The plaintext must never appear
// in logs or error messages; bcrypt errors carry no password material.
func HashPassword(plain string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(plain), bcryptCost)
}

// VerifyPassword reports whether plaintext matches the stored hash. A
// mismatch is not an error condition, it is simply false.
func VerifyPassword(hash []byte, plain string) bool {
	return bcrypt.CompareHashAndPassword(hash, []byte(plain)) == nil
}
