package bcrypt

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultCost = 10
)

var ErrMismatch = errors.New("secret does not match hash")

// HashSecret admin anahtarını hashler
func HashSecret(secret string) (string, error) {
	if secret == "" {
		return "", errors.New("empty secret")
	}
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(secret), DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash secret: %v", err)
	}
	return string(hashedBytes), nil
}

// CompareSecret hash ile plain text anahtarı karşılaştırır
func CompareSecret(hash, secret string) error {
	if !VerifyHash(hash) {
		return fmt.Errorf("not a bcrypt hash")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrMismatch
		}
		return fmt.Errorf("secret comparison failed: %v", err)
	}
	return nil
}

// VerifyHash verilen hash'in geçerli bir bcrypt hash'i olup olmadığını kontrol eder
func VerifyHash(hash string) bool {
	return len(hash) == 60 && hash[0:2] == "$2"
}
