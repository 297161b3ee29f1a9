package auth

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// GenerateCode returns a random 6-digit numeric code (100000–999999).
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
