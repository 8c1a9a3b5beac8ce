package codegen

import (
	"crypto/rand"
	"math/big"
	"strconv"
)

const (
	codeMin  = 100000
	codeSpan = 900000
)

// VerificationCode generates a 6-digit numeric verification code uniformly
// sampled from 100000 to 999999 inclusive.
func VerificationCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeSpan))
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(n.Int64()+codeMin, 10), nil
}
