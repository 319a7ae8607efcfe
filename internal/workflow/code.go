package workflow

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// CodeGenerator mints the spoken verification code for the voice stage.
type CodeGenerator func() (string, error)

var codeSpan = big.NewInt(9000)

// RandomCode returns a uniformly random four-digit code in 1000-9999.
func RandomCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpan)
	if err != nil {
		return "", fmt.Errorf("generate verification code: %w", err)
	}
	return fmt.Sprintf("%04d", n.Int64()+1000), nil
}
