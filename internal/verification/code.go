package verification

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	codeMin = 100000
	codeMax = 999999
)

// CodeGenerator produces one-time codes.
type CodeGenerator interface {
	NewCode() (string, error)
}

// RandomCodes draws codes uniformly from 100000..999999, so every code has
// exactly six digits and never starts with zero.
type RandomCodes struct{}

// NewCode returns a fresh six-digit code.
func (RandomCodes) NewCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeMax-codeMin+1))
	if err != nil {
		return "", fmt.Errorf("generating verification code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+codeMin), nil
}

// FixedCodes returns the given codes in order and then repeats the last one.
// It is meant for tests and demos.
type FixedCodes struct {
	Codes []string
	next  int
}

// NewCode returns the next configured code.
func (f *FixedCodes) NewCode() (string, error) {
	if len(f.Codes) == 0 {
		return "", fmt.Errorf("no fixed codes configured")
	}
	code := f.Codes[f.next]
	if f.next < len(f.Codes)-1 {
		f.next++
	}
	return code, nil
}
