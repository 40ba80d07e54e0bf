package core

import (
	"crypto/rand"
	"fmt"
	"strings"
)

// verificationAlphabet omits 0/O and 1/I so codes typed by hand into a
// profile description stay unambiguous.
const verificationAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

type VerificationCodeGenerator struct {
	prefix string
	length int
}

func NewVerificationCodeGenerator(prefix string, length int) VerificationCodeGenerator {
	return VerificationCodeGenerator{
		prefix: strings.TrimSpace(prefix),
		length: length,
	}
}

func (g VerificationCodeGenerator) VerificationCode() (string, error) {
	length := g.length
	if length <= 0 {
		length = 4
	}
	raw := make([]byte, length)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("core: generate verification code: %w", err)
	}
	var builder strings.Builder
	builder.Grow(len(g.prefix) + length)
	builder.WriteString(g.prefix)
	for _, b := range raw {
		builder.WriteByte(verificationAlphabet[int(b)%len(verificationAlphabet)])
	}
	return builder.String(), nil
}
