package bundle

import (
	"crypto/rand"
	"fmt"
)

const (
	// TokenLength is the number of characters in a generated token.
	TokenLength = 8

	tokenAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
	// maxUnbiased is the largest multiple of len(tokenAlphabet) that fits in a byte.
	maxUnbiased = 256 - 256%len(tokenAlphabet)
)

// TokenSource produces candidate tokens.
type TokenSource func() (string, error)

// RandomToken returns a base62 token drawn from crypto/rand. Bytes that would bias
// the distribution are rejected.
func RandomToken() (string, error) {
	out := make([]byte, 0, TokenLength)
	buf := make([]byte, TokenLength*2)
	for len(out) < TokenLength {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("bundle: token entropy: %w", err)
		}
		for _, b := range buf {
			if int(b) >= maxUnbiased {
				continue
			}
			out = append(out, tokenAlphabet[int(b)%len(tokenAlphabet)])
			if len(out) == TokenLength {
				break
			}
		}
	}
	return string(out), nil
}

// ValidToken reports whether s looks like a token this package could have issued.
func ValidToken(s string) bool {
	if len(s) != TokenLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9', c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z':
		default:
			return false
		}
	}
	return true
}
