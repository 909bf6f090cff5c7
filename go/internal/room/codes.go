package room

import (
	crand "crypto/rand"
	"math/big"
	"math/rand"
	"strings"
)

const (
	// CodeLength is the length of room codes.
	CodeLength = 6

	// codeChars excludes ambiguous characters (0/O, 1/I).
	codeChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

// NewCode generates a random room code: short, uppercase, shareable as an
// invite token.
func NewCode() string {
	code := make([]byte, CodeLength)
	for i := range code {
		n, err := crand.Int(crand.Reader, big.NewInt(int64(len(codeChars))))
		if err != nil {
			code[i] = codeChars[rand.Intn(len(codeChars))]
			continue
		}
		code[i] = codeChars[n.Int64()]
	}
	return string(code)
}

// NormalizeCode canonicalizes a user-entered room code. Codes are
// case-insensitive and stored uppercase.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidCode reports whether code has the right shape to be a room code.
func ValidCode(code string) bool {
	if len(code) != CodeLength {
		return false
	}
	for _, c := range code {
		if !strings.ContainsRune(codeChars, c) {
			return false
		}
	}
	return true
}
