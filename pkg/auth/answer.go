package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Argon2id parameters for security answer hashing (OWASP minimum profile)
const (
	AnswerSaltLength = 16
	answerTime       = 2
	answerMemoryKiB  = 19 * 1024
	answerThreads    = 1
	answerKeyLength  = 32
)

// NormalizeAnswer trims, NFKC-normalizes and case-folds an answer so that
// "  Fluffy " and "FLUFFY" hash identically.
func NormalizeAnswer(answer string) string {
	s := norm.NFKC.String(strings.TrimSpace(answer))
	// Casers carry state and are not safe for concurrent use
	return cases.Fold().String(s)
}

// GenerateSalt returns a fresh random salt for one answer
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, AnswerSaltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return salt, nil
}

// HashAnswer derives the stored hash of a plaintext answer
func HashAnswer(answer string, salt []byte) []byte {
	return argon2.IDKey([]byte(NormalizeAnswer(answer)), salt, answerTime, answerMemoryKiB, answerThreads, answerKeyLength)
}

// CompareAnswer reports whether answer matches the stored hash, in constant time
func CompareAnswer(storedHash, salt []byte, answer string) bool {
	if len(storedHash) == 0 || len(salt) == 0 {
		return false
	}
	candidate := HashAnswer(answer, salt)
	return subtle.ConstantTimeCompare(storedHash, candidate) == 1
}
