package checkout

import (
	"context"
	"crypto/rand"
	"fmt"
)

const (
	codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789" // no 0/O/1/I
	codeLength   = 8
	codeAttempts = 5
)

// CodeExistsFunc reports whether a candidate code is already taken.
type CodeExistsFunc func(ctx context.Context, code string) (bool, error)

// NewOrderCode produces a short human-facing code like "MP-7KQ2XW9T".
// Collisions are unlikely but checked anyway; after codeAttempts tries the
// caller gets ErrCodeExhausted and the surrounding transaction rolls back.
func NewOrderCode(ctx context.Context, prefix string, exists CodeExistsFunc) (string, error) {
	for i := 0; i < codeAttempts; i++ {
		code, err := randomCode(prefix)
		if err != nil {
			return "", err
		}
		taken, err := exists(ctx, code)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
	}
	return "", ErrCodeExhausted
}

func randomCode(prefix string) (string, error) {
	buf := make([]byte, codeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return prefix + "-" + string(buf), nil
}
