package checkout

import (
	"context"
	"strings"
	"testing"
)

func neverTaken(ctx context.Context, code string) (bool, error) { return false, nil }

func TestNewOrderCodeFormat(t *testing.T) {
	code, err := NewOrderCode(context.Background(), "MP", neverTaken)
	if err != nil {
		t.Fatalf("NewOrderCode: %v", err)
	}
	if !strings.HasPrefix(code, "MP-") {
		t.Fatalf("missing prefix: %q", code)
	}
	body := strings.TrimPrefix(code, "MP-")
	if len(body) != codeLength {
		t.Fatalf("expected %d code chars, got %q", codeLength, body)
	}
	for _, c := range body {
		if !strings.ContainsRune(codeAlphabet, c) {
			t.Fatalf("character %q outside alphabet in %q", c, code)
		}
	}
}

func TestNewOrderCodeRetriesOnCollision(t *testing.T) {
	calls := 0
	exists := func(ctx context.Context, code string) (bool, error) {
		calls++
		return calls <= 2, nil // first two candidates collide
	}
	code, err := NewOrderCode(context.Background(), "MP", exists)
	if err != nil {
		t.Fatalf("NewOrderCode: %v", err)
	}
	if code == "" {
		t.Fatal("expected a code after retries")
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestNewOrderCodeExhaustsRetries(t *testing.T) {
	alwaysTaken := func(ctx context.Context, code string) (bool, error) { return true, nil }
	_, err := NewOrderCode(context.Background(), "MP", alwaysTaken)
	if err != ErrCodeExhausted {
		t.Fatalf("expected ErrCodeExhausted, got %v", err)
	}
}
