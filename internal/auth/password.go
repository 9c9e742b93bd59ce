package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

type Hasher struct {
	cost  int
	dummy []byte
}

func NewHasher(cost int) (*Hasher, error) {
	const op = "auth.NewHasher"

	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("%s: invalid bcrypt cost %d", op, cost)
	}

	// dummy is compared against when no user matches, so a miss costs the
	// same as a wrong password.
	dummy, err := bcrypt.GenerateFromPassword([]byte("alumni-network-dummy"), cost)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Hasher{cost: cost, dummy: dummy}, nil
}

func (h *Hasher) Hash(password string) (string, error) {
	const op = "auth.Hash"

	bytes, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return string(bytes), nil
}

// Verify reports false for a malformed or truncated hash instead of failing.
func (h *Hasher) Verify(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func (h *Hasher) VerifyDummy(password string) {
	_ = bcrypt.CompareHashAndPassword(h.dummy, []byte(password))
}
