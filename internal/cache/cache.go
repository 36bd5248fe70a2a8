package cache

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ReferenceGuard claims payment gateway references so one reference is
// finalized by at most one caller while the claim lives. Claim returns a
// token that Release must present; a stale token releases nothing.
type ReferenceGuard interface {
	Claim(ctx context.Context, reference string, ttl time.Duration) (token string, ok bool, err error)
	Release(ctx context.Context, reference string, token string) error
}

type memoryClaim struct {
	token   string
	expires time.Time
}

// MemoryReferenceGuard keeps claims in process memory.
type MemoryReferenceGuard struct {
	mu     sync.Mutex
	claims map[string]memoryClaim
	now    func() time.Time
}

func NewMemoryReferenceGuard() *MemoryReferenceGuard {
	return &MemoryReferenceGuard{
		claims: make(map[string]memoryClaim),
		now:    time.Now,
	}
}

func (g *MemoryReferenceGuard) Claim(_ context.Context, reference string, ttl time.Duration) (string, bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if claim, ok := g.claims[reference]; ok && now.Before(claim.expires) {
		return "", false, nil
	}
	token := uuid.NewString()
	g.claims[reference] = memoryClaim{token: token, expires: now.Add(ttl)}

	for ref, claim := range g.claims {
		if !now.Before(claim.expires) {
			delete(g.claims, ref)
		}
	}
	return token, true, nil
}

func (g *MemoryReferenceGuard) Release(_ context.Context, reference string, token string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if claim, ok := g.claims[reference]; ok && claim.token == token {
		delete(g.claims, reference)
	}
	return nil
}
