package auth

import (
	"context"
	"crypto/sha256"
	"sync"
	"time"
)

type cachedUser struct {
	user    User
	expires time.Time
}

// CachedVerifier remembers successful verifications for ttl so that every
// request does not round-trip to GoTrue. Rejections are never cached.
type CachedVerifier struct {
	next Verifier
	ttl  time.Duration
	now  func() time.Time

	mu      sync.Mutex
	entries map[[32]byte]cachedUser
}

func NewCachedVerifier(next Verifier, ttl time.Duration) *CachedVerifier {
	return &CachedVerifier{
		next:    next,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[[32]byte]cachedUser),
	}
}

func (v *CachedVerifier) VerifyAccessToken(ctx context.Context, accessToken string) (User, error) {
	if v.ttl <= 0 {
		return v.next.VerifyAccessToken(ctx, accessToken)
	}
	key := sha256.Sum256([]byte(accessToken))
	now := v.now()

	v.mu.Lock()
	if e, ok := v.entries[key]; ok && now.Before(e.expires) {
		v.mu.Unlock()
		return e.user, nil
	}
	v.mu.Unlock()

	user, err := v.next.VerifyAccessToken(ctx, accessToken)
	if err != nil {
		return User{}, err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	for k, e := range v.entries {
		if !now.Before(e.expires) {
			delete(v.entries, k)
		}
	}
	v.entries[key] = cachedUser{user: user, expires: now.Add(v.ttl)}
	return user, nil
}
