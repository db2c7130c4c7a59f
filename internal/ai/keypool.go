package ai

import "errors"

var (
	// ErrNoAPIKeys is returned at construction when no credentials are configured.
	ErrNoAPIKeys = errors.New("at least one Gemini API key is required")

	// ErrKeysExhausted is returned when every key in the pool has been rate limited.
	ErrKeysExhausted = errors.New("all Gemini API keys exhausted due to rate limiting")
)

// KeyPool is an ordered pool of API credentials with a rotation cursor.
// The primary key sits at position 0; fallback keys follow in the order
// they were configured.
type KeyPool struct {
	keys    []string
	current int
}

// NewKeyPool builds a pool from an ordered, deduplicated key list.
func NewKeyPool(keys []string) (*KeyPool, error) {
	if len(keys) == 0 {
		return nil, ErrNoAPIKeys
	}
	deduped := make([]string, 0, len(keys))
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		if k == "" || seen[k] {
			continue
		}
		deduped = append(deduped, k)
		seen[k] = true
	}
	if len(deduped) == 0 {
		return nil, ErrNoAPIKeys
	}
	return &KeyPool{keys: deduped}, nil
}

// Current returns the key at the cursor.
func (p *KeyPool) Current() string { return p.keys[p.current] }

// Position returns the cursor position, 0-based.
func (p *KeyPool) Position() int { return p.current }

// Size returns the number of keys in the pool.
func (p *KeyPool) Size() int { return len(p.keys) }

// Advance moves the cursor to the next key after a rate-limited attempt.
// ok is false when the rotation wraps back to the first key: every key has
// been tried and the pool is exhausted.
func (p *KeyPool) Advance() (key string, ok bool) {
	next, ok := rotate(len(p.keys), p.current)
	p.current = next
	if !ok {
		return "", false
	}
	return p.keys[p.current], true
}

// rotate is the pure rotation transition: given the pool size and the
// current cursor it yields the next cursor, reporting false when the
// rotation wraps back to the start.
func rotate(size, current int) (int, bool) {
	next := (current + 1) % size
	if next == 0 {
		return 0, false
	}
	return next, true
}
