package testfixtures

import (
	"fmt"
	"sync"
)

// KeyTokens hands out predictable storage key prefixes such as "key-0001"
// so tests can name the files a store writes.
type KeyTokens struct {
	mu      sync.Mutex
	prefix  string
	counter int
}

// NewKeyTokens returns a token source using prefix, or "key" when empty.
func NewKeyTokens(prefix string) *KeyTokens {
	if prefix == "" {
		prefix = "key"
	}
	return &KeyTokens{prefix: prefix}
}

// Next returns the next token.
func (k *KeyTokens) Next() string {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.counter++
	return fmt.Sprintf("%s-%04d", k.prefix, k.counter)
}

// Issued reports how many tokens have been handed out.
func (k *KeyTokens) Issued() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.counter
}
