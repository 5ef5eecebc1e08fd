package service

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// AuthorizationCheck decides whether a network origin may administer an
// election. The in-memory CreatorRegistry below is a deliberately weak,
// best-effort implementation (origins are spoofable); a credential-based
// one can be plugged in without touching the vote pipeline.
type AuthorizationCheck interface {
	// Record remembers the origin that created an election. First writer
	// wins; the record is never updated afterwards.
	Record(election common.Address, origin string)
	// Authorize returns ErrNotAuthorized when a different origin created
	// the election. Elections with no record pass: the registry only
	// lives for the process lifetime and restarts lose it.
	Authorize(election common.Address, origin string) error
}

// CreatorRegistry maps election contract addresses to the network origin
// that deployed them. Process-lifetime only, by design.
type CreatorRegistry struct {
	mu       sync.RWMutex
	creators map[common.Address]string
}

func NewCreatorRegistry() *CreatorRegistry {
	return &CreatorRegistry{
		creators: make(map[common.Address]string),
	}
}

func (r *CreatorRegistry) Record(election common.Address, origin string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.creators[election]; exists {
		return
	}
	r.creators[election] = origin
}

func (r *CreatorRegistry) Authorize(election common.Address, origin string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	creator, exists := r.creators[election]
	if !exists {
		return nil
	}
	if creator != origin {
		return ErrNotAuthorized
	}
	return nil
}
