// Package credential implements the one-time voting credential: a fresh
// secp256k1 keypair generated per vote attempt, used to sign exactly one
// ballot digest, then destroyed. The credential address is a one-way
// derivation of the private key and shares no input with the voter's
// identity, which is what keeps the on-chain vote unlinkable.
package credential

import (
	"crypto/ecdsa"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"vote-relay/ballot"
)

// ErrDestroyed is returned when a credential is used after its key
// material has been discarded.
var ErrDestroyed = errors.New("credential already destroyed")

// VoteCredential is an ephemeral keypair owned by a single in-flight vote
// request. The private key never leaves this package and is never
// persisted or logged.
type VoteCredential struct {
	key     *ecdsa.PrivateKey
	Address common.Address
}

// Generate creates a fresh credential from the system's cryptographically
// secure entropy source. An error here means the entropy source itself is
// unavailable and is not retryable within the process.
func Generate() (*VoteCredential, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate one-time key: %w", err)
	}
	return &VoteCredential{
		key:     key,
		Address: crypto.PubkeyToAddress(key.PublicKey),
	}, nil
}

// Sign produces the detached vote signature over the ballot digest.
func (c *VoteCredential) Sign(digest [32]byte) ([]byte, error) {
	if c.key == nil {
		return nil, ErrDestroyed
	}
	return ballot.Sign(digest, c.key)
}

// Destroy zeroizes the private key. Only the (now-used) address survives.
// Safe to call more than once.
func (c *VoteCredential) Destroy() {
	if c.key == nil {
		return
	}
	bits := c.key.D.Bits()
	for i := range bits {
		bits[i] = 0
	}
	c.key = nil
}
