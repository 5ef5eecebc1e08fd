package ballot

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// SignatureLength is the serialized signature size: r (32) || s (32) || v (1).
const SignatureLength = 65

// vOffset shifts the recovery id into the 27/28 range the contract's
// ecrecover expects.
const vOffset = 27

// Sign produces the detached vote signature over a signed digest. The
// returned 65 bytes are r || s || v with v in {27, 28}, the exact layout
// the contract feeds to ecrecover.
func Sign(digest [32]byte, key *ecdsa.PrivateKey) ([]byte, error) {
	sig, err := crypto.Sign(digest[:], key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign vote digest: %w", err)
	}
	sig[64] += vOffset
	return sig, nil
}

// RecoverAddress recovers the signer address from a vote signature,
// accepting both the on-chain (27/28) and raw (0/1) recovery id forms.
// It is the local mirror of the verification the contract performs.
func RecoverAddress(digest [32]byte, sig []byte) (common.Address, error) {
	if len(sig) != SignatureLength {
		return common.Address{}, fmt.Errorf("invalid signature length: %d", len(sig))
	}
	raw := make([]byte, SignatureLength)
	copy(raw, sig)
	if raw[64] >= vOffset {
		raw[64] -= vOffset
	}
	pub, err := crypto.SigToPub(digest[:], raw)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover signer: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}
