// Package ballot implements the canonical vote message packing and the
// detached vote signature used by the election contract's on-chain verifier.
//
// The contract recovers the voter address from a signature over
// keccak256("\x19Ethereum Signed Message:\n32" || keccak256(packed)),
// where packed is the fixed-width concatenation of the contract address,
// the voter address, the candidate index and the voter nonce. The packing
// here must stay byte-for-byte identical to the contract's
// abi.encodePacked, otherwise every vote is rejected on-chain.
package ballot

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

// signedMessagePrefix is the standard Ethereum personal-sign envelope for a
// 32-byte payload. The contract applies the same prefix before ecrecover.
const signedMessagePrefix = "\x19Ethereum Signed Message:\n32"

// MessageLength is the size of the packed vote message:
// 20 (contract) + 20 (voter) + 32 (candidate index) + 32 (nonce).
const MessageLength = 104

// EncodeMessage packs the vote tuple exactly the way the contract's
// verifier does: both addresses at their natural 20-byte width, both
// integers as 32-byte big-endian words. No delimiters, no length prefixes.
// Nil integers are packed as zero. Values are reduced to their low 256
// bits, matching uint256 arithmetic.
func EncodeMessage(contract, voter common.Address, candidateIndex, nonce *big.Int) []byte {
	msg := make([]byte, 0, MessageLength)
	msg = append(msg, contract.Bytes()...)
	msg = append(msg, voter.Bytes()...)
	msg = append(msg, uint256Bytes(candidateIndex)...)
	msg = append(msg, uint256Bytes(nonce)...)
	return msg
}

// MessageDigest returns the keccak256 hash of a packed vote message.
func MessageDigest(msg []byte) [32]byte {
	return keccak256(msg)
}

// SignedDigest wraps an inner digest in the signed-message envelope and
// hashes again. This is the digest the one-time credential actually signs
// and the digest the contract recovers against.
func SignedDigest(digest [32]byte) [32]byte {
	return keccak256([]byte(signedMessagePrefix), digest[:])
}

// VoteDigest is the full encode-then-double-hash pipeline for a vote tuple.
func VoteDigest(contract, voter common.Address, candidateIndex, nonce *big.Int) [32]byte {
	return SignedDigest(MessageDigest(EncodeMessage(contract, voter, candidateIndex, nonce)))
}

func keccak256(data ...[]byte) [32]byte {
	d := sha3.NewLegacyKeccak256()
	for _, b := range data {
		d.Write(b)
	}
	var out [32]byte
	d.Sum(out[:0])
	return out
}

var uint256Mod = new(big.Int).Lsh(big.NewInt(1), 256)

func uint256Bytes(v *big.Int) []byte {
	word := make([]byte, 32)
	if v == nil || v.Sign() == 0 {
		return word
	}
	u := new(big.Int).Mod(v, uint256Mod)
	u.FillBytes(word)
	return word
}
