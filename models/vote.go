package models

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// SignedVoteEnvelope is the final payload handed to the ledger transaction
// builder: everything voteBySignature needs to verify and count one vote.
// Built once per successful signing attempt and never reused; the voter
// nonce moves on the ledger the moment the vote is accepted.
type SignedVoteEnvelope struct {
	CandidateIndex *big.Int
	VoterAddress   common.Address
	Nonce          *big.Int
	Signature      []byte
}
