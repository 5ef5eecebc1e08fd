// Package service orchestrates the anonymous-vote relay pipeline:
// generate a one-time credential, resolve address collisions against the
// ledger, read the voter nonce, encode and sign the canonical ballot
// message, and hand the signed envelope to the relay submitter. Each vote
// request runs the pipeline strictly in order; independent requests run
// concurrently.
package service

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"vote-relay/ballot"
	"vote-relay/credential"
	"vote-relay/ledger"
	"vote-relay/models"
)

// Ledger is the contract surface the pipeline needs from the external
// election ledger. *ledger.Client implements it; tests substitute a stub.
type Ledger interface {
	HasVoted(ctx context.Context, contract, voter common.Address) (bool, error)
	VoterNonce(ctx context.Context, contract, voter common.Address) (*big.Int, error)
	CandidateIndexByName(ctx context.Context, contract common.Address, name string) (*big.Int, bool, error)
	Candidates(ctx context.Context, contract common.Address) ([]models.Candidate, error)
	ElectionStats(ctx context.Context, contract common.Address) (*models.ElectionStats, error)
	Winner(ctx context.Context, contract common.Address) (*models.Winner, error)
	Admin(ctx context.Context, contract common.Address) (common.Address, error)
	SubmitVote(ctx context.Context, contract common.Address, env *models.SignedVoteEnvelope) (common.Hash, error)
	EndElection(ctx context.Context, contract common.Address) (common.Hash, error)
	DeployElection(ctx context.Context, candidates []string, maxVoters, durationHours *big.Int) (common.Address, common.Hash, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

// VotingService ties the pipeline to a ledger client, a default election
// contract and the creator-origin authorization check.
type VotingService struct {
	ledger          Ledger
	defaultContract common.Address
	auth            AuthorizationCheck
}

func NewVotingService(l Ledger, defaultContract common.Address, auth AuthorizationCheck) *VotingService {
	return &VotingService{
		ledger:          l,
		defaultContract: defaultContract,
		auth:            auth,
	}
}

// CastVote runs one full anonymous vote: candidate may be a zero-based
// index in decimal form or a candidate name; contract selects the
// election, defaulting to the configured one. Returns the hash of the
// mined relay transaction.
func (vs *VotingService) CastVote(ctx context.Context, candidate string, contract *common.Address) (common.Hash, error) {
	target := vs.contractFor(contract)
	log := logrus.WithFields(logrus.Fields{
		"request":  uuid.New().String(),
		"contract": target.Hex(),
	})

	index, err := vs.resolveCandidate(ctx, target, candidate)
	if err != nil {
		return common.Hash{}, err
	}

	cred, err := vs.resolveCredential(ctx, target)
	if err != nil {
		return common.Hash{}, err
	}
	defer cred.Destroy()
	log = log.WithField("voter", cred.Address.Hex())
	log.Debug("one-time credential generated")

	// Read fresh, after collision resolution: a stale nonce produces a
	// signature the contract rejects.
	nonce, err := vs.ledger.VoterNonce(ctx, target, cred.Address)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: reading voter nonce: %v", ErrLedgerUnreachable, err)
	}

	digest := ballot.VoteDigest(target, cred.Address, index, nonce)
	signature, err := cred.Sign(digest)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to sign ballot: %w", err)
	}
	env := &models.SignedVoteEnvelope{
		CandidateIndex: index,
		VoterAddress:   cred.Address,
		Nonce:          nonce,
		Signature:      signature,
	}
	// The private key has done its one job.
	cred.Destroy()

	txHash, err := vs.ledger.SubmitVote(ctx, target, env)
	if err != nil {
		if errors.Is(err, ledger.ErrNoRelayKey) {
			return common.Hash{}, ErrRelayUnavailable
		}
		var revert *ledger.RevertError
		if errors.As(err, &revert) {
			// The contract's reason is the diagnostic; pass it through.
			return common.Hash{}, err
		}
		return common.Hash{}, fmt.Errorf("vote submission failed: %w", err)
	}
	log.WithField("tx", txHash.Hex()).Info("vote relayed")
	return txHash, nil
}

// resolveCandidate turns the caller's candidate selector into a contract
// index. Name lookups that miss fail with ErrUnknownCandidate before any
// credential is signed.
func (vs *VotingService) resolveCandidate(ctx context.Context, contract common.Address, candidate string) (*big.Int, error) {
	if candidate == "" {
		return nil, fmt.Errorf("%w: empty candidate", ErrUnknownCandidate)
	}
	if n, err := strconv.ParseUint(candidate, 10, 64); err == nil {
		return new(big.Int).SetUint64(n), nil
	}
	index, exists, err := vs.ledger.CandidateIndexByName(ctx, contract, candidate)
	if err != nil {
		return nil, fmt.Errorf("%w: resolving candidate name: %v", ErrLedgerUnreachable, err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCandidate, candidate)
	}
	return index, nil
}

// resolveCredential generates a one-time credential and checks it against
// the ledger's hasVoted map. One regeneration on collision; a second
// collision aborts. A failing check is tolerated: the contract re-checks
// atomically at submission time and is the authoritative duplicate guard.
func (vs *VotingService) resolveCredential(ctx context.Context, contract common.Address) (*credential.VoteCredential, error) {
	cred, err := credential.Generate()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEntropyUnavailable, err)
	}
	voted, err := vs.ledger.HasVoted(ctx, contract, cred.Address)
	if err != nil {
		logrus.WithError(err).Warn("hasVoted check failed, proceeding; contract will reject a true duplicate")
		return cred, nil
	}
	if !voted {
		return cred, nil
	}

	logrus.WithField("voter", cred.Address.Hex()).Warn("one-time address collision, regenerating")
	cred.Destroy()
	cred, err = credential.Generate()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEntropyUnavailable, err)
	}
	voted, err = vs.ledger.HasVoted(ctx, contract, cred.Address)
	if err != nil {
		return cred, nil
	}
	if voted {
		cred.Destroy()
		return nil, ErrCredentialCollision
	}
	return cred, nil
}

// EndElection closes an election after checking the requesting origin
// against the recorded creator.
func (vs *VotingService) EndElection(ctx context.Context, contract *common.Address, origin string) (common.Hash, error) {
	target := vs.contractFor(contract)
	if err := vs.auth.Authorize(target, origin); err != nil {
		return common.Hash{}, err
	}
	txHash, err := vs.ledger.EndElection(ctx, target)
	if err != nil {
		if errors.Is(err, ledger.ErrNoRelayKey) {
			return common.Hash{}, ErrRelayUnavailable
		}
		return common.Hash{}, err
	}
	return txHash, nil
}

// DeployElection deploys a new election contract and records the
// requesting origin as its creator.
func (vs *VotingService) DeployElection(ctx context.Context, candidates []string, maxVoters, durationHours int64, origin string) (common.Address, common.Hash, error) {
	if len(candidates) < 2 {
		return common.Address{}, common.Hash{}, errors.New("at least 2 candidates are required")
	}
	addr, txHash, err := vs.ledger.DeployElection(ctx, candidates,
		big.NewInt(maxVoters), big.NewInt(durationHours))
	if err != nil {
		if errors.Is(err, ledger.ErrNoRelayKey) {
			return common.Address{}, common.Hash{}, ErrRelayUnavailable
		}
		return common.Address{}, common.Hash{}, err
	}
	vs.auth.Record(addr, origin)
	logrus.WithFields(logrus.Fields{
		"contract": addr.Hex(),
		"origin":   origin,
	}).Info("election deployed")
	return addr, txHash, nil
}

// Read-only passthroughs. Reverts and network errors surface unchanged.

func (vs *VotingService) Candidates(ctx context.Context, contract *common.Address) ([]models.Candidate, error) {
	return vs.ledger.Candidates(ctx, vs.contractFor(contract))
}

func (vs *VotingService) ElectionStats(ctx context.Context, contract *common.Address) (*models.ElectionStats, error) {
	return vs.ledger.ElectionStats(ctx, vs.contractFor(contract))
}

func (vs *VotingService) Winner(ctx context.Context, contract *common.Address) (*models.Winner, error) {
	return vs.ledger.Winner(ctx, vs.contractFor(contract))
}

func (vs *VotingService) Admin(ctx context.Context) (common.Address, error) {
	return vs.ledger.Admin(ctx, vs.defaultContract)
}

// BlockNumber probes ledger liveness for the health endpoint.
func (vs *VotingService) BlockNumber(ctx context.Context) (uint64, error) {
	return vs.ledger.BlockNumber(ctx)
}

func (vs *VotingService) contractFor(contract *common.Address) common.Address {
	if contract != nil {
		return *contract
	}
	return vs.defaultContract
}
