package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"

	"vote-relay/models"
)

// electionABI covers every entry point this backend uses. It must match
// the deployed contract; a compiled artifact (see artifact.go) carries the
// authoritative copy plus the bytecode for deployments.
const electionABI = `[
  {"type":"constructor","inputs":[
    {"name":"candidateNames","type":"string[]"},
    {"name":"maxVoters","type":"uint256"},
    {"name":"durationHours","type":"uint256"}]},
  {"type":"function","name":"getCandidates","stateMutability":"view","inputs":[],
   "outputs":[{"name":"","type":"tuple[]","components":[
     {"name":"name","type":"string"},
     {"name":"voteCount","type":"uint256"}]}]},
  {"type":"function","name":"getElectionStats","stateMutability":"view","inputs":[],
   "outputs":[
     {"name":"totalVoters","type":"uint256"},
     {"name":"maxAllowedVoters","type":"uint256"},
     {"name":"remainingVoters","type":"uint256"},
     {"name":"isActive","type":"bool"},
     {"name":"timeRemaining","type":"uint256"}]},
  {"type":"function","name":"hasVoted","stateMutability":"view",
   "inputs":[{"name":"voter","type":"address"}],
   "outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"nonces","stateMutability":"view",
   "inputs":[{"name":"voter","type":"address"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"getCandidateIndexByName","stateMutability":"view",
   "inputs":[{"name":"name","type":"string"}],
   "outputs":[{"name":"index","type":"uint256"},{"name":"exists","type":"bool"}]},
  {"type":"function","name":"getWinner","stateMutability":"view","inputs":[],
   "outputs":[
     {"name":"winnerName","type":"string"},
     {"name":"winnerVotes","type":"uint256"},
     {"name":"isTie","type":"bool"}]},
  {"type":"function","name":"admin","stateMutability":"view","inputs":[],
   "outputs":[{"name":"","type":"address"}]},
  {"type":"function","name":"voteBySignature","stateMutability":"nonpayable",
   "inputs":[
     {"name":"candidateIndex","type":"uint256"},
     {"name":"voter","type":"address"},
     {"name":"nonce","type":"uint256"},
     {"name":"signature","type":"bytes"}],
   "outputs":[]},
  {"type":"function","name":"endElection","stateMutability":"nonpayable",
   "inputs":[],"outputs":[]}
]`

// HasVoted reports whether an address already voted on the given election.
func (c *Client) HasVoted(ctx context.Context, contract, voter common.Address) (bool, error) {
	var out []interface{}
	opts := &bind.CallOpts{Context: ctx}
	if err := c.election(contract).Call(opts, &out, "hasVoted", voter); err != nil {
		return false, fmt.Errorf("hasVoted call failed: %w", err)
	}
	return *abi.ConvertType(out[0], new(bool)).(*bool), nil
}

// VoterNonce reads the current ledger-held sequence number for a voter
// address. Must be read fresh immediately before signing: a stale value
// makes the contract reject the signature.
func (c *Client) VoterNonce(ctx context.Context, contract, voter common.Address) (*big.Int, error) {
	var out []interface{}
	opts := &bind.CallOpts{Context: ctx}
	if err := c.election(contract).Call(opts, &out, "nonces", voter); err != nil {
		return nil, fmt.Errorf("nonces call failed: %w", err)
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

// CandidateIndexByName resolves a candidate name to its zero-based index.
func (c *Client) CandidateIndexByName(ctx context.Context, contract common.Address, name string) (*big.Int, bool, error) {
	var out []interface{}
	opts := &bind.CallOpts{Context: ctx}
	if err := c.election(contract).Call(opts, &out, "getCandidateIndexByName", name); err != nil {
		return nil, false, fmt.Errorf("getCandidateIndexByName call failed: %w", err)
	}
	index := *abi.ConvertType(out[0], new(*big.Int)).(**big.Int)
	exists := *abi.ConvertType(out[1], new(bool)).(*bool)
	return index, exists, nil
}

// Candidates returns the election's candidate list with vote counts.
func (c *Client) Candidates(ctx context.Context, contract common.Address) ([]models.Candidate, error) {
	var out []interface{}
	opts := &bind.CallOpts{Context: ctx}
	if err := c.election(contract).Call(opts, &out, "getCandidates"); err != nil {
		return nil, fmt.Errorf("getCandidates call failed: %w", err)
	}
	raw := *abi.ConvertType(out[0], new([]struct {
		Name      string
		VoteCount *big.Int
	})).(*[]struct {
		Name      string
		VoteCount *big.Int
	})
	candidates := make([]models.Candidate, len(raw))
	for i, entry := range raw {
		candidates[i] = models.Candidate{
			Name:      entry.Name,
			VoteCount: models.BigString(entry.VoteCount),
		}
	}
	return candidates, nil
}

// ElectionStats returns the election's aggregate counters.
func (c *Client) ElectionStats(ctx context.Context, contract common.Address) (*models.ElectionStats, error) {
	var out []interface{}
	opts := &bind.CallOpts{Context: ctx}
	if err := c.election(contract).Call(opts, &out, "getElectionStats"); err != nil {
		return nil, fmt.Errorf("getElectionStats call failed: %w", err)
	}
	return &models.ElectionStats{
		TotalVoters:      models.BigString(*abi.ConvertType(out[0], new(*big.Int)).(**big.Int)),
		MaxAllowedVoters: models.BigString(*abi.ConvertType(out[1], new(*big.Int)).(**big.Int)),
		RemainingVoters:  models.BigString(*abi.ConvertType(out[2], new(*big.Int)).(**big.Int)),
		IsActive:         *abi.ConvertType(out[3], new(bool)).(*bool),
		TimeRemaining:    models.BigString(*abi.ConvertType(out[4], new(*big.Int)).(**big.Int)),
	}, nil
}

// Winner returns the current leader, or the final result once the
// election has ended. The contract decides which; reverts pass through.
func (c *Client) Winner(ctx context.Context, contract common.Address) (*models.Winner, error) {
	var out []interface{}
	opts := &bind.CallOpts{Context: ctx}
	if err := c.election(contract).Call(opts, &out, "getWinner"); err != nil {
		return nil, fmt.Errorf("getWinner call failed: %w", err)
	}
	return &models.Winner{
		WinnerName:  *abi.ConvertType(out[0], new(string)).(*string),
		WinnerVotes: models.BigString(*abi.ConvertType(out[1], new(*big.Int)).(**big.Int)),
		IsTie:       *abi.ConvertType(out[2], new(bool)).(*bool),
	}, nil
}

// Admin returns the election's admin address.
func (c *Client) Admin(ctx context.Context, contract common.Address) (common.Address, error) {
	var out []interface{}
	opts := &bind.CallOpts{Context: ctx}
	if err := c.election(contract).Call(opts, &out, "admin"); err != nil {
		return common.Address{}, fmt.Errorf("admin call failed: %w", err)
	}
	return *abi.ConvertType(out[0], new(common.Address)).(*common.Address), nil
}

// transact sends one relay transaction to the contract's method. txMu is
// held only through read-nonce/build/sign/send; waiting for inclusion
// happens outside the lock so a slow block never stalls other relay
// submissions.
func (c *Client) transact(ctx context.Context, contract common.Address, method string, args ...interface{}) (*types.Transaction, error) {
	c.txMu.Lock()
	defer c.txMu.Unlock()

	auth, err := c.transactOpts(ctx)
	if err != nil {
		return nil, err
	}
	return c.election(contract).Transact(auth, method, args...)
}

// SubmitVote submits a signed vote envelope through the relay account and
// blocks until the transaction is mined. One attempt, no fee bumping: on
// any failure the whole vote flow restarts with a fresh credential.
func (c *Client) SubmitVote(ctx context.Context, contract common.Address, env *models.SignedVoteEnvelope) (common.Hash, error) {
	tx, err := c.transact(ctx, contract, "voteBySignature",
		env.CandidateIndex, env.VoterAddress, env.Nonce, env.Signature)
	if err != nil {
		if errors.Is(err, ErrNoRelayKey) {
			return common.Hash{}, err
		}
		return common.Hash{}, fmt.Errorf("failed to submit vote transaction: %w", err)
	}
	logrus.WithFields(logrus.Fields{
		"tx":       tx.Hash().Hex(),
		"contract": contract.Hex(),
	}).Info("vote transaction sent")
	receipt, err := c.waitMined(ctx, tx)
	if err != nil {
		return common.Hash{}, err
	}
	return receipt.TxHash, nil
}

// EndElection closes the election through the relay account.
func (c *Client) EndElection(ctx context.Context, contract common.Address) (common.Hash, error) {
	tx, err := c.transact(ctx, contract, "endElection")
	if err != nil {
		if errors.Is(err, ErrNoRelayKey) {
			return common.Hash{}, err
		}
		return common.Hash{}, fmt.Errorf("failed to submit endElection transaction: %w", err)
	}
	receipt, err := c.waitMined(ctx, tx)
	if err != nil {
		return common.Hash{}, err
	}
	return receipt.TxHash, nil
}

// DeployElection deploys a fresh election contract with the given
// candidates and limits, returning its address once mined. The lock scope
// matches transact: held through send, released for the inclusion wait.
func (c *Client) DeployElection(ctx context.Context, candidates []string, maxVoters, durationHours *big.Int) (common.Address, common.Hash, error) {
	if len(c.bytecode) == 0 {
		return common.Address{}, common.Hash{}, ErrNoBytecode
	}

	c.txMu.Lock()
	auth, err := c.transactOpts(ctx)
	if err != nil {
		c.txMu.Unlock()
		return common.Address{}, common.Hash{}, err
	}
	addr, tx, _, err := bind.DeployContract(auth, c.abi, c.bytecode, c.eth,
		candidates, maxVoters, durationHours)
	c.txMu.Unlock()
	if err != nil {
		return common.Address{}, common.Hash{}, fmt.Errorf("failed to deploy election contract: %w", err)
	}
	logrus.WithFields(logrus.Fields{
		"tx":       tx.Hash().Hex(),
		"contract": addr.Hex(),
	}).Info("election deployment sent")
	receipt, err := c.waitMined(ctx, tx)
	if err != nil {
		return common.Address{}, common.Hash{}, err
	}
	return addr, receipt.TxHash, nil
}
