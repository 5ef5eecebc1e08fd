package service

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	qt "github.com/frankban/quicktest"

	"vote-relay/ballot"
	"vote-relay/ledger"
	"vote-relay/models"
)

var testContract = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")

// submission records one SubmitVote call together with the relay sequence
// number the stub assigned to it.
type submission struct {
	contract common.Address
	env      *models.SignedVoteEnvelope
	relaySeq uint64
}

// stubLedger implements Ledger in memory. HasVoted answers are popped from
// a queue (defaulting to false); the relay sequence counter mimics the
// serialized read-then-submit nonce handling of the real client.
type stubLedger struct {
	mu sync.Mutex

	candidates    []string
	hasVotedQueue []bool
	hasVotedCalls int
	hasVotedErr   error
	nonces        map[common.Address]*big.Int
	submitErr     error

	relaySeq    uint64
	submissions []submission
}

func newStubLedger(candidates ...string) *stubLedger {
	return &stubLedger{
		candidates: candidates,
		nonces:     make(map[common.Address]*big.Int),
	}
}

func (s *stubLedger) HasVoted(ctx context.Context, contract, voter common.Address) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hasVotedCalls++
	if s.hasVotedErr != nil {
		return false, s.hasVotedErr
	}
	if len(s.hasVotedQueue) == 0 {
		return false, nil
	}
	voted := s.hasVotedQueue[0]
	s.hasVotedQueue = s.hasVotedQueue[1:]
	return voted, nil
}

func (s *stubLedger) VoterNonce(ctx context.Context, contract, voter common.Address) (*big.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if nonce, ok := s.nonces[voter]; ok {
		return new(big.Int).Set(nonce), nil
	}
	return big.NewInt(0), nil
}

func (s *stubLedger) CandidateIndexByName(ctx context.Context, contract common.Address, name string) (*big.Int, bool, error) {
	for i, candidate := range s.candidates {
		if candidate == name {
			return big.NewInt(int64(i)), true, nil
		}
	}
	return big.NewInt(0), false, nil
}

func (s *stubLedger) Candidates(ctx context.Context, contract common.Address) ([]models.Candidate, error) {
	out := make([]models.Candidate, len(s.candidates))
	for i, name := range s.candidates {
		out[i] = models.Candidate{Name: name, VoteCount: "0"}
	}
	return out, nil
}

func (s *stubLedger) ElectionStats(ctx context.Context, contract common.Address) (*models.ElectionStats, error) {
	return &models.ElectionStats{IsActive: true}, nil
}

func (s *stubLedger) Winner(ctx context.Context, contract common.Address) (*models.Winner, error) {
	return &models.Winner{}, nil
}

func (s *stubLedger) Admin(ctx context.Context, contract common.Address) (common.Address, error) {
	return common.Address{}, nil
}

func (s *stubLedger) SubmitVote(ctx context.Context, contract common.Address, env *models.SignedVoteEnvelope) (common.Hash, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.submitErr != nil {
		return common.Hash{}, s.submitErr
	}
	seq := s.relaySeq
	s.relaySeq++
	s.submissions = append(s.submissions, submission{
		contract: contract,
		env:      env,
		relaySeq: seq,
	})
	// Accepting the vote moves the voter nonce, like the contract does.
	next := new(big.Int).Add(env.Nonce, big.NewInt(1))
	s.nonces[env.VoterAddress] = next
	return crypto.Keccak256Hash(env.Signature), nil
}

func (s *stubLedger) EndElection(ctx context.Context, contract common.Address) (common.Hash, error) {
	return common.HexToHash("0x01"), nil
}

func (s *stubLedger) DeployElection(ctx context.Context, candidates []string, maxVoters, durationHours *big.Int) (common.Address, common.Hash, error) {
	return common.HexToAddress("0x02"), common.HexToHash("0x03"), nil
}

func (s *stubLedger) BlockNumber(ctx context.Context) (uint64, error) {
	return 1, nil
}

func newTestService(l Ledger) *VotingService {
	return NewVotingService(l, testContract, NewCreatorRegistry())
}

func TestCastVoteByName(t *testing.T) {
	c := qt.New(t)
	stub := newStubLedger("Alice", "Bob")
	vs := newTestService(stub)

	txHash, err := vs.CastVote(context.Background(), "Bob", nil)
	c.Assert(err, qt.IsNil)
	c.Assert(txHash, qt.Not(qt.Equals), common.Hash{})
	c.Assert(stub.submissions, qt.HasLen, 1)

	sub := stub.submissions[0]
	c.Assert(sub.contract, qt.Equals, testContract)
	c.Assert(sub.env.CandidateIndex.Int64(), qt.Equals, int64(1))
	c.Assert(sub.env.Nonce.Int64(), qt.Equals, int64(0))

	// The submitted signature must recover to the one-time address over
	// the canonical digest, exactly as the contract will verify it.
	digest := ballot.VoteDigest(sub.contract, sub.env.VoterAddress, sub.env.CandidateIndex, sub.env.Nonce)
	recovered, err := ballot.RecoverAddress(digest, sub.env.Signature)
	c.Assert(err, qt.IsNil)
	c.Assert(recovered, qt.Equals, sub.env.VoterAddress)
}

func TestCastVoteByNumericIndex(t *testing.T) {
	c := qt.New(t)
	stub := newStubLedger("Alice", "Bob")
	vs := newTestService(stub)

	_, err := vs.CastVote(context.Background(), "0", nil)
	c.Assert(err, qt.IsNil)
	c.Assert(stub.submissions, qt.HasLen, 1)
	c.Assert(stub.submissions[0].env.CandidateIndex.Int64(), qt.Equals, int64(0))
	c.Assert(stub.submissions[0].env.Nonce.Int64(), qt.Equals, int64(0))
}

func TestCastVoteUnknownCandidate(t *testing.T) {
	c := qt.New(t)
	stub := newStubLedger("Alice", "Bob")
	vs := newTestService(stub)

	_, err := vs.CastVote(context.Background(), "Charlie", nil)
	c.Assert(errors.Is(err, ErrUnknownCandidate), qt.IsTrue)
	// Rejected before any signing: nothing was submitted and no
	// credential was ever checked against the ledger.
	c.Assert(stub.submissions, qt.HasLen, 0)
	c.Assert(stub.hasVotedCalls, qt.Equals, 0)
}

func TestCastVoteCollisionOnceRegenerates(t *testing.T) {
	c := qt.New(t)
	stub := newStubLedger("Alice", "Bob")
	stub.hasVotedQueue = []bool{true, false}
	vs := newTestService(stub)

	_, err := vs.CastVote(context.Background(), "Alice", nil)
	c.Assert(err, qt.IsNil)
	c.Assert(stub.hasVotedCalls, qt.Equals, 2)
	c.Assert(stub.submissions, qt.HasLen, 1)
}

func TestCastVoteCollisionTwiceFails(t *testing.T) {
	c := qt.New(t)
	stub := newStubLedger("Alice", "Bob")
	stub.hasVotedQueue = []bool{true, true}
	vs := newTestService(stub)

	_, err := vs.CastVote(context.Background(), "Alice", nil)
	c.Assert(errors.Is(err, ErrCredentialCollision), qt.IsTrue)
	c.Assert(stub.submissions, qt.HasLen, 0)
}

func TestCastVoteToleratesFailedDuplicateCheck(t *testing.T) {
	c := qt.New(t)
	stub := newStubLedger("Alice", "Bob")
	stub.hasVotedErr = errors.New("rpc timeout")
	vs := newTestService(stub)

	// Fail-open: the contract re-checks at submission time.
	_, err := vs.CastVote(context.Background(), "Alice", nil)
	c.Assert(err, qt.IsNil)
	c.Assert(stub.submissions, qt.HasLen, 1)
}

func TestCastVoteWithoutRelayKey(t *testing.T) {
	c := qt.New(t)
	stub := newStubLedger("Alice", "Bob")
	stub.submitErr = ledger.ErrNoRelayKey
	vs := newTestService(stub)

	_, err := vs.CastVote(context.Background(), "Alice", nil)
	c.Assert(errors.Is(err, ErrRelayUnavailable), qt.IsTrue)
}

func TestCastVoteRevertReasonPassesThrough(t *testing.T) {
	c := qt.New(t)
	stub := newStubLedger("Alice", "Bob")
	stub.submitErr = &ledger.RevertError{Reason: "Already voted"}
	vs := newTestService(stub)

	_, err := vs.CastVote(context.Background(), "Alice", nil)
	var revert *ledger.RevertError
	c.Assert(errors.As(err, &revert), qt.IsTrue)
	c.Assert(revert.Reason, qt.Equals, "Already voted")
}

func TestConcurrentVotesGetUniqueRelaySequence(t *testing.T) {
	c := qt.New(t)
	stub := newStubLedger("Alice", "Bob")
	vs := newTestService(stub)

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			candidate := fmt.Sprintf("%d", i%2)
			_, errs[i] = vs.CastVote(context.Background(), candidate, nil)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		c.Assert(err, qt.IsNil, qt.Commentf("request %d", i))
	}
	c.Assert(stub.submissions, qt.HasLen, n)

	seqs := make(map[uint64]bool)
	voters := make(map[common.Address]bool)
	for _, sub := range stub.submissions {
		// Relay sequence numbers are unique, covering 0..n-1 with no
		// duplicates through the serialized submit section.
		c.Assert(seqs[sub.relaySeq], qt.IsFalse)
		seqs[sub.relaySeq] = true
		c.Assert(sub.relaySeq < n, qt.IsTrue)

		// Every request used its own one-time voter, each at nonce 0.
		c.Assert(voters[sub.env.VoterAddress], qt.IsFalse)
		voters[sub.env.VoterAddress] = true
		c.Assert(sub.env.Nonce.Sign(), qt.Equals, 0)
	}
}

func TestEndElectionAuthorization(t *testing.T) {
	c := qt.New(t)
	stub := newStubLedger("Alice", "Bob")
	registry := NewCreatorRegistry()
	vs := NewVotingService(stub, testContract, registry)

	registry.Record(testContract, "10.0.0.1")

	_, err := vs.EndElection(context.Background(), nil, "10.0.0.2")
	c.Assert(errors.Is(err, ErrNotAuthorized), qt.IsTrue)

	_, err = vs.EndElection(context.Background(), nil, "10.0.0.1")
	c.Assert(err, qt.IsNil)
}

func TestDeployElectionRecordsCreator(t *testing.T) {
	c := qt.New(t)
	stub := newStubLedger()
	registry := NewCreatorRegistry()
	vs := NewVotingService(stub, testContract, registry)

	addr, _, err := vs.DeployElection(context.Background(),
		[]string{"Alice", "Bob"}, 100, 24, "10.0.0.9")
	c.Assert(err, qt.IsNil)

	c.Assert(registry.Authorize(addr, "10.0.0.9"), qt.IsNil)
	c.Assert(errors.Is(registry.Authorize(addr, "10.0.0.8"), ErrNotAuthorized), qt.IsTrue)
}

func TestDeployElectionRequiresTwoCandidates(t *testing.T) {
	c := qt.New(t)
	vs := newTestService(newStubLedger())

	_, _, err := vs.DeployElection(context.Background(), []string{"Alice"}, 100, 24, "10.0.0.1")
	c.Assert(err, qt.IsNotNil)
}
