package service

import "errors"

// Error taxonomy for the vote pipeline. Ledger-side reverts are not
// listed here: they pass through verbatim as *ledger.RevertError so the
// contract's own reason string reaches the caller.
var (
	// ErrEntropyUnavailable means the secure random source failed. Fatal
	// within the process; no retry can help.
	ErrEntropyUnavailable = errors.New("entropy source unavailable")

	// ErrCredentialCollision means two consecutive one-time credentials
	// had already voted. Astronomically unlikely under correct entropy;
	// the caller should retry the whole vote request.
	ErrCredentialCollision = errors.New("one-time credential collision, retry the vote")

	// ErrUnknownCandidate means the candidate name does not exist on the
	// election contract. Surfaced before any signing occurs.
	ErrUnknownCandidate = errors.New("unknown candidate")

	// ErrRelayUnavailable means no relay credential was configured; all
	// transacting operations are impossible.
	ErrRelayUnavailable = errors.New("relay credential not configured")

	// ErrLedgerUnreachable means the ledger RPC endpoint did not answer.
	// The caller may retry later.
	ErrLedgerUnreachable = errors.New("ledger unreachable")

	// ErrNotAuthorized means the requesting origin did not create the
	// election it is trying to end.
	ErrNotAuthorized = errors.New("origin not authorized for this election")
)
