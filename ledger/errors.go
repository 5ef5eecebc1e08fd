package ledger

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// ErrNoRelayKey is returned by every transacting method when no relay
// credential was configured. Read-only views keep working.
var ErrNoRelayKey = errors.New("relay private key not configured")

// ErrNoBytecode is returned by DeployElection when no contract artifact
// was loaded.
var ErrNoBytecode = errors.New("contract bytecode not loaded")

// RevertError carries the contract's own rejection reason, verbatim. The
// reason string (already voted, stale nonce, unknown candidate, election
// inactive, ...) is diagnostic for the voter and must never be replaced
// with a generic message.
type RevertError struct {
	Reason string
	TxHash common.Hash
}

func (e *RevertError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("transaction %s reverted", e.TxHash.Hex())
	}
	return fmt.Sprintf("transaction %s reverted: %s", e.TxHash.Hex(), e.Reason)
}
