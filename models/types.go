package models

import "math/big"

// Candidate mirrors the contract's candidate struct as returned by
// getCandidates().
type Candidate struct {
	Name      string `json:"name"`
	VoteCount string `json:"voteCount"`
}

// ElectionStats mirrors the tuple returned by getElectionStats(). Numeric
// fields are decimal strings so the JSON layer never truncates uint256
// values.
type ElectionStats struct {
	TotalVoters      string `json:"totalVoters"`
	MaxAllowedVoters string `json:"maxAllowedVoters"`
	RemainingVoters  string `json:"remainingVoters"`
	IsActive         bool   `json:"isActive"`
	TimeRemaining    string `json:"timeRemaining"`
}

// Winner mirrors the tuple returned by getWinner().
type Winner struct {
	WinnerName  string `json:"winnerName"`
	WinnerVotes string `json:"winnerVotes"`
	IsTie       bool   `json:"isTie"`
}

// BigString formats a possibly-nil big integer as a decimal string.
func BigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
