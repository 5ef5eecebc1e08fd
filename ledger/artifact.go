package ledger

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/sirupsen/logrus"
)

// artifact is the slice of a hardhat-compiled contract artifact this
// backend cares about.
type artifact struct {
	ABI      json.RawMessage `json:"abi"`
	Bytecode string          `json:"bytecode"`
}

// LoadArtifact reads a compiled contract artifact and installs its ABI and
// bytecode on the client. Without it the built-in ABI still serves every
// call; only deployments need the bytecode.
func (c *Client) LoadArtifact(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read contract artifact: %w", err)
	}
	var art artifact
	if err := json.Unmarshal(data, &art); err != nil {
		return fmt.Errorf("failed to parse contract artifact: %w", err)
	}
	if len(art.ABI) > 0 {
		parsed, err := abi.JSON(strings.NewReader(string(art.ABI)))
		if err != nil {
			return fmt.Errorf("failed to parse artifact ABI: %w", err)
		}
		c.abi = parsed
	}
	bytecode, err := hex.DecodeString(strings.TrimPrefix(art.Bytecode, "0x"))
	if err != nil {
		return fmt.Errorf("failed to decode artifact bytecode: %w", err)
	}
	c.bytecode = bytecode
	logrus.WithFields(logrus.Fields{
		"path":  path,
		"bytes": len(bytecode),
	}).Info("contract artifact loaded")
	return nil
}
