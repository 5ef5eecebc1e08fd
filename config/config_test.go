package config

import (
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestLoadDefaults(t *testing.T) {
	c := qt.New(t)

	cfg, err := Load(t.TempDir())
	c.Assert(err, qt.IsNil)
	c.Assert(cfg.RPCURL, qt.Equals, "http://127.0.0.1:8545")
	c.Assert(cfg.ContractAddress, qt.Equals, "0x5FbDB2315678afecb367f032d93F642f64180aa3")
	c.Assert(cfg.Port, qt.Equals, 3001)
	c.Assert(cfg.LogLevel, qt.Equals, "info")
	c.Assert(cfg.RelayPrivKey, qt.Equals, "")
}

func TestLoadFromEnvironment(t *testing.T) {
	c := qt.New(t)

	t.Setenv("VOTE_RELAY_RPC_URL", "http://10.0.0.5:8545")
	t.Setenv("VOTE_RELAY_PORT", "4000")
	t.Setenv("VOTE_RELAY_RELAY_PRIVKEY", "0xdeadbeef")

	cfg, err := Load(t.TempDir())
	c.Assert(err, qt.IsNil)
	c.Assert(cfg.RPCURL, qt.Equals, "http://10.0.0.5:8545")
	c.Assert(cfg.Port, qt.Equals, 4000)
	c.Assert(cfg.RelayPrivKey, qt.Equals, "0xdeadbeef")
}
