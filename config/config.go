// Package config loads the backend configuration from a config file and
// environment variables. Everything here is treated as an opaque input:
// the only hard requirement enforced downstream is a relay key at first
// transacting use.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config carries everything the relay backend consumes from outside.
type Config struct {
	RPCURL          string
	RelayPrivKey    string
	ContractAddress string
	ArtifactPath    string
	Host            string
	Port            int
	LogLevel        string
}

// Load reads the "relay" config file from the given search path (and the
// working directory) plus VOTE_RELAY_* environment variables. A missing
// config file is fine; missing keys fall back to local-node defaults.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetEnvPrefix("VOTE_RELAY")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("rpc_url", "http://127.0.0.1:8545")
	v.SetDefault("contract_address", "0x5FbDB2315678afecb367f032d93F642f64180aa3")
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", 3001)
	v.SetDefault("log_level", "info")

	v.SetConfigName("relay")
	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return &Config{
		RPCURL:          v.GetString("rpc_url"),
		RelayPrivKey:    v.GetString("relay_privkey"),
		ContractAddress: v.GetString("contract_address"),
		ArtifactPath:    v.GetString("artifact_path"),
		Host:            v.GetString("host"),
		Port:            v.GetInt("port"),
		LogLevel:        v.GetString("log_level"),
	}, nil
}
