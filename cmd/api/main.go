package main

import (
	"context"
	"flag"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"vote-relay/api"
	"vote-relay/config"
	"vote-relay/ledger"
	"vote-relay/service"
)

func main() {
	configPath := flag.String("config", "", "directory containing relay.{yaml,toml,json}")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logrus.SetLevel(level)
	}
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	client, err := ledger.Dial(ctx, cfg.RPCURL)
	if err != nil {
		logrus.Fatalf("Failed to connect to ledger: %v", err)
	}
	if cfg.RelayPrivKey != "" {
		if err := client.SetRelayKey(cfg.RelayPrivKey); err != nil {
			logrus.Fatalf("Failed to load relay key: %v", err)
		}
		logrus.WithField("relay", client.RelayAddress().Hex()).Info("relay account loaded")
	} else {
		logrus.Warn("relay_privkey not set; voting will not work without it")
	}
	if cfg.ArtifactPath != "" {
		if err := client.LoadArtifact(cfg.ArtifactPath); err != nil {
			logrus.Fatalf("Failed to load contract artifact: %v", err)
		}
	}
	if !common.IsHexAddress(cfg.ContractAddress) {
		logrus.Fatalf("Invalid contract_address: %s", cfg.ContractAddress)
	}
	defaultContract := common.HexToAddress(cfg.ContractAddress)
	logrus.WithField("contract", defaultContract.Hex()).Info("default election contract")

	voting := service.NewVotingService(client, defaultContract, service.NewCreatorRegistry())
	server := api.NewServer(voting, cfg.Host, cfg.Port)
	if err := server.Start(); err != nil {
		logrus.Fatalf("Server error: %v", err)
	}
}
