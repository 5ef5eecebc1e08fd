// Package ledger is the go-ethereum client for the election contract. It
// exposes the contract's read-only views and, through the relay account,
// its transacting entry points. The relay account pays for and authorizes
// submission of transactions on behalf of one-time voter credentials; it
// never signs votes themselves.
package ledger

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sirupsen/logrus"
)

// voteTxGasLimit is a flat gas allowance for contract calls, generous
// enough for any election of sane size.
const voteTxGasLimit = 3_000_000

// backend is the slice of the ethclient surface the contract binding and
// the relay submitter use. Satisfied by *ethclient.Client; tests drop in
// a fake.
type backend interface {
	bind.ContractBackend
	bind.DeployBackend
	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

// Client wraps an ethclient connection plus the relay credential. The
// relay account's pending nonce is a shared external resource: txMu
// serializes the read-nonce/build/sign/send sequence so two in-flight
// submissions can never be assigned the same sequence number. The lock
// is not held while waiting for inclusion; the pending nonce already
// reflects sent-but-unmined transactions.
type Client struct {
	eth     backend
	chainID *big.Int
	abi     abi.ABI

	relayKey  *ecdsa.PrivateKey
	relayAddr common.Address

	bytecode []byte

	txMu sync.Mutex
}

// Dial connects to the ledger RPC endpoint and resolves its chain id.
func Dial(ctx context.Context, rpcURL string) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ledger at %s: %w", rpcURL, err)
	}
	chainID, err := eth.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain id from %s: %w", rpcURL, err)
	}
	parsed, err := abi.JSON(strings.NewReader(electionABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse election ABI: %w", err)
	}
	return &Client{
		eth:     eth,
		chainID: chainID,
		abi:     parsed,
	}, nil
}

// SetRelayKey loads the persistent relay credential from its hex form.
// Called once at process start; voting is impossible without it.
func (c *Client) SetRelayKey(hexKey string) error {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return fmt.Errorf("failed to parse relay private key: %w", err)
	}
	c.relayKey = key
	c.relayAddr = crypto.PubkeyToAddress(key.PublicKey)
	return nil
}

// RelayAddress returns the relay account address, or the zero address if
// no relay key is configured.
func (c *Client) RelayAddress() common.Address {
	return c.relayAddr
}

// BlockNumber returns the current ledger head, used as a liveness probe.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	return c.eth.BlockNumber(ctx)
}

// election binds the contract at addr to the shared ABI.
func (c *Client) election(addr common.Address) *bind.BoundContract {
	return bind.NewBoundContract(addr, c.abi, c.eth, c.eth, c.eth)
}

// transactOpts builds the signed-transaction options for the relay
// account: fresh pending nonce, suggested gas price, flat gas limit.
// Callers must hold txMu.
func (c *Client) transactOpts(ctx context.Context) (*bind.TransactOpts, error) {
	if c.relayKey == nil {
		return nil, ErrNoRelayKey
	}
	auth, err := bind.NewKeyedTransactorWithChainID(c.relayKey, c.chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to create relay transactor: %w", err)
	}
	nonce, err := c.eth.PendingNonceAt(ctx, c.relayAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to get relay nonce: %w", err)
	}
	gasPrice, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get gas price: %w", err)
	}
	auth.Nonce = new(big.Int).SetUint64(nonce)
	auth.GasPrice = gasPrice
	auth.GasLimit = voteTxGasLimit
	auth.Context = ctx
	logrus.WithFields(logrus.Fields{
		"relay": c.relayAddr.Hex(),
		"nonce": nonce,
	}).Debug("prepared relay transaction opts")
	return auth, nil
}

// waitMined blocks until tx is included, then checks the receipt. A
// reverted transaction is replayed as a call at its own block to extract
// the contract's reason string.
func (c *Client) waitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	receipt, err := bind.WaitMined(ctx, c.eth, tx)
	if err != nil {
		return nil, fmt.Errorf("failed waiting for transaction %s: %w", tx.Hash().Hex(), err)
	}
	if receipt.Status == types.ReceiptStatusSuccessful {
		return receipt, nil
	}
	return nil, &RevertError{
		Reason: c.revertReason(ctx, tx, receipt.BlockNumber),
		TxHash: tx.Hash(),
	}
}

// revertReason replays a mined transaction as a read-only call to recover
// the revert string. Best effort: an empty reason is still a valid revert.
func (c *Client) revertReason(ctx context.Context, tx *types.Transaction, blockNumber *big.Int) string {
	msg := ethereum.CallMsg{
		From:     c.relayAddr,
		To:       tx.To(),
		Gas:      tx.Gas(),
		GasPrice: tx.GasPrice(),
		Value:    tx.Value(),
		Data:     tx.Data(),
	}
	res, err := c.eth.CallContract(ctx, msg, blockNumber)
	if err != nil {
		// Most nodes surface the reason through the call error itself.
		return strings.TrimPrefix(err.Error(), "execution reverted: ")
	}
	reason, err := abi.UnpackRevert(res)
	if err != nil {
		return ""
	}
	return reason
}
