package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/polywallet/polywallet/internal/codec"
)

var entryPointABI = codec.MustParseABI(`[{
	"type": "function",
	"name": "getNonce",
	"inputs": [
		{"name": "sender", "type": "address"},
		{"name": "key", "type": "uint192"}
	],
	"outputs": [{"name": "nonce", "type": "uint256"}]
}]`)

// Client wraps an Ethereum RPC client.
type Client struct {
	client  *ethclient.Client
	chainID *big.Int
}

var (
	_ Reader    = (*Client)(nil)
	_ Submitter = (*Client)(nil)
)

// NewClient creates a new EVM client and auto-detects chain ID.
func NewClient(rpcURL string) (*Client, error) {
	if rpcURL == "" {
		return nil, fmt.Errorf("RPC URL is required")
	}

	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC: %w", err)
	}

	chainID, err := client.ChainID(context.Background())
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}

	return &Client{
		client:  client,
		chainID: chainID,
	}, nil
}

// ChainID returns the chain ID.
func (c *Client) ChainID() *big.Int {
	return c.chainID
}

// CodeAt returns the code deployed at an address.
func (c *Client) CodeAt(ctx context.Context, account common.Address) ([]byte, error) {
	code, err := c.client.CodeAt(ctx, account, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get code: %w", err)
	}
	return code, nil
}

// CallContract executes a read-only contract call at the latest block.
func (c *Client) CallContract(ctx context.Context, call ethereum.CallMsg) ([]byte, error) {
	out, err := c.client.CallContract(ctx, call, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to call contract: %w", err)
	}
	return out, nil
}

// PendingNonce returns the next transaction nonce for an address.
func (c *Client) PendingNonce(ctx context.Context, account common.Address) (uint64, error) {
	nonce, err := c.client.PendingNonceAt(ctx, account)
	if err != nil {
		return 0, fmt.Errorf("failed to get nonce: %w", err)
	}
	return nonce, nil
}

// EntryPointNonce reads the account's next nonce for the given 192-bit key
// from the entry point contract.
func (c *Client) EntryPointNonce(ctx context.Context, entryPoint, sender common.Address, key *big.Int) (*big.Int, error) {
	if key == nil {
		key = new(big.Int)
	}
	data, err := entryPointABI.Pack("getNonce", sender, key)
	if err != nil {
		return nil, fmt.Errorf("failed to encode getNonce: %w", err)
	}
	out, err := c.CallContract(ctx, ethereum.CallMsg{To: &entryPoint, Data: data})
	if err != nil {
		return nil, err
	}
	values, err := entryPointABI.Unpack("getNonce", out)
	if err != nil {
		return nil, fmt.Errorf("failed to decode getNonce result: %w", err)
	}
	return values[0].(*big.Int), nil
}

// EstimateGas estimates the gas needed for a transaction and adds a 20%
// buffer.
func (c *Client) EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error) {
	gas, err := c.client.EstimateGas(ctx, call)
	if err != nil {
		return 0, fmt.Errorf("failed to estimate gas: %w", err)
	}
	return gas * 120 / 100, nil
}

// SuggestGasPrice returns the suggested gas price.
func (c *Client) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	gasPrice, err := c.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get gas price: %w", err)
	}
	return gasPrice, nil
}

// SuggestGasTipCap returns the suggested gas tip cap for EIP-1559
// transactions.
func (c *Client) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	tipCap, err := c.client.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get gas tip cap: %w", err)
	}
	return tipCap, nil
}

// SendTransaction broadcasts a signed transaction to the network. SetCode
// transactions carrying EIP-7702 authorization lists go through the same
// path.
func (c *Client) SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error {
	if err := c.client.SendTransaction(ctx, tx); err != nil {
		return fmt.Errorf("failed to send transaction: %w", err)
	}
	return nil
}

// TransactionReceipt returns the receipt of a mined transaction, or
// ethereum.NotFound while pending.
func (c *Client) TransactionReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error) {
	receipt, err := c.client.TransactionReceipt(ctx, txHash)
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// Close closes the client connection.
func (c *Client) Close() {
	c.client.Close()
}
