// Package ethereum wraps go-ethereum's RPC/ABI primitives into the small
// surface the ledger client needs: connect, read state, pack/call/unpack a
// contract method, and sign+send a contract transaction with gas-price
// escalation on retry.
package ethereum

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Client is a thin wrapper around ethclient.Client bound to one chain.
type Client struct {
	client  *ethclient.Client
	chainID *big.Int
}

// NewClient dials url and caches the chain id for transaction signing.
func NewClient(ctx context.Context, url string) (*Client, error) {
	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC endpoint: %w", err)
	}
	chainID, err := client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch chain id: %w", err)
	}
	return &Client{client: client, chainID: chainID}, nil
}

// CreateTransactor builds a signer-bound TransactOpts from a raw private key.
func (c *Client) CreateTransactor(privateKeyHex string) (*bind.TransactOpts, error) {
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	auth, err := bind.NewKeyedTransactorWithChainID(privateKey, c.chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to create transactor: %w", err)
	}
	return auth, nil
}

// GetPublicAddress derives the address bound to a private key.
func GetPublicAddress(privateKeyHex string) (common.Address, error) {
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to parse private key: %w", err)
	}
	publicKeyECDSA, ok := privateKey.Public().(*ecdsa.PublicKey)
	if !ok {
		return common.Address{}, fmt.Errorf("failed to cast public key to ECDSA")
	}
	return crypto.PubkeyToAddress(*publicKeyECDSA), nil
}

// EstimateGas estimates the gas limit for a pending call.
func (c *Client) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	gasLimit, err := c.client.EstimateGas(ctx, msg)
	if err != nil {
		return 0, fmt.Errorf("failed to estimate gas: %w", err)
	}
	return gasLimit, nil
}

// WaitForTransaction blocks until tx is mined and returns its receipt.
func (c *Client) WaitForTransaction(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	receipt, err := bind.WaitMined(ctx, c.client, tx)
	if err != nil {
		return nil, fmt.Errorf("failed to wait for transaction: %w", err)
	}
	return receipt, nil
}

// Health checks RPC connectivity.
func (c *Client) Health(ctx context.Context) error {
	if _, err := c.client.BlockNumber(ctx); err != nil {
		return fmt.Errorf("rpc health check failed: %w", err)
	}
	return nil
}

// CallContract makes a read-only contract call and unpacks the result.
func (c *Client) CallContract(ctx context.Context, contractAddr common.Address, contractABI abi.ABI, methodName string, params ...interface{}) ([]interface{}, error) {
	callData, err := contractABI.Pack(methodName, params...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack method call: %w", err)
	}
	result, err := c.client.CallContract(ctx, ethereum.CallMsg{To: &contractAddr, Data: callData}, nil)
	if err != nil {
		return nil, fmt.Errorf("contract call failed: %w", err)
	}
	outputs, err := contractABI.Unpack(methodName, result)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack result: %w", err)
	}
	return outputs, nil
}

// SendContractTransaction signs and sends a contract transaction, retrying
// with a 20%-per-attempt gas price escalation on known-transient errors.
func (c *Client) SendContractTransaction(ctx context.Context, contractAddr common.Address, contractABI abi.ABI, privateKeyHex string, methodName string, gasLimit uint64, maxRetries int, params ...interface{}) (*types.Receipt, error) {
	callData, err := contractABI.Pack(methodName, params...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack method call: %w", err)
	}
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	publicKeyECDSA := privateKey.Public().(*ecdsa.PublicKey)
	fromAddress := crypto.PubkeyToAddress(*publicKeyECDSA)

	if maxRetries < 1 {
		maxRetries = 1
	}
	minGasPrice := big.NewInt(5 * 1e9) // 5 Gwei floor

	for attempt := 0; attempt < maxRetries; attempt++ {
		nonce, err := c.client.PendingNonceAt(ctx, fromAddress)
		if err != nil {
			return nil, fmt.Errorf("failed to get nonce: %w", err)
		}
		gasPrice, err := c.client.SuggestGasPrice(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get gas price: %w", err)
		}
		if gasPrice.Cmp(minGasPrice) < 0 {
			gasPrice = minGasPrice
		}
		if attempt > 0 {
			multiplier := big.NewInt(int64(100 + 20*attempt))
			gasPrice = new(big.Int).Div(new(big.Int).Mul(gasPrice, multiplier), big.NewInt(100))
		}

		tx := types.NewTransaction(nonce, contractAddr, big.NewInt(0), gasLimit, gasPrice, callData)
		signedTx, err := types.SignTx(tx, types.NewEIP155Signer(c.chainID), privateKey)
		if err != nil {
			return nil, fmt.Errorf("failed to sign transaction: %w", err)
		}

		if err := c.client.SendTransaction(ctx, signedTx); err != nil {
			errStr := err.Error()
			retryable := strings.Contains(errStr, "replacement transaction underpriced") ||
				strings.Contains(errStr, "nonce too low") ||
				strings.Contains(errStr, "already known")
			if retryable && attempt < maxRetries-1 {
				time.Sleep(2 * time.Second)
				continue
			}
			return nil, fmt.Errorf("failed to send transaction after %d attempts: %w", attempt+1, err)
		}

		return c.WaitForTransaction(ctx, signedTx)
	}
	return nil, fmt.Errorf("failed to send transaction after %d attempts", maxRetries)
}
