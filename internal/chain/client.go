// Package chain wraps an Ethereum JSON-RPC endpoint with the operating wallet
// key: paced reads with retry, gas and nonce lookups, legacy transaction
// signing and confirmation waits.
package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Options configure Dial.
type Options struct {
	RPCURL         string
	ChainID        int64
	PrivateKeyHex  string
	RateLimit      float64 // requests per second, <=0 disables pacing
	ConfirmTimeout time.Duration
}

// Client is the ledger used by the game: one RPC endpoint plus one signing key.
type Client struct {
	ec             *ethclient.Client
	chainID        *big.Int
	prv            *ecdsa.PrivateKey
	addr           common.Address
	limiter        *rate.Limiter
	confirmTimeout time.Duration
	log            *zap.Logger
}

// Dial connects to opts.RPCURL and checks the endpoint's chain id against
// opts.ChainID. A zero opts.ChainID accepts whatever the endpoint reports.
func Dial(ctx context.Context, opts Options, log *zap.Logger) (*Client, error) {
	prv, err := HexToECDSA(opts.PrivateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("private key: %w", err)
	}
	httpClient := &http.Client{
		Timeout:   30 * time.Second,
		Transport: &http.Transport{MaxIdleConns: 100, IdleConnTimeout: 90 * time.Second},
	}
	rc, err := rpc.DialOptions(ctx, opts.RPCURL, rpc.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", opts.RPCURL, err)
	}
	c := NewClient(ethclient.NewClient(rc), prv, opts, log)
	id, err := c.ec.ChainID(ctx)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("chain id: %w", err)
	}
	if opts.ChainID != 0 && id.Cmp(c.chainID) != 0 {
		c.Close()
		return nil, fmt.Errorf("chain id mismatch: endpoint reports %s, configured %d", id, opts.ChainID)
	}
	c.chainID = id
	return c, nil
}

// NewClient builds a Client around an existing ethclient.
func NewClient(ec *ethclient.Client, prv *ecdsa.PrivateKey, opts Options, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}
	timeout := opts.ConfirmTimeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	addr := gethcrypto.PubkeyToAddress(prv.PublicKey)
	return &Client{
		ec:             ec,
		chainID:        big.NewInt(opts.ChainID),
		prv:            prv,
		addr:           addr,
		limiter:        limiter,
		confirmTimeout: timeout,
		log:            log.With(zap.String("wallet", addr.Hex())),
	}
}

func (c *Client) Close() { c.ec.Close() }

func (c *Client) Address() common.Address { return c.addr }

func (c *Client) ChainID() *big.Int { return new(big.Int).Set(c.chainID) }

func (c *Client) BalanceAt(ctx context.Context, addr common.Address) (*big.Int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}
	return withRetry(ctx, func() (*big.Int, error) { return c.ec.BalanceAt(ctx, addr, nil) })
}

// CallContract performs eth_call at the latest block. Reverts are returned
// immediately; transport errors are retried with a small backoff.
func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}
	if msg.From == (common.Address{}) {
		msg.From = c.addr
	}
	return withRetry(ctx, func() ([]byte, error) { return c.ec.CallContract(ctx, msg, nil) })
}

func (c *Client) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, fmt.Errorf("rate limiter: %w", err)
	}
	msg.From = c.addr
	return withRetry(ctx, func() (uint64, error) { return c.ec.EstimateGas(ctx, msg) })
}

func (c *Client) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}
	return withRetry(ctx, func() (*big.Int, error) { return c.ec.SuggestGasPrice(ctx) })
}

// NonceAt returns the nonce at the latest block.
func (c *Client) NonceAt(ctx context.Context) (uint64, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, fmt.Errorf("rate limiter: %w", err)
	}
	return withRetry(ctx, func() (uint64, error) { return c.ec.NonceAt(ctx, c.addr, nil) })
}

// SignTx signs with the latest signer for the configured chain id.
func (c *Client) SignTx(tx *types.Transaction) (*types.Transaction, error) {
	return types.SignTx(tx, types.LatestSignerForChainID(c.chainID), c.prv)
}

// SendTransaction is never retried: a resend could double-spend the nonce slot.
func (c *Client) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	return c.ec.SendTransaction(ctx, tx)
}

// WaitConfirmed blocks until tx is mined and fails when it reverted.
func (c *Client) WaitConfirmed(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, c.confirmTimeout)
	defer cancel()
	rcpt, err := bind.WaitMined(ctx, c.ec, tx)
	if err != nil {
		return nil, fmt.Errorf("wait %s: %w", tx.Hash().Hex(), err)
	}
	if rcpt.Status != types.ReceiptStatusSuccessful {
		return rcpt, fmt.Errorf("%w: tx %s in block %s", ErrReverted, tx.Hash().Hex(), rcpt.BlockNumber)
	}
	c.log.Debug("tx confirmed",
		zap.String("tx", tx.Hash().Hex()),
		zap.Uint64("gas_used", rcpt.GasUsed),
		zap.Stringer("block", rcpt.BlockNumber))
	return rcpt, nil
}

// HexToECDSA parses a hex private key with or without 0x.
func HexToECDSA(s string) (*ecdsa.PrivateKey, error) {
	h := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if len(h) == 0 {
		return nil, errors.New("empty private key")
	}
	return gethcrypto.HexToECDSA(h)
}

// MaskHex hides the middle of a secret for display.
func MaskHex(h string) string {
	h = strings.TrimSpace(h)
	if len(h) <= 10 {
		return "***"
	}
	return h[:6] + "…" + h[len(h)-4:]
}
