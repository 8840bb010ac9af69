package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/fundlink/crowdfund-middleware/pkg/config"
)

const cancelGasLimit = 21000

// Client is the per-network adapter over the platform contract. All calls
// except Receipt and TransactionByHash go through the retry policy.
type Client struct {
	cfg      config.ChainConfig
	eth      *ethclient.Client
	abi      abi.ABI
	contract common.Address
	signer   types.Signer
	retry    RetryPolicy
	logger   *zap.Logger
}

// NewClient connects to a chain's RPC endpoint and binds the contract ABI
func NewClient(cfg config.ChainConfig, retry RetryPolicy, logger *zap.Logger) (*Client, error) {
	eth, err := ethclient.Dial(cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s RPC: %w", cfg.Name, err)
	}

	contractABI, err := parseContractABI()
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("failed to parse contract ABI: %w", err)
	}

	logger.Info("Connected to chain",
		zap.String("chain", cfg.Name),
		zap.Int64("chain_id", cfg.ChainID),
		zap.String("contract", cfg.ContractAddress),
		zap.Bool("is_main", cfg.IsMain))

	return &Client{
		cfg:      cfg,
		eth:      eth,
		abi:      contractABI,
		contract: common.HexToAddress(cfg.ContractAddress),
		signer:   types.LatestSignerForChainID(big.NewInt(cfg.ChainID)),
		retry:    retry,
		logger:   logger.With(zap.String("chain", cfg.Name)),
	}, nil
}

// Close closes the RPC connection
func (c *Client) Close() {
	c.eth.Close()
}

// Name returns the configured chain name
func (c *Client) Name() string {
	return c.cfg.Name
}

// IsMain reports whether this is the main chain
func (c *Client) IsMain() bool {
	return c.cfg.IsMain
}

// Decimals returns the fixed-point precision of on-chain amounts
func (c *Client) Decimals() int32 {
	return c.cfg.NativeDecimals
}

// CurrentHeight returns the chain head minus the confirmation offset, so
// everything at or below it is treated as finalized enough.
func (c *Client) CurrentHeight(ctx context.Context) (uint64, error) {
	head, err := retryCall(ctx, c.retry, c.logger, "eth_blockNumber", func() (uint64, error) {
		return c.eth.BlockNumber(ctx)
	})
	if err != nil {
		return 0, fmt.Errorf("current height on %s: %w", c.cfg.Name, err)
	}
	if head <= c.cfg.ConfirmationBlocks {
		return 0, nil
	}
	return head - c.cfg.ConfirmationBlocks, nil
}

// FilterEvents fetches and decodes one event kind over an inclusive block range
func (c *Client) FilterEvents(ctx context.Context, kind EventKind, fromBlock, toBlock uint64) ([]Event, error) {
	def, ok := c.abi.Events[string(kind)]
	if !ok {
		return nil, fmt.Errorf("unknown event kind %s", kind)
	}

	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{c.contract},
		Topics:    [][]common.Hash{{def.ID}},
	}

	logs, err := retryCall(ctx, c.retry, c.logger, "eth_getLogs", func() ([]types.Log, error) {
		return c.eth.FilterLogs(ctx, query)
	})
	if err != nil {
		return nil, fmt.Errorf("filter %s logs on %s: %w", kind, c.cfg.Name, err)
	}

	events := make([]Event, 0, len(logs))
	for _, log := range logs {
		if log.Removed {
			continue
		}
		event, err := decodeEvent(c.abi, kind, log)
		if err != nil {
			return nil, fmt.Errorf("decode %s log %s: %w", kind, log.TxHash.Hex(), err)
		}
		events = append(events, event)
	}
	return events, nil
}

// Balance returns the native-token balance of an address in wei
func (c *Client) Balance(ctx context.Context, address string) (*big.Int, error) {
	balance, err := retryCall(ctx, c.retry, c.logger, "eth_getBalance", func() (*big.Int, error) {
		return c.eth.BalanceAt(ctx, common.HexToAddress(address), nil)
	})
	if err != nil {
		return nil, fmt.Errorf("balance of %s on %s: %w", address, c.cfg.Name, err)
	}
	return balance, nil
}

// EstimateFee quotes gas limit, base fee and priority tip for a donate call
func (c *Client) EstimateFee(ctx context.Context, from string, campaignID int64, value *big.Int) (FeeEstimate, error) {
	data, err := c.abi.Pack("donate", big.NewInt(campaignID))
	if err != nil {
		return FeeEstimate{}, fmt.Errorf("pack donate call: %w", err)
	}

	msg := ethereum.CallMsg{
		From:  common.HexToAddress(from),
		To:    &c.contract,
		Value: value,
		Data:  data,
	}
	gasLimit, err := retryCall(ctx, c.retry, c.logger, "eth_estimateGas", func() (uint64, error) {
		return c.eth.EstimateGas(ctx, msg)
	})
	if err != nil {
		return FeeEstimate{}, fmt.Errorf("estimate gas on %s: %w", c.cfg.Name, err)
	}

	header, err := retryCall(ctx, c.retry, c.logger, "eth_getBlockByNumber", func() (*types.Header, error) {
		return c.eth.HeaderByNumber(ctx, nil)
	})
	if err != nil {
		return FeeEstimate{}, fmt.Errorf("head header on %s: %w", c.cfg.Name, err)
	}
	baseFee := header.BaseFee
	if baseFee == nil {
		baseFee = big.NewInt(0)
	}

	tip, err := retryCall(ctx, c.retry, c.logger, "eth_maxPriorityFeePerGas", func() (*big.Int, error) {
		return c.eth.SuggestGasTipCap(ctx)
	})
	if err != nil {
		return FeeEstimate{}, fmt.Errorf("suggest tip on %s: %w", c.cfg.Name, err)
	}

	return FeeEstimate{GasLimit: gasLimit, BaseFee: baseFee, Tip: tip}, nil
}

// SubmitDonation signs and broadcasts a donate call carrying the swept amount
func (c *Client) SubmitDonation(ctx context.Context, key *ecdsa.PrivateKey, campaignID int64, amount *big.Int, fee FeeEstimate) (string, error) {
	data, err := c.abi.Pack("donate", big.NewInt(campaignID))
	if err != nil {
		return "", fmt.Errorf("pack donate call: %w", err)
	}

	from := crypto.PubkeyToAddress(key.PublicKey)
	nonce, err := retryCall(ctx, c.retry, c.logger, "eth_getTransactionCount", func() (uint64, error) {
		return c.eth.PendingNonceAt(ctx, from)
	})
	if err != nil {
		return "", fmt.Errorf("pending nonce for %s on %s: %w", from.Hex(), c.cfg.Name, err)
	}

	tx, err := types.SignNewTx(key, c.signer, &types.DynamicFeeTx{
		ChainID:   big.NewInt(c.cfg.ChainID),
		Nonce:     nonce,
		GasTipCap: fee.Tip,
		GasFeeCap: feeCap(fee.BaseFee, fee.Tip),
		Gas:       fee.GasLimit,
		To:        &c.contract,
		Value:     amount,
		Data:      data,
	})
	if err != nil {
		return "", fmt.Errorf("sign donation tx: %w", err)
	}

	err = c.retry.Do(ctx, c.logger, "eth_sendRawTransaction", func() error {
		return c.eth.SendTransaction(ctx, tx)
	})
	if err != nil {
		return "", fmt.Errorf("submit donation on %s: %w", c.cfg.Name, err)
	}
	return tx.Hash().Hex(), nil
}

// SubmitCancel broadcasts a zero-value self-transfer reusing nonce, the
// standard cancel-or-speed-up replacement. The provided fees must be strictly
// higher than the original transaction's or nodes reject the replacement.
func (c *Client) SubmitCancel(ctx context.Context, key *ecdsa.PrivateKey, nonce uint64, tip, cap *big.Int) (string, error) {
	from := crypto.PubkeyToAddress(key.PublicKey)

	tx, err := types.SignNewTx(key, c.signer, &types.DynamicFeeTx{
		ChainID:   big.NewInt(c.cfg.ChainID),
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: cap,
		Gas:       cancelGasLimit,
		To:        &from,
		Value:     big.NewInt(0),
	})
	if err != nil {
		return "", fmt.Errorf("sign cancel tx: %w", err)
	}

	err = c.retry.Do(ctx, c.logger, "eth_sendRawTransaction", func() error {
		return c.eth.SendTransaction(ctx, tx)
	})
	if err != nil {
		return "", fmt.Errorf("submit cancel on %s: %w", c.cfg.Name, err)
	}
	return tx.Hash().Hex(), nil
}

// Receipt fetches a transaction receipt. Absent receipts are expected while
// a transaction waits for inclusion, so this is a single attempt returning
// nil rather than an error when the node has nothing yet.
func (c *Client) Receipt(ctx context.Context, txHash string) (*ReceiptInfo, error) {
	receipt, err := c.eth.TransactionReceipt(ctx, common.HexToHash(txHash))
	if errors.Is(err, ethereum.NotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("receipt for %s on %s: %w", txHash, c.cfg.Name, err)
	}
	return &ReceiptInfo{
		Success:     receipt.Status == types.ReceiptStatusSuccessful,
		BlockNumber: receipt.BlockNumber.Uint64(),
	}, nil
}

// NonceCount returns the transaction count of an address; pending selects
// the mempool view, otherwise only mined transactions count.
func (c *Client) NonceCount(ctx context.Context, address string, pending bool) (uint64, error) {
	addr := common.HexToAddress(address)
	count, err := retryCall(ctx, c.retry, c.logger, "eth_getTransactionCount", func() (uint64, error) {
		if pending {
			return c.eth.PendingNonceAt(ctx, addr)
		}
		return c.eth.NonceAt(ctx, addr, nil)
	})
	if err != nil {
		return 0, fmt.Errorf("nonce count for %s on %s: %w", address, c.cfg.Name, err)
	}
	return count, nil
}

// TransactionByHash recovers the nonce and fee shape of a broadcast
// transaction. Single attempt; nil when the node no longer knows the hash.
func (c *Client) TransactionByHash(ctx context.Context, txHash string) (*TxInfo, error) {
	tx, pending, err := c.eth.TransactionByHash(ctx, common.HexToHash(txHash))
	if errors.Is(err, ethereum.NotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("transaction %s on %s: %w", txHash, c.cfg.Name, err)
	}
	return &TxInfo{
		Nonce:   tx.Nonce(),
		Tip:     tx.GasTipCap(),
		FeeCap:  tx.GasFeeCap(),
		Pending: pending,
	}, nil
}

// feeCap computes maxFeePerGas as twice the base fee plus the tip, the
// common headroom against base-fee drift between estimate and inclusion
func feeCap(baseFee, tip *big.Int) *big.Int {
	cap := new(big.Int).Mul(baseFee, big.NewInt(2))
	return cap.Add(cap, tip)
}
