package ethereum

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/smallbiznis/claimsync/internal/chain/domain"
	"github.com/smallbiznis/claimsync/internal/observability/tracing"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Backend is the subset of ethclient.Client the adapter needs.
type Backend interface {
	BlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error)
}

type Config struct {
	ContractAddress common.Address
	Confirmations   uint64
	MaxBlockRange   uint64
	RequestTimeout  time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxBlockRange:  2000,
		RequestTimeout: 10 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.MaxBlockRange == 0 {
		c.MaxBlockRange = def.MaxBlockRange
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = def.RequestTimeout
	}
	return c
}

// Client reads contract events and transaction details over JSON-RPC.
type Client struct {
	backend Backend
	cfg     Config
	abi     abi.ABI
	log     *zap.Logger
	tracer  trace.Tracer
}

func NewClient(backend Backend, cfg Config, log *zap.Logger) (*Client, error) {
	if backend == nil {
		return nil, errors.New("chain backend is required")
	}
	parsed, err := ParseABI()
	if err != nil {
		return nil, fmt.Errorf("parse contract abi: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		backend: backend,
		cfg:     cfg.withDefaults(),
		abi:     parsed,
		log:     log.Named("chain.ethereum"),
		tracer:  otel.Tracer("claimsync/chain"),
	}, nil
}

// Head returns the newest block at the configured confirmation depth.
func (c *Client) Head(ctx context.Context) (uint64, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	head, err := c.backend.BlockNumber(callCtx)
	if err != nil {
		return 0, fmt.Errorf("block number: %w: %w", domain.ErrSourceUnavailable, err)
	}
	if head < c.cfg.Confirmations {
		return 0, nil
	}
	return head - c.cfg.Confirmations, nil
}

func (c *Client) Poll(ctx context.Context, kind domain.EventKind, fromBlock uint64) (domain.PollResult, error) {
	name, ok := eventNames[kind]
	if !ok {
		return domain.PollResult{}, domain.ErrUnknownEventKind
	}
	event := c.abi.Events[name]

	ctx, span := c.tracer.Start(ctx, "chain.poll", trace.WithAttributes(
		tracing.AttrEventKind.String(string(kind)),
		attribute.Int64("block.from", int64(fromBlock)),
	))
	defer span.End()

	callCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	head, err := c.backend.BlockNumber(callCtx)
	if err != nil {
		span.RecordError(tracing.SafeError(err))
		span.SetStatus(codes.Error, "block number")
		return domain.PollResult{}, fmt.Errorf("block number: %w: %w", domain.ErrSourceUnavailable, err)
	}

	result := domain.PollResult{FromBlock: fromBlock}
	if head < c.cfg.Confirmations {
		return result, nil
	}
	toBlock := head - c.cfg.Confirmations
	if limit := fromBlock + c.cfg.MaxBlockRange - 1; limit < toBlock {
		toBlock = limit
	}
	if fromBlock > toBlock {
		return result, nil
	}

	logs, err := c.backend.FilterLogs(callCtx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{c.cfg.ContractAddress},
		Topics:    [][]common.Hash{{event.ID}},
	})
	if err != nil {
		span.RecordError(tracing.SafeError(err))
		span.SetStatus(codes.Error, "filter logs")
		return domain.PollResult{}, fmt.Errorf("filter logs: %w: %w", domain.ErrSourceUnavailable, err)
	}

	events := make([]domain.RawEvent, 0, len(logs))
	for _, entry := range logs {
		if entry.Removed {
			continue
		}
		decoded, err := c.decode(kind, event, entry)
		if err != nil {
			c.log.Warn("dropping undecodable log",
				zap.String("event_kind", string(kind)),
				zap.String("tx_hash", entry.TxHash.Hex()),
				zap.Uint64("block_number", entry.BlockNumber),
				zap.Uint("log_index", entry.Index),
				zap.Error(err),
			)
			continue
		}
		events = append(events, decoded)
	}

	result.Events = events
	result.ToBlock = toBlock
	result.Scanned = true
	span.SetAttributes(
		attribute.Int64("block.to", int64(toBlock)),
		attribute.Int("event.count", len(events)),
	)
	return result, nil
}

func (c *Client) decode(kind domain.EventKind, event abi.Event, entry types.Log) (domain.RawEvent, error) {
	if len(entry.Topics) == 0 || entry.Topics[0] != event.ID {
		return domain.RawEvent{}, errors.New("topic_mismatch")
	}
	values, err := event.Inputs.NonIndexed().Unpack(entry.Data)
	if err != nil {
		return domain.RawEvent{}, err
	}

	raw := domain.RawEvent{
		Kind:        kind,
		TxHash:      entry.TxHash.Hex(),
		BlockNumber: entry.BlockNumber,
		LogIndex:    entry.Index,
	}

	switch kind {
	case domain.KindPremiumPaid:
		if len(entry.Topics) < 2 || len(values) != 2 {
			return domain.RawEvent{}, errors.New("malformed_premium_paid")
		}
		amount, ok := values[0].(*big.Int)
		if !ok {
			return domain.RawEvent{}, errors.New("invalid_amount")
		}
		ts, ok := values[1].(*big.Int)
		if !ok || !ts.IsInt64() {
			return domain.RawEvent{}, errors.New("invalid_timestamp")
		}
		raw.Payer = common.BytesToAddress(entry.Topics[1].Bytes()).Hex()
		raw.AmountWei = amount
		raw.Timestamp = time.Unix(ts.Int64(), 0).UTC()
	case domain.KindClaimSubmitted:
		if len(entry.Topics) < 2 || len(values) != 2 {
			return domain.RawEvent{}, errors.New("malformed_claim_submitted")
		}
		claimID, ok := values[0].(string)
		if !ok || strings.TrimSpace(claimID) == "" {
			return domain.RawEvent{}, errors.New("invalid_claim_id")
		}
		amount, ok := values[1].(*big.Int)
		if !ok {
			return domain.RawEvent{}, errors.New("invalid_amount")
		}
		raw.Payer = common.BytesToAddress(entry.Topics[1].Bytes()).Hex()
		raw.ClaimID = claimID
		raw.AmountWei = amount
	case domain.KindClaimVerified:
		if len(values) != 2 {
			return domain.RawEvent{}, errors.New("malformed_claim_verified")
		}
		claimID, ok := values[0].(string)
		if !ok || strings.TrimSpace(claimID) == "" {
			return domain.RawEvent{}, errors.New("invalid_claim_id")
		}
		status, ok := values[1].(bool)
		if !ok {
			return domain.RawEvent{}, errors.New("invalid_status")
		}
		raw.ClaimID = claimID
		raw.Verified = status
	default:
		return domain.RawEvent{}, domain.ErrUnknownEventKind
	}
	return raw, nil
}

// Fetch looks up gas usage, price and confirmation time for a transaction.
func (c *Client) Fetch(ctx context.Context, txHash string) (domain.TxDetail, error) {
	ctx, span := c.tracer.Start(ctx, "chain.fetch_detail", trace.WithAttributes(
		tracing.AttrTxHash.String(strings.ToLower(txHash)),
	))
	defer span.End()

	callCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	hash := common.HexToHash(txHash)
	receipt, err := c.backend.TransactionReceipt(callCtx, hash)
	if err != nil {
		span.RecordError(tracing.SafeError(err))
		return domain.TxDetail{}, fmt.Errorf("transaction receipt: %w: %w", domain.ErrDetailUnavailable, err)
	}
	if receipt == nil || receipt.BlockNumber == nil {
		return domain.TxDetail{}, fmt.Errorf("transaction receipt missing: %w", domain.ErrDetailUnavailable)
	}

	detail := domain.TxDetail{
		GasUsed:     receipt.GasUsed,
		BlockNumber: receipt.BlockNumber.Uint64(),
	}

	if receipt.EffectiveGasPrice != nil {
		detail.GasPrice = new(big.Int).Set(receipt.EffectiveGasPrice)
	} else {
		tx, _, err := c.backend.TransactionByHash(callCtx, hash)
		if err != nil {
			span.RecordError(tracing.SafeError(err))
			return domain.TxDetail{}, fmt.Errorf("transaction: %w: %w", domain.ErrDetailUnavailable, err)
		}
		if tx != nil {
			detail.GasPrice = tx.GasPrice()
		}
	}

	header, err := c.backend.HeaderByNumber(callCtx, receipt.BlockNumber)
	if err != nil {
		span.RecordError(tracing.SafeError(err))
		return domain.TxDetail{}, fmt.Errorf("block header: %w: %w", domain.ErrDetailUnavailable, err)
	}
	if header != nil {
		detail.ConfirmedAt = time.Unix(int64(header.Time), 0).UTC()
	}
	return detail, nil
}
