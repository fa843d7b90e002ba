package ethereum

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/smallbiznis/claimsync/internal/chain/domain"
	"github.com/smallbiznis/claimsync/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("chain.ethereum",
	fx.Provide(
		ConfigFrom,
		Dial,
		newClient,
		func(c *Client) domain.EventSource { return c },
		func(c *Client) domain.DetailFetcher { return c },
	),
)

// ConfigFrom derives the adapter settings from the process config.
func ConfigFrom(cfg config.Config) (Config, error) {
	if !common.IsHexAddress(cfg.Chain.ContractAddress) {
		return Config{}, errors.New("chain.contract_address must be a hex address")
	}
	return Config{
		ContractAddress: common.HexToAddress(cfg.Chain.ContractAddress),
		Confirmations:   cfg.Chain.Confirmations,
		MaxBlockRange:   cfg.Chain.MaxBlockRange,
		RequestTimeout:  cfg.Chain.RequestTimeout,
	}.withDefaults(), nil
}

// Dial opens the JSON-RPC connection and closes it on shutdown.
func Dial(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (*ethclient.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Chain.RequestTimeout)
	defer cancel()

	client, err := ethclient.DialContext(ctx, cfg.Chain.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial chain rpc: %w", err)
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			client.Close()
			log.Named("chain.ethereum").Info("rpc client closed")
			return nil
		},
	})
	return client, nil
}

func newClient(backend *ethclient.Client, cfg Config, log *zap.Logger) (*Client, error) {
	return NewClient(backend, cfg, log)
}
