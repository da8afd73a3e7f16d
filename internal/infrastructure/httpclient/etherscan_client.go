package httpclient

import (
	"context"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"portfolio_tracker/internal/domain/entity"
)

// EtherscanName is the provider name of the transaction source.
const EtherscanName = "etherscan"

// EtherscanClient fetches normal and internal transaction lists.
type EtherscanClient struct {
	baseClient
}

// NewEtherscanClient creates an Etherscan client.
func NewEtherscanClient(opts Options, logger *zap.Logger) *EtherscanClient {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.etherscan.io/api"
	}
	return &EtherscanClient{baseClient: newBaseClient(EtherscanName, opts, logger)}
}

type etherscanResponse struct {
	Status  string              `json:"status"`
	Message string              `json:"message"`
	Result  jsoniter.RawMessage `json:"result"`
}

// FetchTransactions fetches txlist and txlistinternal in parallel, newest first.
func (c *EtherscanClient) FetchTransactions(ctx context.Context, address string) (entity.TransactionHistory, error) {
	if err := c.requireKey(); err != nil {
		return entity.TransactionHistory{}, err
	}
	var history entity.TransactionHistory
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		txs, err := c.txList(egCtx, "txlist", address)
		history.Normal = txs
		return err
	})
	eg.Go(func() error {
		txs, err := c.txList(egCtx, "txlistinternal", address)
		history.Internal = txs
		return err
	})
	if err := eg.Wait(); err != nil {
		return entity.TransactionHistory{}, err
	}
	return history, nil
}

func (c *EtherscanClient) txList(ctx context.Context, action, address string) ([]entity.Transaction, error) {
	u := c.buildURL("",
		"module", "account",
		"action", action,
		"address", address,
		"startblock", "0",
		"endblock", "99999999",
		"sort", "desc",
		"apikey", c.apiKey,
	)
	var out etherscanResponse
	if err := c.getJSON(ctx, u, nil, &out); err != nil {
		return nil, err
	}
	if out.Status != "1" {
		// "No transactions found" приходит со status=0
		if strings.HasPrefix(out.Message, "No transactions found") {
			return []entity.Transaction{}, nil
		}
		var reason string
		_ = json.Unmarshal(out.Result, &reason)
		if reason == "" {
			reason = out.Message
		}
		c.logger.Warn("Etherscan returned an error", zap.String("action", action), zap.String("reason", reason))
		return nil, &entity.ProviderError{Provider: c.name, Kind: entity.KindStatus, Message: reason}
	}
	var txs []entity.Transaction
	if err := json.Unmarshal(out.Result, &txs); err != nil {
		return nil, &entity.ProviderError{Provider: c.name, Kind: entity.KindDecode, Message: "failed to decode " + action, Err: err}
	}
	return txs, nil
}
