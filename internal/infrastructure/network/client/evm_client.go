package client

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"portfolio_tracker/internal/domain/entity"
)

// ERC20 ABI minimal part for balanceOf
const erc20ABI = `[{"constant":true,"inputs":[{"name":"_owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"balance","type":"uint256"}],"payable":false,"stateMutability":"view","type":"function"}]`

var (
	parsedERC20ABI  abi.ABI
	parsedERC20Once sync.Once
	erc20MethodID   []byte
)

func initParsedERC20ABI() {
	parsedERC20Once.Do(func() {
		var err error
		parsedERC20ABI, err = abi.JSON(strings.NewReader(erc20ABI))
		if err != nil {
			panic(fmt.Sprintf("failed to parse ERC20 ABI: %v", err))
		}
		balanceOfMethod, ok := parsedERC20ABI.Methods["balanceOf"]
		if !ok {
			panic("balanceOf method not found in parsed ERC20 ABI")
		}
		erc20MethodID = balanceOfMethod.ID
	})
}

// EVMClient reads balances from an EVM node with JSON-RPC batch requests.
type EVMClient struct {
	ethClient      *ethclient.Client
	netDef         entity.NetworkDefinition
	rpcCallTimeout time.Duration
}

// NewEVMClient dials the primary RPC of the network, then each fallback in order.
func NewEVMClient(netDef entity.NetworkDefinition, connectionTimeout, rpcCallTimeout time.Duration) (*EVMClient, error) {
	initParsedERC20ABI()
	rpcURLs := append([]string{netDef.PrimaryRPCURL}, netDef.FallbackRPCURLs...)
	var lastErr error

	for _, rpcURL := range rpcURLs {
		if rpcURL == "" {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
		client, err := ethclient.DialContext(ctx, rpcURL)
		cancel()
		if err == nil {
			return &EVMClient{ethClient: client, netDef: netDef, rpcCallTimeout: rpcCallTimeout}, nil
		}
		lastErr = fmt.Errorf("failed to connect to RPC %s: %w", rpcURL, err)
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no RPC URL configured")
	}
	return nil, fmt.Errorf("all RPC connection attempts failed for network %s: %w", netDef.Name, lastErr)
}

// GetBalances fetches the native balance and the balanceOf of every token in
// one batch. Tokens whose call fails or returns zero are omitted.
func (c *EVMClient) GetBalances(ctx context.Context, walletAddress string, tokens []entity.TokenInfo) (*big.Int, []entity.TokenBalance, error) {
	owner := common.HexToAddress(walletAddress)
	batchElems := make([]rpc.BatchElem, 0, len(tokens)+1)

	nativeResult := new(hexutil.Big)
	batchElems = append(batchElems, rpc.BatchElem{
		Method: "eth_getBalance",
		Args:   []interface{}{owner, "latest"},
		Result: nativeResult,
	})

	paddedOwner := common.LeftPadBytes(owner.Bytes(), 32)
	tokenResults := make([]*hexutil.Bytes, len(tokens))
	for i, token := range tokens {
		callData := append(append([]byte{}, erc20MethodID...), paddedOwner...)
		tokenResults[i] = new(hexutil.Bytes)
		batchElems = append(batchElems, rpc.BatchElem{
			Method: "eth_call",
			Args: []interface{}{map[string]interface{}{
				"to":   common.HexToAddress(token.Address),
				"data": hexutil.Bytes(callData),
			}, "latest"},
			Result: tokenResults[i],
		})
	}

	rpcCallCtx, cancel := context.WithTimeout(ctx, c.rpcCallTimeout)
	defer cancel()
	if err := c.ethClient.Client().BatchCallContext(rpcCallCtx, batchElems); err != nil {
		return nil, nil, fmt.Errorf("RPC batch call failed: %w", err)
	}
	if batchElems[0].Error != nil {
		return nil, nil, fmt.Errorf("eth_getBalance failed for %s: %w", walletAddress, batchElems[0].Error)
	}

	balances := make([]entity.TokenBalance, 0, len(tokens))
	for i, token := range tokens {
		if batchElems[i+1].Error != nil {
			continue
		}
		raw := *tokenResults[i]
		if len(raw) == 0 {
			continue
		}
		unpacked, err := parsedERC20ABI.Unpack("balanceOf", raw)
		if err != nil || len(unpacked) == 0 {
			continue
		}
		amount, ok := unpacked[0].(*big.Int)
		if !ok || amount.Sign() == 0 {
			continue
		}
		balances = append(balances, entity.TokenBalance{
			ContractAddress: token.Address,
			Name:            token.Name,
			Symbol:          token.Symbol,
			Decimals:        token.Decimals,
			RawBalance:      amount.String(),
		})
	}
	return nativeResult.ToInt(), balances, nil
}

// Definition returns the network definition for this client.
func (c *EVMClient) Definition() entity.NetworkDefinition {
	return c.netDef
}

// Close closes the underlying RPC connection.
func (c *EVMClient) Close() {
	c.ethClient.Close()
}
