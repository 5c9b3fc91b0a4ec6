package pricesource

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/dexlens/dexlens/pkg/chain"
	"github.com/dexlens/dexlens/pkg/pricegraph"
)

// spotPrecision is the fractional precision used when decoding raw
// fixed-point pool prices to display scale.
const spotPrecision = 24

// Minimal ABI for the pool query contract: enumerating registered pools and
// resolving a (base, quote, fee) triple to a concrete pool address.
const queryContractABI = `[
  {"inputs":[],"name":"getPools","outputs":[
     {"internalType":"address[]","name":"bases","type":"address[]"},
     {"internalType":"address[]","name":"quotes","type":"address[]"},
     {"internalType":"uint24[]","name":"fees","type":"uint24[]"}],
   "stateMutability":"view","type":"function"},
  {"inputs":[
     {"internalType":"address","name":"tokenA","type":"address"},
     {"internalType":"address","name":"tokenB","type":"address"},
     {"internalType":"uint24","name":"fee","type":"uint24"}],
   "name":"getPool","outputs":[{"internalType":"address","name":"pool","type":"address"}],
   "stateMutability":"view","type":"function"}
]`

// Minimal pool ABI for reading the current sqrt price and token ordering.
const poolABI = `[
  {"inputs":[],"name":"slot0","outputs":[
     {"internalType":"uint160","name":"sqrtPriceX96","type":"uint160"},
     {"internalType":"int24","name":"tick","type":"int24"},
     {"internalType":"uint16","name":"observationIndex","type":"uint16"},
     {"internalType":"uint16","name":"observationCardinality","type":"uint16"},
     {"internalType":"uint16","name":"observationCardinalityNext","type":"uint16"},
     {"internalType":"uint8","name":"feeProtocol","type":"uint8"},
     {"internalType":"bool","name":"unlocked","type":"bool"}],
   "stateMutability":"view","type":"function"},
  {"inputs":[],"name":"token0","outputs":[{"internalType":"address","name":"","type":"address"}],"stateMutability":"view","type":"function"}
]`

const erc20ABI = `[
  {"inputs":[],"name":"decimals","outputs":[{"internalType":"uint8","name":"","type":"uint8"}],"stateMutability":"view","type":"function"}
]`

// OnchainClient lists pools and quotes spot prices from an on-chain pool
// query contract. It implements PoolLister and SpotPricer for the
// graph-resolution source variant.
type OnchainClient struct {
	network  chain.Network
	ec       *ethclient.Client
	qabi     abi.ABI
	pabi     abi.ABI
	eabi     abi.ABI
	contract common.Address
	logger   *zap.Logger

	mu       sync.Mutex
	decimals map[common.Address]uint8
	poolAddr map[pricegraph.Pair]common.Address
}

// NewOnchainClient dials the network's RPC endpoint and prepares the query
// contract bindings.
func NewOnchainClient(network chain.Network, logger *zap.Logger) (*OnchainClient, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ec, err := ethclient.Dial(network.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", network.RPCURL, err)
	}
	qabi, err := abi.JSON(strings.NewReader(queryContractABI))
	if err != nil {
		return nil, fmt.Errorf("parse query contract abi: %w", err)
	}
	pabi, err := abi.JSON(strings.NewReader(poolABI))
	if err != nil {
		return nil, fmt.Errorf("parse pool abi: %w", err)
	}
	eabi, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	return &OnchainClient{
		network:  network,
		ec:       ec,
		qabi:     qabi,
		pabi:     pabi,
		eabi:     eabi,
		contract: common.HexToAddress(network.QueryContract),
		logger:   logger,
		decimals: make(map[common.Address]uint8),
		poolAddr: make(map[pricegraph.Pair]common.Address),
	}, nil
}

// Close releases the underlying RPC connection.
func (c *OnchainClient) Close() {
	c.ec.Close()
}

// Pools implements PoolLister. Pairs are returned with lowercase addresses
// in canonical order (lower-sorted address is base) and the fee tier as the
// pool index.
func (c *OnchainClient) Pools(ctx context.Context) ([]pricegraph.Pair, error) {
	out, err := c.call(ctx, c.qabi, c.contract, "getPools")
	if err != nil {
		return nil, fmt.Errorf("getPools: %w", err)
	}
	if len(out) != 3 {
		return nil, fmt.Errorf("getPools: unexpected output arity %d", len(out))
	}
	bases, ok1 := out[0].([]common.Address)
	quotes, ok2 := out[1].([]common.Address)
	fees, ok3 := out[2].([]*big.Int)
	if !ok1 || !ok2 || !ok3 || len(bases) != len(quotes) || len(bases) != len(fees) {
		return nil, fmt.Errorf("getPools: malformed output")
	}

	pairs := make([]pricegraph.Pair, 0, len(bases))
	for i := range bases {
		base := chain.NormalizeAddress(bases[i].Hex())
		quote := chain.NormalizeAddress(quotes[i].Hex())
		if base > quote {
			base, quote = quote, base
		}
		pairs = append(pairs, pricegraph.Pair{
			Base:      base,
			Quote:     quote,
			PoolIndex: int(fees[i].Int64()),
		})
	}
	return pairs, nil
}

// SpotPrice implements SpotPricer: the display-scale price of the pair's
// base token denominated in its quote token, decoded from the pool's
// sqrt fixed-point representation and adjusted for both tokens' decimals.
func (c *OnchainClient) SpotPrice(ctx context.Context, p pricegraph.Pair) (decimal.Decimal, error) {
	pool, err := c.resolvePool(ctx, p)
	if err != nil {
		return decimal.Decimal{}, err
	}

	out, err := c.call(ctx, c.pabi, pool, "slot0")
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("slot0 %s: %w", pool.Hex(), err)
	}
	sqrtPriceX96, ok := out[0].(*big.Int)
	if !ok || sqrtPriceX96.Sign() == 0 {
		return decimal.Decimal{}, fmt.Errorf("pool %s: empty sqrt price", pool.Hex())
	}

	token0, err := c.poolToken0(ctx, pool)
	if err != nil {
		return decimal.Decimal{}, err
	}

	baseDec, err := c.tokenDecimals(ctx, common.HexToAddress(p.Base))
	if err != nil {
		return decimal.Decimal{}, err
	}
	quoteDec, err := c.tokenDecimals(ctx, common.HexToAddress(p.Quote))
	if err != nil {
		return decimal.Decimal{}, err
	}

	// slot0 quotes token1 per token0; flip when the canonical base is token1.
	if chain.NormalizeAddress(token0.Hex()) == p.Base {
		return priceFromSqrtX96(sqrtPriceX96, baseDec, quoteDec)
	}
	price, err := priceFromSqrtX96(sqrtPriceX96, quoteDec, baseDec)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if price.Sign() <= 0 {
		return decimal.Decimal{}, fmt.Errorf("pool %s: non-invertible price", pool.Hex())
	}
	return decimal.NewFromInt(1).DivRound(price, spotPrecision), nil
}

func (c *OnchainClient) resolvePool(ctx context.Context, p pricegraph.Pair) (common.Address, error) {
	c.mu.Lock()
	cached, ok := c.poolAddr[p]
	c.mu.Unlock()
	if ok {
		return cached, nil
	}

	out, err := c.call(ctx, c.qabi, c.contract, "getPool",
		common.HexToAddress(p.Base), common.HexToAddress(p.Quote), big.NewInt(int64(p.PoolIndex)))
	if err != nil {
		return common.Address{}, fmt.Errorf("getPool %s/%s: %w", p.Base, p.Quote, err)
	}
	pool, ok := out[0].(common.Address)
	if !ok || pool == (common.Address{}) {
		return common.Address{}, fmt.Errorf("no pool for %s/%s index %d", p.Base, p.Quote, p.PoolIndex)
	}

	c.mu.Lock()
	c.poolAddr[p] = pool
	c.mu.Unlock()
	return pool, nil
}

func (c *OnchainClient) poolToken0(ctx context.Context, pool common.Address) (common.Address, error) {
	out, err := c.call(ctx, c.pabi, pool, "token0")
	if err != nil {
		return common.Address{}, fmt.Errorf("token0 %s: %w", pool.Hex(), err)
	}
	addr, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("token0 %s: unexpected output", pool.Hex())
	}
	return addr, nil
}

func (c *OnchainClient) tokenDecimals(ctx context.Context, token common.Address) (uint8, error) {
	c.mu.Lock()
	cached, ok := c.decimals[token]
	c.mu.Unlock()
	if ok {
		return cached, nil
	}

	out, err := c.call(ctx, c.eabi, token, "decimals")
	if err != nil {
		return 0, fmt.Errorf("decimals %s: %w", token.Hex(), err)
	}

	var dec uint8
	switch v := out[0].(type) {
	case uint8:
		dec = v
	case *big.Int:
		dec = uint8(v.Uint64())
	default:
		return 0, fmt.Errorf("decimals %s: unexpected type %T", token.Hex(), v)
	}

	c.mu.Lock()
	c.decimals[token] = dec
	c.mu.Unlock()
	return dec, nil
}

func (c *OnchainClient) call(ctx context.Context, parsed abi.ABI, to common.Address, method string, args ...any) ([]any, error) {
	input, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	res, err := c.ec.CallContract(ctx, ethereum.CallMsg{To: &to, Data: input}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	out, err := parsed.Methods[method].Outputs.Unpack(res)
	if err != nil || len(out) == 0 {
		if err == nil {
			err = fmt.Errorf("empty output")
		}
		return nil, fmt.Errorf("decode %s: %w", method, err)
	}
	return out, nil
}

// priceFromSqrtX96 converts a Q64.96 sqrt price into the display-scale price
// of token0 denominated in token1: (sqrtP / 2^96)^2 scaled by the tokens'
// decimals difference. The math stays in big.Rat until the final formatting
// step so no precision is lost to binary floats.
func priceFromSqrtX96(sqrtPriceX96 *big.Int, dec0, dec1 uint8) (decimal.Decimal, error) {
	if sqrtPriceX96 == nil || sqrtPriceX96.Sign() <= 0 {
		return decimal.Decimal{}, fmt.Errorf("non-positive sqrt price")
	}

	num := new(big.Int).Mul(sqrtPriceX96, sqrtPriceX96)
	num.Mul(num, pow10(int(dec0)))

	den := new(big.Int).Lsh(big.NewInt(1), 192)
	den.Mul(den, pow10(int(dec1)))

	rat := new(big.Rat).SetFrac(num, den)
	price, err := decimal.NewFromString(rat.FloatString(spotPrecision))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("format sqrt price: %w", err)
	}
	if price.Sign() <= 0 {
		return decimal.Decimal{}, fmt.Errorf("sqrt price underflows display scale")
	}
	return price, nil
}

func pow10(n int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}
