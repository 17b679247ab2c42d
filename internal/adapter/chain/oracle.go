package chain

import (
	"context"
	"fmt"
	"math/big"

	"clarity-storefront/internal/core/ports"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

// ContractCaller executes read-only contract calls. *ethclient.Client satisfies it.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// ChainlinkOracle implements ports.PriceOracle against an AggregatorV3 feed.
type ChainlinkOracle struct {
	caller ContractCaller
	feed   common.Address
}

// NewChainlinkOracle creates an oracle reading the feed at the given address.
func NewChainlinkOracle(caller ContractCaller, feed common.Address) *ChainlinkOracle {
	return &ChainlinkOracle{caller: caller, feed: feed}
}

// Decimals returns the feed's answer scale.
func (o *ChainlinkOracle) Decimals(ctx context.Context) (uint8, error) {
	out, err := o.call(ctx, "decimals")
	if err != nil {
		return 0, err
	}
	dec, ok := out[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("decimals: unexpected type %T", out[0])
	}
	return dec, nil
}

// LatestRoundData returns the most recent round of the feed.
func (o *ChainlinkOracle) LatestRoundData(ctx context.Context) (*ports.RoundData, error) {
	out, err := o.call(ctx, "latestRoundData")
	if err != nil {
		return nil, err
	}
	if len(out) != 5 {
		return nil, fmt.Errorf("latestRoundData: expected 5 outputs, got %d", len(out))
	}

	values := make([]*big.Int, len(out))
	for i, v := range out {
		n, ok := v.(*big.Int)
		if !ok {
			return nil, fmt.Errorf("latestRoundData: output %d has type %T", i, v)
		}
		values[i] = n
	}

	return &ports.RoundData{
		RoundID:         values[0],
		Answer:          values[1],
		StartedAt:       values[2],
		UpdatedAt:       values[3],
		AnsweredInRound: values[4],
	}, nil
}

func (o *ChainlinkOracle) call(ctx context.Context, method string) ([]any, error) {
	data, err := aggregatorABI.Pack(method)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	raw, err := o.caller.CallContract(ctx, ethereum.CallMsg{To: &o.feed, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	out, err := aggregatorABI.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s: empty result", method)
	}
	return out, nil
}
