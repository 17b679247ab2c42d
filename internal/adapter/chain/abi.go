package chain

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// purchaseABIJSON is the storefront payment contract. PurchaseCompleted is
// emitted on success but nothing here consumes it.
const purchaseABIJSON = `[
	{"type":"function","name":"purchase","stateMutability":"payable","outputs":[],
	 "inputs":[{"name":"merchant","type":"address","internalType":"address payable"},
	           {"name":"signature","type":"bytes","internalType":"bytes"}]},
	{"type":"event","name":"PurchaseCompleted","anonymous":false,
	 "inputs":[{"name":"buyer","type":"address","indexed":true},
	           {"name":"merchant","type":"address","indexed":true},
	           {"name":"amount","type":"uint256","indexed":false},
	           {"name":"timestamp","type":"uint256","indexed":false}]}
]`

// aggregatorV3ABIJSON covers the two AggregatorV3Interface views the price service reads.
const aggregatorV3ABIJSON = `[
	{"type":"function","name":"decimals","stateMutability":"view","inputs":[],
	 "outputs":[{"name":"","type":"uint8"}]},
	{"type":"function","name":"latestRoundData","stateMutability":"view","inputs":[],
	 "outputs":[{"name":"roundId","type":"uint80"},
	            {"name":"answer","type":"int256"},
	            {"name":"startedAt","type":"uint256"},
	            {"name":"updatedAt","type":"uint256"},
	            {"name":"answeredInRound","type":"uint80"}]}
]`

var (
	purchaseABI   = mustParseABI(purchaseABIJSON)
	aggregatorABI = mustParseABI(aggregatorV3ABIJSON)
)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("chain: invalid ABI: %v", err))
	}
	return parsed
}
