package attestation

import (
	"fmt"
	"math/big"

	"clarity-storefront/internal/core/domain"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ABICodec implements ports.AttestationCodec. On-chain attestation data is the
// ABI encoding of the schema fields in schema order.
type ABICodec struct{}

// NewABICodec creates an ABI codec.
func NewABICodec() *ABICodec {
	return &ABICodec{}
}

// Encode packs data into the layout described by fields.
func (ABICodec) Encode(fields []domain.SchemaField, data domain.AttestationData) (string, error) {
	args, err := arguments(fields)
	if err != nil {
		return "", err
	}

	values := make([]any, len(fields))
	for i, f := range fields {
		v, err := fieldValue(f, data)
		if err != nil {
			return "", err
		}
		values[i] = v
	}

	packed, err := args.Pack(values...)
	if err != nil {
		return "", fmt.Errorf("pack attestation: %w", err)
	}
	return hexutil.Encode(packed), nil
}

// Decode unpacks raw 0x-prefixed data laid out as fields.
func (ABICodec) Decode(fields []domain.SchemaField, raw string) (*domain.AttestationData, error) {
	args, err := arguments(fields)
	if err != nil {
		return nil, err
	}
	packed, err := hexutil.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("attestation data is not hex: %w", err)
	}
	values, err := args.Unpack(packed)
	if err != nil {
		return nil, fmt.Errorf("unpack attestation: %w", err)
	}

	out := &domain.AttestationData{}
	for i, f := range fields {
		if err := setField(out, f, values[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func arguments(fields []domain.SchemaField) (abi.Arguments, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("schema has no fields")
	}
	args := make(abi.Arguments, len(fields))
	for i, f := range fields {
		typ, err := abi.NewType(f.Type, "", nil)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		args[i] = abi.Argument{Name: f.Name, Type: typ}
	}
	return args, nil
}

func fieldValue(f domain.SchemaField, d domain.AttestationData) (any, error) {
	switch f.Name {
	case "buyer":
		return common.HexToAddress(d.Buyer), nil
	case "merchant":
		return common.HexToAddress(d.Merchant), nil
	case "eth":
		return d.Eth, nil
	case "usd":
		return d.Usd, nil
	case "items":
		if d.Items == nil {
			return []string{}, nil
		}
		return d.Items, nil
	case "time":
		return new(big.Int).SetUint64(d.Time), nil
	case "points":
		return d.Points, nil
	case "transactiontype":
		return string(d.TransactionType), nil
	case "txHash":
		return d.TxHash, nil
	}
	return nil, fmt.Errorf("unknown attestation field %q", f.Name)
}

func setField(d *domain.AttestationData, f domain.SchemaField, v any) error {
	switch f.Name {
	case "buyer", "merchant":
		addr, ok := v.(common.Address)
		if !ok {
			return typeError(f, v)
		}
		if f.Name == "buyer" {
			d.Buyer = addr.Hex()
		} else {
			d.Merchant = addr.Hex()
		}
	case "items":
		items, ok := v.([]string)
		if !ok {
			return typeError(f, v)
		}
		d.Items = items
	case "time":
		switch n := v.(type) {
		case *big.Int:
			if !n.IsUint64() {
				return typeError(f, v)
			}
			d.Time = n.Uint64()
		case uint64:
			d.Time = n
		default:
			return typeError(f, v)
		}
	case "eth", "usd", "points", "transactiontype", "txHash":
		s, ok := v.(string)
		if !ok {
			return typeError(f, v)
		}
		switch f.Name {
		case "eth":
			d.Eth = s
		case "usd":
			d.Usd = s
		case "points":
			d.Points = s
		case "transactiontype":
			d.TransactionType = domain.TransactionType(s)
		case "txHash":
			d.TxHash = s
		}
	default:
		// Fields outside the purchase layout are carried by the schema but not surfaced.
	}
	return nil
}

func typeError(f domain.SchemaField, v any) error {
	return fmt.Errorf("field %s (%s) decoded as %T", f.Name, f.Type, v)
}
