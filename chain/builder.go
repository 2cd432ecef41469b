package chain

import (
	"context"
	"fmt"
	"time"

	"github.com/aptos-labs/aptos-go-sdk"

	"github.com/dwdwow/mp-go/constants"
	"github.com/dwdwow/mp-go/types"
)

// NodeReader is the part of the node client the builder needs.
// *aptos.NodeClient implements it.
type NodeReader interface {
	BuildTransaction(sender aptos.AccountAddress, payload aptos.TransactionPayload, options ...any) (*aptos.RawTransaction, error)
}

// Builder turns a call descriptor into an unsigned transaction
type Builder struct {
	node       NodeReader
	chainID    uint8
	maxGas     uint64
	expiration time.Duration
}

// BuilderOption configures a Builder
type BuilderOption func(*Builder)

// WithMaxGas sets the max gas amount of built transactions
func WithMaxGas(maxGas uint64) BuilderOption {
	return func(b *Builder) { b.maxGas = maxGas }
}

// WithExpiration sets how long built transactions stay valid
func WithExpiration(d time.Duration) BuilderOption {
	return func(b *Builder) { b.expiration = d }
}

// NewBuilder creates a builder that stamps every transaction with chainID,
// whatever network profile the node client defaults to.
func NewBuilder(node NodeReader, chainID uint8, opts ...BuilderOption) *Builder {
	b := &Builder{
		node:       node,
		chainID:    chainID,
		maxGas:     constants.DefaultMaxGasAmount,
		expiration: constants.DefaultExpirationSecs * time.Second,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// ChainID returns the chain id stamped on built transactions
func (b *Builder) ChainID() uint8 {
	return b.chainID
}

// Build lets the node client resolve the sender's sequence number and the
// gas price, then takes the signing message of the resulting raw transaction.
func (b *Builder) Build(ctx context.Context, sender string, desc types.CallDescriptor) (types.UnsignedTransaction, error) {
	addr, err := types.ParseAddress(sender)
	if err != nil {
		return types.UnsignedTransaction{}, types.NewValidationError("invalid sender address: %v", err)
	}
	entry, err := ParseEntryFunction(desc)
	if err != nil {
		return types.UnsignedTransaction{}, types.NewValidationError("invalid call: %v", err)
	}

	txn, err := call(ctx, func() (*aptos.RawTransaction, error) {
		return b.node.BuildTransaction(aptos.AccountAddress(addr), aptos.TransactionPayload{Payload: entry},
			aptos.MaxGasAmount(b.maxGas),
			aptos.ExpirationSeconds(uint64(b.expiration/time.Second)),
			aptos.ChainIdOption(b.chainID),
		)
	})
	if err != nil {
		err = nodeError("build transaction", err)
		if IsNotFound(err) {
			return types.UnsignedTransaction{}, types.NewValidationError("account %s does not exist on chain", addr)
		}
		return types.UnsignedTransaction{}, types.NewNetworkError(constants.NetworkErrorMessage, err)
	}
	if txn.ChainId != b.chainID {
		return types.UnsignedTransaction{}, fmt.Errorf("node client built for chain %d, want %d", txn.ChainId, b.chainID)
	}

	msg, err := txn.SigningMessage()
	if err != nil {
		return types.UnsignedTransaction{}, types.NewValidationError("encode transaction: %v", err)
	}
	return types.UnsignedTransaction{
		Raw: types.RawTransaction{
			Sender:                  addr,
			SequenceNumber:          txn.SequenceNumber,
			Payload:                 desc,
			MaxGasAmount:            txn.MaxGasAmount,
			GasUnitPrice:            txn.GasUnitPrice,
			ExpirationTimestampSecs: txn.ExpirationTimestampSeconds,
			ChainID:                 txn.ChainId,
		},
		SigningMessage: msg,
	}, nil
}
