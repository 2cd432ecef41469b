package types

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// AddressLength is the byte length of a Movement account address
const AddressLength = 32

// AccountAddress is a 32 byte on-chain account address
type AccountAddress [AddressLength]byte

// ParseAddress parses a hex address. Short forms such as 0x1 are left-padded.
func ParseAddress(s string) (AccountAddress, error) {
	var addr AccountAddress
	raw := strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if raw == "" {
		return addr, fmt.Errorf("empty address")
	}
	if len(raw) > AddressLength*2 {
		return addr, fmt.Errorf("address too long: %d hex characters", len(raw))
	}
	if len(raw)%2 == 1 {
		raw = "0" + raw
	}
	b, err := hex.DecodeString(raw)
	if err != nil {
		return addr, fmt.Errorf("invalid hex address %q: %w", s, err)
	}
	copy(addr[AddressLength-len(b):], b)
	return addr, nil
}

// String returns the full 0x-prefixed long form
func (a AccountAddress) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

// MoveAbort is the structured form of a Move abort status
type MoveAbort struct {
	Location string // module that aborted, e.g. 0x1::coin
	Reason   string // error constant name, e.g. EINSUFFICIENT_BALANCE
	Code     uint64
}

// RawTransaction is the unsigned transaction body
type RawTransaction struct {
	Sender                  AccountAddress
	SequenceNumber          uint64
	Payload                 CallDescriptor
	MaxGasAmount            uint64
	GasUnitPrice            uint64
	ExpirationTimestampSecs uint64
	ChainID                 uint8
}

// UnsignedTransaction is the first stage of a transaction
type UnsignedTransaction struct {
	Raw RawTransaction
	// SigningMessage is the exact byte string a signer must sign
	SigningMessage []byte
}

// SimulationResult is the outcome of a preflight dry run
type SimulationResult struct {
	Success  bool
	VMStatus string
	GasUsed  uint64
	Abort    *MoveAbort
}

// SimulatedTransaction is an unsigned transaction that passed preflight
type SimulatedTransaction struct {
	Unsigned UnsignedTransaction
	Result   SimulationResult
	Digest   []byte
}

// Authenticator is the ed25519 authenticator attached to a signed transaction
type Authenticator struct {
	PublicKey [32]byte
	Signature [64]byte
}

// SignedTransaction pairs the raw transaction with its authenticator
type SignedTransaction struct {
	Raw           RawTransaction
	Authenticator Authenticator
}

// SubmittedTransaction is a transaction accepted into the mempool
type SubmittedTransaction struct {
	Hash string
}

// FinalizedTransaction is a committed transaction
type FinalizedTransaction struct {
	Hash     string
	Success  bool
	VMStatus string
	Version  uint64
	GasUsed  uint64
}
