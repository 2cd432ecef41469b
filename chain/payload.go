// Package chain builds, simulates, submits and tracks Movement transactions.
package chain

import (
	"fmt"
	"strings"

	"github.com/aptos-labs/aptos-go-sdk"
	"github.com/aptos-labs/aptos-go-sdk/bcs"
	"github.com/aptos-labs/aptos-go-sdk/crypto"

	"github.com/dwdwow/mp-go/types"
)

// ParseEntryFunction resolves a call descriptor into its on-chain payload,
// checking the function id, each type argument and each argument value.
func ParseEntryFunction(desc types.CallDescriptor) (*aptos.EntryFunction, error) {
	parts := strings.Split(desc.Function, "::")
	if len(parts) != 3 || parts[1] == "" || parts[2] == "" {
		return nil, fmt.Errorf("invalid function id %q, want address::module::function", desc.Function)
	}
	addr, err := types.ParseAddress(parts[0])
	if err != nil {
		return nil, fmt.Errorf("invalid function id %q: %w", desc.Function, err)
	}

	f := &aptos.EntryFunction{
		Module:   aptos.ModuleId{Address: aptos.AccountAddress(addr), Name: parts[1]},
		Function: parts[2],
		ArgTypes: make([]aptos.TypeTag, 0, len(desc.TypeArguments)),
		Args:     make([][]byte, 0, len(desc.Arguments)),
	}
	for _, ty := range desc.TypeArguments {
		tag, err := aptos.ParseTypeTag(strings.TrimSpace(ty))
		if err != nil {
			return nil, fmt.Errorf("invalid type argument %q: %w", ty, err)
		}
		f.ArgTypes = append(f.ArgTypes, *tag)
	}
	for i, arg := range desc.Arguments {
		b, err := EncodeArgument(arg)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		f.Args = append(f.Args, b)
	}
	return f, nil
}

// EncodeArgument BCS-encodes a single entry function argument
func EncodeArgument(arg any) ([]byte, error) {
	switch v := arg.(type) {
	case types.ByteVector:
		return bcs.SerializeBytes(v)
	case []byte:
		return bcs.SerializeBytes(v)
	case bool:
		return bcs.SerializeBool(v)
	case uint8:
		return bcs.SerializeU8(v)
	case uint64:
		return bcs.SerializeU64(v)
	case string:
		return bcs.SerializeSingle(func(ser *bcs.Serializer) { ser.WriteString(v) })
	case types.AccountAddress:
		addr := aptos.AccountAddress(v)
		return bcs.Serialize(&addr)
	default:
		return nil, fmt.Errorf("unsupported argument type %T", arg)
	}
}

// ToRawTransaction converts a raw transaction into the node client's form
func ToRawTransaction(raw types.RawTransaction) (*aptos.RawTransaction, error) {
	entry, err := ParseEntryFunction(raw.Payload)
	if err != nil {
		return nil, err
	}
	return &aptos.RawTransaction{
		Sender:                     aptos.AccountAddress(raw.Sender),
		SequenceNumber:             raw.SequenceNumber,
		Payload:                    aptos.TransactionPayload{Payload: entry},
		MaxGasAmount:               raw.MaxGasAmount,
		GasUnitPrice:               raw.GasUnitPrice,
		ExpirationTimestampSeconds: raw.ExpirationTimestampSecs,
		ChainId:                    raw.ChainID,
	}, nil
}

// SigningMessage returns sha3_256("APTOS::RawTransaction") || bcs(raw), the bytes an account key signs
func SigningMessage(raw types.RawTransaction) ([]byte, error) {
	txn, err := ToRawTransaction(raw)
	if err != nil {
		return nil, err
	}
	return txn.SigningMessage()
}

// Ed25519Authenticator wraps a public key and signature as an account authenticator
func Ed25519Authenticator(publicKey [32]byte, signature [64]byte) (*crypto.AccountAuthenticator, error) {
	pub := &crypto.Ed25519PublicKey{}
	if err := pub.FromBytes(publicKey[:]); err != nil {
		return nil, err
	}
	sig := &crypto.Ed25519Signature{}
	if err := sig.FromBytes(signature[:]); err != nil {
		return nil, err
	}
	auth := &crypto.AccountAuthenticator{}
	if err := auth.FromKeyAndSignature(pub, sig); err != nil {
		return nil, err
	}
	return auth, nil
}

// ToSignedTransaction converts a signed transaction into the node client's form
func ToSignedTransaction(signed types.SignedTransaction) (*aptos.SignedTransaction, error) {
	txn, err := ToRawTransaction(signed.Raw)
	if err != nil {
		return nil, err
	}
	auth, err := Ed25519Authenticator(signed.Authenticator.PublicKey, signed.Authenticator.Signature)
	if err != nil {
		return nil, err
	}
	return txn.SignedTransactionWithAuthenticator(auth)
}
