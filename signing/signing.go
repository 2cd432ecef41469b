// Package signing turns a simulated transaction into a signed one.
//
// The signature itself is produced outside this module by whatever custody
// backend implements types.Signer. This package covers what happens around it:
//
//  1. Digest (computed with TransactionDigest):
//     A keccak256 hash over the msgpack encoding of the exact signing
//     message and the chain id. The digest is taken when simulation passes.
//     Right before the signing request the signing message is derived again
//     from the raw transaction and both it and the carried message are
//     checked against the digest, so the bytes the wallet signs are the
//     bytes that were simulated.
//
//  2. Signing request (SignWithTimeout):
//     The signer receives the hex encoded signing message and is raced
//     against a deadline. A result arriving after the deadline is dropped.
//
//  3. Authenticator (Assemble):
//     Custody providers report ed25519 public keys in several encodings.
//     NormalizePublicKey strips the 0x prefix and the single 0x00 scheme
//     byte some providers prepend, then requires exactly 32 bytes.
//     The signature must be exactly 64 bytes.
//
// # Signing message
//
// The signing message is sha3_256("APTOS::RawTransaction") followed by the
// BCS bytes of the raw transaction. It is built by the chain package and
// carried on types.UnsignedTransaction.
package signing

import (
	"bytes"
	"crypto/ed25519"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/dwdwow/mp-go/types"
	"github.com/dwdwow/mp-go/utils"
)

// ed25519SchemeByte is prepended by some custody providers to ed25519 public keys
const ed25519SchemeByte = 0x00

type digestBody struct {
	Message []byte `msgpack:"m"`
	ChainID uint8  `msgpack:"c"`
}

// TransactionDigest computes the keccak256 digest of a signing message bound to its chain id
func TransactionDigest(signingMessage []byte, chainID uint8) ([]byte, error) {
	if len(signingMessage) == 0 {
		return nil, fmt.Errorf("signing message is empty")
	}
	data, err := msgpack.Marshal(digestBody{Message: signingMessage, ChainID: chainID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal signing message: %w", err)
	}
	return crypto.Keccak256(data), nil
}

// VerifyDigest reports an error when signingMessage no longer matches the digest taken at simulation
func VerifyDigest(signingMessage []byte, chainID uint8, digest []byte) error {
	if len(digest) == 0 {
		return fmt.Errorf("transaction was never simulated")
	}
	got, err := TransactionDigest(signingMessage, chainID)
	if err != nil {
		return err
	}
	if !bytes.Equal(got, digest) {
		return fmt.Errorf("transaction changed after simulation: digest %s, want %s",
			hexutil.Encode(got), hexutil.Encode(digest))
	}
	return nil
}

// NormalizePublicKey converts a custody provider's public key encoding to raw ed25519 bytes
func NormalizePublicKey(publicKeyHex string) ([32]byte, error) {
	var key [32]byte

	s := strings.TrimSpace(publicKeyHex)
	if s == "" {
		return key, fmt.Errorf("public key is empty")
	}
	b, err := utils.HexToBytes(s)
	if err != nil {
		return key, fmt.Errorf("invalid public key: %w", err)
	}

	if len(b) == ed25519.PublicKeySize+1 && b[0] == ed25519SchemeByte {
		b = b[1:]
	}
	if len(b) != ed25519.PublicKeySize {
		return key, fmt.Errorf("invalid public key: expected %d bytes after normalization, got %d",
			ed25519.PublicKeySize, len(b))
	}
	copy(key[:], b)
	return key, nil
}

// ParseSignature decodes a hex ed25519 signature
func ParseSignature(signatureHex string) ([64]byte, error) {
	var sig [64]byte
	b, err := utils.HexToBytes(strings.TrimSpace(signatureHex))
	if err != nil {
		return sig, fmt.Errorf("invalid signature: %w", err)
	}
	if len(b) != ed25519.SignatureSize {
		return sig, fmt.Errorf("invalid signature: expected %d bytes, got %d", ed25519.SignatureSize, len(b))
	}
	copy(sig[:], b)
	return sig, nil
}

// Assemble builds the ed25519 authenticator from the provider's key and signature
func Assemble(publicKeyHex, signatureHex string) (types.Authenticator, error) {
	key, err := NormalizePublicKey(publicKeyHex)
	if err != nil {
		return types.Authenticator{}, err
	}
	sig, err := ParseSignature(signatureHex)
	if err != nil {
		return types.Authenticator{}, err
	}
	return types.Authenticator{PublicKey: key, Signature: sig}, nil
}

// Verify checks the authenticator against the signing message
func Verify(auth types.Authenticator, message []byte) error {
	if !ed25519.Verify(auth.PublicKey[:], message, auth.Signature[:]) {
		return fmt.Errorf("signature does not match public key %s", hexutil.Encode(auth.PublicKey[:]))
	}
	return nil
}

// SignedTransaction pairs a simulated transaction with its authenticator
func SignedTransaction(sim types.SimulatedTransaction, auth types.Authenticator) types.SignedTransaction {
	return types.SignedTransaction{Raw: sim.Unsigned.Raw, Authenticator: auth}
}
