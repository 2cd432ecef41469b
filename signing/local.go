package signing

import (
	"context"
	"crypto/ed25519"
	"fmt"

	"golang.org/x/crypto/sha3"

	"github.com/dwdwow/mp-go/types"
	"github.com/dwdwow/mp-go/utils"
)

// singleKeyScheme is the authentication key scheme of single ed25519 accounts
const singleKeyScheme = 0x00

// LocalSigner signs with an in-process ed25519 key. Meant for development and tests.
type LocalSigner struct {
	key ed25519.PrivateKey
}

// NewLocalSigner loads a 32 byte hex seed
func NewLocalSigner(seedHex string) (*LocalSigner, error) {
	seed, err := utils.HexToBytes(seedHex)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("invalid private key: expected %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	return &LocalSigner{key: ed25519.NewKeyFromSeed(seed)}, nil
}

// Sign implements types.Signer
func (s *LocalSigner) Sign(ctx context.Context, hashHex string) (types.SignatureResponse, error) {
	if err := ctx.Err(); err != nil {
		return types.SignatureResponse{}, err
	}
	msg, err := utils.HexToBytes(hashHex)
	if err != nil {
		return types.SignatureResponse{}, fmt.Errorf("invalid message: %w", err)
	}
	sig := ed25519.Sign(s.key, msg)
	return types.SignatureResponse{SignatureHex: utils.BytesToHex(sig)}, nil
}

// PublicKeyHex returns the 0x-prefixed ed25519 public key
func (s *LocalSigner) PublicKeyHex() string {
	return utils.BytesToHex(s.key.Public().(ed25519.PublicKey))
}

// Address derives the account address, sha3_256(public key || scheme byte)
func (s *LocalSigner) Address() types.AccountAddress {
	pub := s.key.Public().(ed25519.PublicKey)
	return types.AccountAddress(sha3.Sum256(append(append([]byte{}, pub...), singleKeyScheme)))
}

// Account bundles the signer with its address and public key
func (s *LocalSigner) Account() types.Account {
	return types.Account{
		Address:   s.Address().String(),
		PublicKey: s.PublicKeyHex(),
		Signer:    s,
	}
}
