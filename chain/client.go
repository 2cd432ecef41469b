package chain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/aptos-labs/aptos-go-sdk"
	"github.com/aptos-labs/aptos-go-sdk/api"
	"github.com/aptos-labs/aptos-go-sdk/crypto"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/dwdwow/mp-go/constants"
	"github.com/dwdwow/mp-go/types"
)

// NodeError is an error response from the full node
type NodeError struct {
	StatusCode  int
	Message     string
	ErrorCode   string
	VMErrorCode uint64
}

// Error implements the error interface
func (e *NodeError) Error() string {
	if e.ErrorCode != "" {
		return fmt.Sprintf("node error %d: %s - %s", e.StatusCode, e.ErrorCode, e.Message)
	}
	return fmt.Sprintf("node error %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the node
func IsNotFound(err error) bool {
	var nodeErr *NodeError
	return errors.As(err, &nodeErr) && nodeErr.StatusCode == http.StatusNotFound
}

// nodeError replaces an HTTP failure reported by the node client with a
// NodeError carrying the node's JSON message. Other errors pass through.
func nodeError(op string, err error) error {
	var httpErr *aptos.HttpError
	if !errors.As(err, &httpErr) {
		return fmt.Errorf("%s: %w", op, err)
	}

	nodeErr := &NodeError{StatusCode: httpErr.StatusCode, Message: strings.TrimSpace(string(httpErr.Body))}
	var body struct {
		Message     string `json:"message"`
		ErrorCode   string `json:"error_code"`
		VMErrorCode uint64 `json:"vm_error_code"`
	}
	if json.Unmarshal(httpErr.Body, &body) == nil && body.Message != "" {
		nodeErr.Message = body.Message
		nodeErr.ErrorCode = body.ErrorCode
		nodeErr.VMErrorCode = body.VMErrorCode
	}
	if nodeErr.Message == "" {
		nodeErr.Message = httpErr.Status
	}
	return fmt.Errorf("%s: %w", op, nodeErr)
}

// call runs a blocking node client request and gives up on it once ctx is
// done. The abandoned request is still bounded by the HTTP client timeout.
func call[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn()
		done <- result{v, err}
	}()

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case r := <-done:
		return r.value, r.err
	}
}

// Client talks to a Movement full node through the Aptos node client
type Client struct {
	node *aptos.NodeClient

	// PollInterval is the delay between finality checks
	PollInterval time.Duration
	// WaitTimeout bounds WaitForTransaction
	WaitTimeout time.Duration
}

// NewClient creates a node client. baseURL includes the /v1 prefix.
// If baseURL is empty, it defaults to MainnetNodeURL.
func NewClient(baseURL string, chainID uint8, timeout time.Duration) (*Client, error) {
	if baseURL == "" {
		baseURL = constants.MainnetNodeURL
	}
	if timeout == 0 {
		timeout = constants.DefaultTimeout * time.Second
	}

	node, err := aptos.NewNodeClientWithHttpClient(strings.TrimRight(baseURL, "/"), chainID, &http.Client{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("create node client: %w", err)
	}
	return &Client{
		node:         node,
		PollInterval: 500 * time.Millisecond,
		WaitTimeout:  timeout,
	}, nil
}

// Node exposes the underlying node client, e.g. for NewBuilder
func (c *Client) Node() *aptos.NodeClient {
	return c.node
}

// LedgerInfo is the node's view of the chain
type LedgerInfo struct {
	ChainID       uint8
	LedgerVersion uint64
	BlockHeight   uint64
}

// LedgerInfo returns the chain id and ledger height reported by the node
func (c *Client) LedgerInfo(ctx context.Context) (*LedgerInfo, error) {
	info, err := call(ctx, c.node.Info)
	if err != nil {
		return nil, nodeError("get ledger info", err)
	}
	return &LedgerInfo{
		ChainID:       info.ChainId,
		LedgerVersion: info.LedgerVersion(),
		BlockHeight:   info.BlockHeight(),
	}, nil
}

// simulationSigner carries only the public key. The node rejects valid
// signatures on the simulate endpoint, so it hands out a zero signature.
type simulationSigner struct {
	address aptos.AccountAddress
	key     *crypto.Ed25519PublicKey
}

var errSimulationOnly = errors.New("simulation signer cannot sign")

func newSimulationSigner(sender types.AccountAddress, publicKey [32]byte) (*simulationSigner, error) {
	key := &crypto.Ed25519PublicKey{}
	if err := key.FromBytes(publicKey[:]); err != nil {
		return nil, err
	}
	return &simulationSigner{address: aptos.AccountAddress(sender), key: key}, nil
}

func (s *simulationSigner) Sign([]byte) (*crypto.AccountAuthenticator, error) {
	return nil, errSimulationOnly
}

func (s *simulationSigner) SignMessage([]byte) (crypto.Signature, error) {
	return nil, errSimulationOnly
}

func (s *simulationSigner) SimulationAuthenticator() *crypto.AccountAuthenticator {
	return &crypto.AccountAuthenticator{
		Variant: crypto.AccountAuthenticatorEd25519,
		Auth:    &crypto.Ed25519Authenticator{PubKey: s.key, Sig: &crypto.Ed25519Signature{}},
	}
}

func (s *simulationSigner) AuthKey() *crypto.AuthenticationKey { return s.key.AuthKey() }

func (s *simulationSigner) PubKey() crypto.PublicKey { return s.key }

func (s *simulationSigner) AccountAddress() aptos.AccountAddress { return s.address }

// Simulate dry-runs an unsigned transaction with an all-zero signature
func (c *Client) Simulate(ctx context.Context, unsigned types.UnsignedTransaction, publicKey [32]byte) (types.SimulationResult, error) {
	txn, err := ToRawTransaction(unsigned.Raw)
	if err != nil {
		return types.SimulationResult{}, types.NewValidationError("encode transaction: %v", err)
	}
	signer, err := newSimulationSigner(unsigned.Raw.Sender, publicKey)
	if err != nil {
		return types.SimulationResult{}, types.NewValidationError("invalid public key: %v", err)
	}

	results, err := call(ctx, func() ([]*api.UserTransaction, error) {
		return c.node.SimulateTransaction(txn, signer)
	})
	if err != nil {
		return types.SimulationResult{}, types.NewNetworkError(constants.NetworkErrorMessage, nodeError("simulate", err))
	}
	if len(results) == 0 || results[0] == nil {
		return types.SimulationResult{}, types.NewNetworkError(constants.NetworkErrorMessage, fmt.Errorf("simulate: empty response"))
	}

	r := results[0]
	return types.SimulationResult{
		Success:  r.Success,
		VMStatus: r.VmStatus,
		GasUsed:  r.GasUsed,
		Abort:    ParseMoveAbort(r.VmStatus),
	}, nil
}

// Submit sends a signed transaction. Rejections by the node become
// submission failures; transport problems become network errors.
func (c *Client) Submit(ctx context.Context, signed types.SignedTransaction) (types.SubmittedTransaction, error) {
	txn, err := ToSignedTransaction(signed)
	if err != nil {
		return types.SubmittedTransaction{}, types.NewValidationError("encode transaction: %v", err)
	}

	resp, err := call(ctx, func() (*api.SubmitTransactionResponse, error) {
		return c.node.SubmitTransaction(txn)
	})
	if err != nil {
		err = nodeError("submit", err)
		var nodeErr *NodeError
		if errors.As(err, &nodeErr) && nodeErr.StatusCode < http.StatusInternalServerError {
			return types.SubmittedTransaction{}, types.NewSubmissionError(nodeErr.Message, "", err)
		}
		return types.SubmittedTransaction{}, types.NewNetworkError(constants.NetworkErrorMessage, err)
	}
	if resp == nil || resp.Hash == "" {
		return types.SubmittedTransaction{}, types.NewSubmissionError("node accepted the transaction without a hash", "", nil)
	}
	return types.SubmittedTransaction{Hash: resp.Hash}, nil
}

// TransactionByHash returns the transaction and whether it is still pending
func (c *Client) TransactionByHash(ctx context.Context, hash string) (*types.FinalizedTransaction, bool, error) {
	tx, err := call(ctx, func() (*api.Transaction, error) {
		return c.node.TransactionByHash(hash)
	})
	if err != nil {
		return nil, false, nodeError("get transaction", err)
	}
	if tx.Type == api.TransactionVariantPending {
		return nil, true, nil
	}

	user, err := tx.UserTransaction()
	if err != nil {
		return nil, false, err
	}
	return &types.FinalizedTransaction{
		Hash:     user.Hash,
		Success:  user.Success,
		VMStatus: user.VmStatus,
		Version:  user.Version,
		GasUsed:  user.GasUsed,
	}, false, nil
}

// WaitForTransaction polls until the transaction is committed. A committed
// but failed transaction is returned as a submission failure carrying the hash.
// Running out of WaitTimeout is a finality timeout; cancellation of ctx by the
// caller is reported separately since the transaction may still commit.
func (c *Client) WaitForTransaction(ctx context.Context, hash string) (types.FinalizedTransaction, error) {
	if _, err := hexutil.Decode(hash); err != nil {
		return types.FinalizedTransaction{}, types.NewValidationError("invalid transaction hash %q", hash)
	}

	waitCtx, cancel := context.WithTimeout(ctx, c.WaitTimeout)
	defer cancel()

	ticker := time.NewTicker(c.PollInterval)
	defer ticker.Stop()

	for {
		tx, pending, err := c.TransactionByHash(waitCtx, hash)
		switch {
		case err == nil && !pending:
			if !tx.Success {
				return *tx, types.NewSubmissionError(tx.VMStatus, hash, nil)
			}
			return *tx, nil
		case err != nil && !IsNotFound(err) && waitCtx.Err() == nil:
			return types.FinalizedTransaction{}, types.NewNetworkError(constants.NetworkErrorMessage, fmt.Errorf("wait for %s: %w", hash, err))
		}

		select {
		case <-waitCtx.Done():
			if err := ctx.Err(); err != nil {
				return types.FinalizedTransaction{}, &types.Error{
					Kind:    types.KindUnknown,
					Code:    "wait_cancelled",
					Message: "stopped waiting for confirmation, the transaction may still commit",
					TxHash:  hash,
					Err:     err,
				}
			}
			return types.FinalizedTransaction{}, &types.Error{
				Kind:    types.KindSubmission,
				Code:    "finality_timeout",
				Message: "transaction was not confirmed in time",
				TxHash:  hash,
				Err:     waitCtx.Err(),
			}
		case <-ticker.C:
		}
	}
}

// Move abort in 0x1::coin: EINSUFFICIENT_BALANCE(0x10006): ...
var moveAbortPattern = regexp.MustCompile(`Move abort in ([0-9a-zA-Zx]+::\w+): (\w+)\((0x[0-9a-fA-F]+)\)`)

// ParseMoveAbort extracts the structured abort from a vm_status string, nil if absent
func ParseMoveAbort(vmStatus string) *types.MoveAbort {
	m := moveAbortPattern.FindStringSubmatch(vmStatus)
	if m == nil {
		return nil
	}
	code, err := hexutil.DecodeUint64(m[3])
	if err != nil {
		// hexutil rejects leading zeros
		code, _ = strconv.ParseUint(strings.TrimPrefix(m[3], "0x"), 16, 64)
	}
	return &types.MoveAbort{Location: m[1], Reason: m[2], Code: code}
}
