package chain

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aptos-labs/aptos-go-sdk"
	"github.com/aptos-labs/aptos-go-sdk/bcs"
	"github.com/stretchr/testify/require"

	"github.com/dwdwow/mp-go/types"
)

const testHash = "0x9f2c2b2c6f0e4a0b1c8d7e6f5a4b3c2d1e0f9a8b7c6d5e4f3a2b1c0d9e8f7a6b"

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewClient(srv.URL+"/v1", 126, 5*time.Second)
	require.NoError(t, err)
	c.PollInterval = 5 * time.Millisecond
	return c
}

func testUnsigned(t *testing.T) types.UnsignedTransaction {
	raw := testRaw(t)
	msg, err := SigningMessage(raw)
	require.NoError(t, err)
	return types.UnsignedTransaction{Raw: raw, SigningMessage: msg}
}

func TestClient_LedgerInfo(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1", r.URL.Path)
		_, _ = io.WriteString(w, `{"chain_id":126,"ledger_version":"77","block_height":"9"}`)
	})

	info, err := c.LedgerInfo(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint8(126), info.ChainID)
	require.Equal(t, uint64(77), info.LedgerVersion)
	require.Equal(t, uint64(9), info.BlockHeight)
}

func TestClient_NodeErrorMapping(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"message":"Ledger not found","error_code":"not_found","vm_error_code":0}`)
	})

	_, err := c.LedgerInfo(context.Background())
	require.True(t, IsNotFound(err))

	var nodeErr *NodeError
	require.ErrorAs(t, err, &nodeErr)
	require.Equal(t, "Ledger not found", nodeErr.Message)
	require.Equal(t, "not_found", nodeErr.ErrorCode)
}

func TestClient_Simulate(t *testing.T) {
	unsigned := testUnsigned(t)
	var pub [32]byte
	pub[0] = 0x55

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/transactions/simulate", r.URL.Path)
		require.Equal(t, aptos.ContentTypeAptosSignedTxnBcs, r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		zeroSig, err := ToSignedTransaction(types.SignedTransaction{
			Raw:           unsigned.Raw,
			Authenticator: types.Authenticator{PublicKey: pub},
		})
		require.NoError(t, err)
		want, err := bcs.Serialize(zeroSig)
		require.NoError(t, err)
		require.Equal(t, want, body)

		_, _ = io.WriteString(w, `[{"success":false,"gas_used":"12","version":"0","vm_status":"Move abort in 0x1::coin: EINSUFFICIENT_BALANCE(0x10006): insufficient balance"}]`)
	})

	result, err := c.Simulate(context.Background(), unsigned, pub)
	require.NoError(t, err)
	require.False(t, result.Success)
	require.Equal(t, uint64(12), result.GasUsed)
	require.NotNil(t, result.Abort)
	require.Equal(t, "0x1::coin", result.Abort.Location)
	require.Equal(t, "EINSUFFICIENT_BALANCE", result.Abort.Reason)
	require.Equal(t, uint64(0x10006), result.Abort.Code)
}

func TestClient_SimulateNetworkError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	_, err := c.Simulate(context.Background(), testUnsigned(t), [32]byte{})
	require.ErrorIs(t, err, types.ErrNetwork)

	empty := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[]`)
	})
	_, err = empty.Simulate(context.Background(), testUnsigned(t), [32]byte{})
	require.ErrorIs(t, err, types.ErrNetwork)
}

func TestClient_Submit(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/transactions", r.URL.Path)
		require.Equal(t, aptos.ContentTypeAptosSignedTxnBcs, r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusAccepted)
		_, _ = fmt.Fprintf(w, `{"hash":%q,"sequence_number":"5"}`, testHash)
	})

	sub, err := c.Submit(context.Background(), types.SignedTransaction{Raw: testRaw(t)})
	require.NoError(t, err)
	require.Equal(t, testHash, sub.Hash)
}

func TestClient_SubmitRejected(t *testing.T) {
	tests := []struct {
		status int
		kind   error
	}{
		{http.StatusBadRequest, types.ErrSubmission},
		{http.StatusServiceUnavailable, types.ErrNetwork},
	}
	for _, tt := range tests {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
			_, _ = io.WriteString(w, `{"message":"Invalid transaction: SEQUENCE_NUMBER_TOO_OLD","error_code":"vm_error","vm_error_code":3}`)
		})
		_, err := c.Submit(context.Background(), types.SignedTransaction{Raw: testRaw(t)})
		require.ErrorIs(t, err, tt.kind)
	}

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"message":"Invalid transaction: SEQUENCE_NUMBER_TOO_OLD","error_code":"vm_error"}`)
	})
	_, err := c.Submit(context.Background(), types.SignedTransaction{Raw: testRaw(t)})
	e := types.AsError(err)
	require.Equal(t, "Invalid transaction: SEQUENCE_NUMBER_TOO_OLD", e.Message)
}

func TestClient_WaitForTransaction(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/transactions/by_hash/"+testHash, r.URL.Path)
		switch calls.Add(1) {
		case 1:
			http.Error(w, `{"message":"not found","error_code":"transaction_not_found"}`, http.StatusNotFound)
		case 2:
			_, _ = fmt.Fprintf(w, `{"type":"pending_transaction","hash":%q}`, testHash)
		default:
			_, _ = fmt.Fprintf(w, `{"type":"user_transaction","hash":%q,"success":true,"vm_status":"Executed successfully","version":"1234","gas_used":"88"}`, testHash)
		}
	})

	tx, err := c.WaitForTransaction(context.Background(), testHash)
	require.NoError(t, err)
	require.True(t, tx.Success)
	require.Equal(t, testHash, tx.Hash)
	require.Equal(t, uint64(1234), tx.Version)
	require.Equal(t, uint64(88), tx.GasUsed)
	require.GreaterOrEqual(t, calls.Load(), int32(3))
}

func TestClient_WaitForTransactionFailed(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprintf(w, `{"type":"user_transaction","hash":%q,"success":false,"vm_status":"Out of gas","version":"5","gas_used":"200000"}`, testHash)
	})

	_, err := c.WaitForTransaction(context.Background(), testHash)
	require.ErrorIs(t, err, types.ErrSubmission)
	require.Equal(t, testHash, types.AsError(err).TxHash)
}

func pendingForever(t *testing.T) *Client {
	return newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprintf(w, `{"type":"pending_transaction","hash":%q}`, testHash)
	})
}

func TestClient_WaitForTransactionTimeout(t *testing.T) {
	c := pendingForever(t)
	c.WaitTimeout = 30 * time.Millisecond

	_, err := c.WaitForTransaction(context.Background(), testHash)
	e := types.AsError(err)
	require.Equal(t, types.KindSubmission, e.Kind)
	require.Equal(t, "finality_timeout", e.Code)
	require.Equal(t, testHash, e.TxHash)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClient_WaitForTransactionCallerCancelled(t *testing.T) {
	c := pendingForever(t)
	c.WaitTimeout = 5 * time.Second

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(30*time.Millisecond, cancel)

	start := time.Now()
	_, err := c.WaitForTransaction(ctx, testHash)
	require.Less(t, time.Since(start), c.WaitTimeout)

	e := types.AsError(err)
	require.NotEqual(t, "finality_timeout", e.Code)
	require.Equal(t, "wait_cancelled", e.Code)
	require.Equal(t, types.KindUnknown, e.Kind)
	require.Equal(t, testHash, e.TxHash)
	require.ErrorIs(t, err, context.Canceled)
}

func TestClient_WaitForTransactionCallerDeadline(t *testing.T) {
	c := pendingForever(t)
	c.WaitTimeout = 5 * time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := c.WaitForTransaction(ctx, testHash)
	require.Equal(t, "wait_cancelled", types.AsError(err).Code)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClient_WaitForTransactionBadHash(t *testing.T) {
	c, err := NewClient("http://127.0.0.1:0/v1", 126, time.Second)
	require.NoError(t, err)
	_, err = c.WaitForTransaction(context.Background(), "not-a-hash")
	require.ErrorIs(t, err, types.ErrValidation)
}

func TestCallAbandonsOnCancel(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(10*time.Millisecond, cancel)

	_, err := call(ctx, func() (int, error) {
		<-release
		return 1, nil
	})
	require.ErrorIs(t, err, context.Canceled)

	v, err := call(context.Background(), func() (int, error) { return 7, nil })
	require.NoError(t, err)
	require.Equal(t, 7, v)
}

func TestParseMoveAbort(t *testing.T) {
	abort := ParseMoveAbort("Move abort in 0xccd2621d2897d407e06d18e6ebe3be0e6d9b61f1e809dd49360522b9105812cf::broker: ERR_MAX_DEPOSIT_EXCEEDED(0x1001a): ")
	require.NotNil(t, abort)
	require.True(t, strings.HasSuffix(abort.Location, "::broker"))
	require.Equal(t, "ERR_MAX_DEPOSIT_EXCEEDED", abort.Reason)
	require.Equal(t, uint64(0x1001a), abort.Code)

	require.Nil(t, ParseMoveAbort("Executed successfully"))
	require.Nil(t, ParseMoveAbort("OUT_OF_GAS"))
}
