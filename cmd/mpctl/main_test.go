package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dwdwow/mp-go/config"
)

const testAddress = "0x00000000000000000000000000000000000000000000000000000000000000a1"

func newRiskServer(t *testing.T) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/brokers":
			_, _ = io.WriteString(w, `[{
				"underlyingAsset": {"name": "movement-usdc", "decimals": 6, "price": 1},
				"utilization": 0.5, "interestRate": 0.1, "interestFeeRate": 0.2,
				"scaledAvailableLiquidityUnderlying": 100, "scaledTotalBorrowedUnderlying": 100
			}]`)
		case "/portfolios/" + testAddress:
			_, _ = io.WriteString(w, `{
				"collaterals": [{"instrumentId": "movement-usdc-deposit-note", "amount": "500"}],
				"liabilities": [{"instrumentId": "movement-move-fa-loan-note", "amount": "7"}],
				"evaluation": {"health_ratio": 2.5, "total_collateral": 500, "total_liability": 20, "ltv": 0.04}
			}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	t.Setenv(config.EnvRiskAPIURL, srv.URL)
	t.Setenv(config.EnvNodeURL, "")
}

func runCLI(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRates(t *testing.T) {
	newRiskServer(t)

	code, out, _ := runCLI("rates")
	require.Equal(t, 0, code)
	require.Contains(t, out, "movement-usdc")
	require.Contains(t, out, "4.00%")  // 0.5 * 0.1 * 0.8
	require.Contains(t, out, "10.00%") // borrow
	require.Contains(t, out, "TVL: $200.00")
}

func TestPortfolio(t *testing.T) {
	newRiskServer(t)

	code, out, _ := runCLI("portfolio", "-address", testAddress)
	require.Equal(t, 0, code)
	require.Contains(t, out, "movement-usdc-deposit-note")
	require.Contains(t, out, "movement-move-fa-loan-note")
	require.Contains(t, out, "health ratio: 2.5000")
}

func TestPortfolioRejectsBadAddress(t *testing.T) {
	newRiskServer(t)

	code, _, errOut := runCLI("portfolio", "-address", "0xzz")
	require.Equal(t, 1, code)
	require.Contains(t, errOut, "Invalid address")
}

func TestUsageErrors(t *testing.T) {
	newRiskServer(t)

	code, _, errOut := runCLI()
	require.Equal(t, 1, code)
	require.Contains(t, errOut, "Usage: mpctl")

	code, _, errOut = runCLI("stake")
	require.Equal(t, 1, code)
	require.Contains(t, errOut, "Unknown command: stake")

	code, _, errOut = runCLI("supply", "-symbol", "USDC")
	require.Equal(t, 1, code)
	require.Contains(t, errOut, "Usage: mpctl supply")
}

func newNodeServer(t *testing.T, chainID int) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1" {
			http.NotFound(w, r)
			return
		}
		_, _ = fmt.Fprintf(w, `{"chain_id":%d,"ledger_version":"77","block_height":"9"}`, chainID)
	}))
	t.Cleanup(srv.Close)
	t.Setenv(config.EnvNodeURL, srv.URL+"/v1")
}

func TestStatus(t *testing.T) {
	newRiskServer(t)
	newNodeServer(t, 126)

	code, out, _ := runCLI("status")
	require.Equal(t, 0, code)
	require.Contains(t, out, "chain id: 126 ledger version: 77 block height: 9")
}

func TestStatusChainMismatch(t *testing.T) {
	newRiskServer(t)
	newNodeServer(t, 250)

	code, _, errOut := runCLI("status")
	require.Equal(t, 1, code)
	require.Contains(t, errOut, "Node reports chain 250 but transactions are built for chain 126")
}

func TestActionRequiresKey(t *testing.T) {
	newRiskServer(t)
	t.Setenv(config.EnvPrivateKey, "")

	code, _, errOut := runCLI("supply", "-symbol", "USDC", "-amount", "1")
	require.Equal(t, 1, code)
	require.Contains(t, errOut, config.EnvPrivateKey+" is not set")
}
