package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dwdwow/mp-go/constants"
	"github.com/dwdwow/mp-go/types"
)

const testAddress = "0x00000000000000000000000000000000000000000000000000000000000000a1"

func newTestRisk(t *testing.T, handler http.HandlerFunc) *Risk {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewRisk(srv.URL, 5*time.Second)
}

func TestRisk_Portfolio(t *testing.T) {
	risk := newTestRisk(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/portfolios/"+testAddress, r.URL.Path)
		_, _ = io.WriteString(w, `{
			"collaterals": [
				{"instrumentId": "movement-usdc-deposit-note", "amount": "500"},
				{"instrumentId": "movement-weth-deposit-note", "amount": "0"}
			],
			"liabilities": [],
			"risk": {"requiredEquity": 12.5},
			"evaluation": {"mm": 0.1, "health_ratio": "1.8", "total_collateral": 500, "total_liability": 0, "ltv": 0}
		}`)
	})

	p, err := risk.Portfolio(context.Background(), testAddress)
	require.NoError(t, err)
	require.Equal(t, []types.PortfolioPosition{{InstrumentID: "movement-usdc-deposit-note", Amount: "500"}}, p.Collaterals)
	require.Empty(t, p.Liabilities)
	require.InDelta(t, 1.8, float64(p.Evaluation.HealthRatio), 1e-9)
	require.InDelta(t, 12.5, float64(p.Risk.RequiredEquity), 1e-9)
}

func TestRisk_PortfolioNetworkError(t *testing.T) {
	risk := newTestRisk(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"db down"}`, http.StatusServiceUnavailable)
	})

	_, err := risk.Portfolio(context.Background(), testAddress)
	require.Error(t, err)
	require.ErrorIs(t, err, types.ErrNetwork)

	var e *types.Error
	require.True(t, errors.As(err, &e))
	require.Equal(t, constants.NetworkErrorMessage, e.Message)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
}

func TestRisk_PortfolioMergesRepeatedInstruments(t *testing.T) {
	risk := newTestRisk(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{
			"collaterals": [
				{"instrumentId": "movement-usdc-deposit-note", "amount": "500"},
				{"instrumentId": "movement-weth-deposit-note", "amount": "7"},
				{"instrumentId": "movement-usdc-deposit-note", "amount": "300"}
			],
			"liabilities": [
				{"instrumentId": "movement-move-fa-loan-note", "amount": "0"},
				{"instrumentId": "movement-move-fa-loan-note", "amount": "0"}
			]
		}`)
	})

	p, err := risk.Portfolio(context.Background(), testAddress)
	require.NoError(t, err)
	require.Equal(t, []types.PortfolioPosition{
		{InstrumentID: "movement-usdc-deposit-note", Amount: "800"},
		{InstrumentID: "movement-weth-deposit-note", Amount: "7"},
	}, p.Collaterals)
	require.Empty(t, p.Liabilities)
}

func TestRisk_PortfolioRejectsMalformedAmounts(t *testing.T) {
	bodies := map[string]string{
		"fractional": `{"collaterals": [{"instrumentId": "movement-usdc-deposit-note", "amount": "1.5"}]}`,
		"negative":   `{"liabilities": [{"instrumentId": "movement-usdc-loan-note", "amount": "-3"}]}`,
		"empty":      `{"collaterals": [{"instrumentId": "movement-usdc-deposit-note", "amount": ""}]}`,
		"exponent":   `{"collaterals": [{"instrumentId": "movement-usdc-deposit-note", "amount": "1e6"}]}`,
		"no id":      `{"collaterals": [{"instrumentId": " ", "amount": "10"}]}`,
	}

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			risk := newTestRisk(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, body)
			})

			_, err := risk.Portfolio(context.Background(), testAddress)
			require.ErrorIs(t, err, types.ErrNetwork)
			require.Equal(t, constants.NetworkErrorMessage, types.AsError(err).Message)
		})
	}
}

func TestRisk_RequestTicket(t *testing.T) {
	tests := []struct {
		kind types.ActionKind
		path string
	}{
		{types.ActionSupply, "/brokers/lend/v2"},
		{types.ActionWithdraw, "/brokers/redeem/v2"},
		{types.ActionBorrow, "/brokers/borrow/v2"},
		{types.ActionRepay, "/brokers/repay/v2"},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			risk := newTestRisk(t, func(w http.ResponseWriter, r *http.Request) {
				require.Equal(t, http.MethodPost, r.Method)
				require.Equal(t, tt.path, r.URL.Path)

				var body map[string]any
				require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
				require.Equal(t, "movement-usdc", body["brokerName"])
				require.Equal(t, "100000000", body["amount"])
				require.Equal(t, "aptos", body["network"])
				require.Equal(t, testAddress, body["signerPubkey"])
				state := body["currentPortfolioState"].(map[string]any)
				require.NotNil(t, state["collaterals"])
				require.NotNil(t, state["liabilities"])

				_, _ = io.WriteString(w, `{"packet":"0xabcd"}`)
			})

			ticket, err := risk.RequestTicket(context.Background(), tt.kind, types.TicketRequest{
				BrokerName:   "movement-usdc",
				Amount:       "100000000",
				SignerPubkey: testAddress,
			})
			require.NoError(t, err)
			require.Equal(t, "0xabcd", ticket.Packet)
		})
	}
}

func TestRisk_RequestTicketMalformed(t *testing.T) {
	for _, body := range []string{`{"packet":""}`, `{}`, `not json`} {
		risk := newTestRisk(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, body)
		})
		_, err := risk.RequestTicket(context.Background(), types.ActionSupply, types.TicketRequest{BrokerName: "movement-usdc", Amount: "1"})
		require.ErrorIs(t, err, types.ErrNetwork, body)
	}
}

func TestRisk_SimulateRisk(t *testing.T) {
	risk := newTestRisk(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/risk/simulated", r.URL.Path)
		var state types.PortfolioState
		require.NoError(t, json.NewDecoder(r.Body).Decode(&state))
		require.Len(t, state.Collaterals, 1)
		_, _ = io.WriteString(w, `{"evaluation":{"health_ratio":2.5,"ltv":0.3}}`)
	})

	preview, err := risk.SimulateRisk(context.Background(), types.PortfolioState{
		Collaterals: []types.PortfolioPosition{{InstrumentID: "x", Amount: "1"}},
	})
	require.NoError(t, err)
	require.InDelta(t, 2.5, float64(preview.Evaluation.HealthRatio), 1e-9)
}

func TestRisk_RateLimitHonoursContext(t *testing.T) {
	risk := newTestRisk(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[]`)
	})
	risk.SetRateLimit(0.001, 1)

	_, err := risk.Brokers(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = risk.Brokers(ctx)
	require.ErrorIs(t, err, types.ErrNetwork)
}
