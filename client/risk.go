package client

import (
	"context"
	"fmt"
	"math/big"
	"net/url"
	"strings"
	"time"

	"github.com/dwdwow/mp-go/constants"
	"github.com/dwdwow/mp-go/types"
)

// Risk is the client for the risk-aware ticket construction service
type Risk struct {
	*API
}

// NewRisk creates a new Risk client
func NewRisk(baseURL string, timeout time.Duration) *Risk {
	return &Risk{API: NewAPI(baseURL, timeout)}
}

// RiskPreview is the projected evaluation of a hypothetical portfolio
type RiskPreview struct {
	Risk       types.RiskSummary `json:"risk"`
	Evaluation types.Evaluation  `json:"evaluation"`
}

func networkError(op string, err error) error {
	return types.NewNetworkError(constants.NetworkErrorMessage, fmt.Errorf("%s: %w", op, err))
}

// Portfolio retrieves the current collateral and liability positions of an account.
// Repeated instruments are summed into one position and zero-amount positions
// are dropped. Amounts that are not non-negative integers fail as a network error.
func (r *Risk) Portfolio(ctx context.Context, address string) (*types.Portfolio, error) {
	var result types.Portfolio
	if err := r.get(ctx, "/portfolios/"+url.PathEscape(address), &result); err != nil {
		return nil, networkError("get portfolio", err)
	}

	var err error
	if result.Collaterals, err = normalizePositions(result.Collaterals); err != nil {
		return nil, networkError("get portfolio collaterals", err)
	}
	if result.Liabilities, err = normalizePositions(result.Liabilities); err != nil {
		return nil, networkError("get portfolio liabilities", err)
	}
	return &result, nil
}

// Brokers retrieves every broker (money market) listed by the service
func (r *Risk) Brokers(ctx context.Context) ([]types.Broker, error) {
	var result []types.Broker
	if err := r.get(ctx, "/brokers", &result); err != nil {
		return nil, networkError("list brokers", err)
	}
	return result, nil
}

// RequestTicket asks the action-specific endpoint for an instruction packet
func (r *Risk) RequestTicket(ctx context.Context, kind types.ActionKind, req types.TicketRequest) (types.Ticket, error) {
	spec, ok := kind.Spec()
	if !ok {
		return types.Ticket{}, types.NewValidationError("unknown action %q", kind)
	}

	if req.Network == "" {
		req.Network = constants.TicketNetwork
	}
	if req.CurrentPortfolioState.Collaterals == nil {
		req.CurrentPortfolioState.Collaterals = []types.PortfolioPosition{}
	}
	if req.CurrentPortfolioState.Liabilities == nil {
		req.CurrentPortfolioState.Liabilities = []types.PortfolioPosition{}
	}

	var ticket types.Ticket
	if err := r.post(ctx, spec.Endpoint, req, &ticket); err != nil {
		return types.Ticket{}, networkError("request ticket", err)
	}
	if strings.TrimPrefix(strings.TrimSpace(ticket.Packet), "0x") == "" {
		return types.Ticket{}, networkError("request ticket", fmt.Errorf("response has no packet"))
	}
	return ticket, nil
}

// SimulateRisk previews the evaluation of a hypothetical portfolio state
func (r *Risk) SimulateRisk(ctx context.Context, state types.PortfolioState) (*RiskPreview, error) {
	payload := state.Clone()

	var result RiskPreview
	if err := r.post(ctx, "/risk/simulated", payload, &result); err != nil {
		return nil, networkError("simulate risk", err)
	}
	return &result, nil
}

// FindBroker discovers the broker for a symbol by matching broker names.
// For MOVE the fungible-asset market is preferred when several match.
func (r *Risk) FindBroker(ctx context.Context, symbol string) (*types.Broker, error) {
	brokers, err := r.Brokers(ctx)
	if err != nil {
		return nil, err
	}
	return FindBroker(brokers, symbol)
}

// normalizePositions keeps the first-seen order of instruments
func normalizePositions(positions []types.PortfolioPosition) ([]types.PortfolioPosition, error) {
	order := make([]string, 0, len(positions))
	sums := make(map[string]*big.Int, len(positions))
	for _, p := range positions {
		id := strings.TrimSpace(p.InstrumentID)
		if id == "" {
			return nil, fmt.Errorf("position has no instrument id")
		}
		n, ok := new(big.Int).SetString(strings.TrimSpace(p.Amount), 10)
		if !ok || n.Sign() < 0 {
			return nil, fmt.Errorf("instrument %s: invalid amount %q", id, p.Amount)
		}
		if sum, seen := sums[id]; seen {
			sum.Add(sum, n)
			continue
		}
		sums[id] = n
		order = append(order, id)
	}

	out := make([]types.PortfolioPosition, 0, len(order))
	for _, id := range order {
		if sums[id].Sign() == 0 {
			continue
		}
		out = append(out, types.PortfolioPosition{InstrumentID: id, Amount: sums[id].String()})
	}
	return out, nil
}
