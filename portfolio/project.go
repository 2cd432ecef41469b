// Package portfolio computes hypothetical post-action portfolio states.
package portfolio

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"

	"github.com/dwdwow/mp-go/types"
)

// Project applies rawDelta to the instrument an action touches and returns a new state.
// supply and borrow add to the position, appending it when absent. withdraw and
// repay subtract, clamp at zero and drop the position when it reaches zero.
// The current state is never modified.
func Project(current types.PortfolioState, kind types.ActionKind, instrumentID, rawDelta string) (types.PortfolioState, error) {
	if !kind.Valid() {
		return types.PortfolioState{}, fmt.Errorf("unknown action %q", kind)
	}
	if strings.TrimSpace(instrumentID) == "" {
		return types.PortfolioState{}, fmt.Errorf("instrument id is required")
	}
	delta, err := parseAmount(rawDelta)
	if err != nil {
		return types.PortfolioState{}, fmt.Errorf("invalid delta: %w", err)
	}

	next := current.Clone()
	list := &next.Liabilities
	if kind.Side() == types.SideCollateral {
		list = &next.Collaterals
	}

	updated, err := apply(*list, kind.Increases(), instrumentID, delta)
	if err != nil {
		return types.PortfolioState{}, err
	}
	*list = updated
	return next, nil
}

func apply(positions []types.PortfolioPosition, increase bool, instrumentID string, delta *uint256.Int) ([]types.PortfolioPosition, error) {
	idx := -1
	for i, p := range positions {
		if p.InstrumentID == instrumentID {
			idx = i
			break
		}
	}

	if idx < 0 {
		if !increase || delta.IsZero() {
			return positions, nil
		}
		return append(positions, types.PortfolioPosition{
			InstrumentID: instrumentID,
			Amount:       delta.Dec(),
		}), nil
	}

	amount, err := parseAmount(positions[idx].Amount)
	if err != nil {
		return nil, fmt.Errorf("position %s: %w", instrumentID, err)
	}

	var result uint256.Int
	if increase {
		if _, overflow := result.AddOverflow(amount, delta); overflow {
			return nil, fmt.Errorf("position %s overflows", instrumentID)
		}
	} else if amount.Gt(delta) {
		result.Sub(amount, delta)
	}

	if result.IsZero() {
		out := make([]types.PortfolioPosition, 0, len(positions)-1)
		out = append(out, positions[:idx]...)
		return append(out, positions[idx+1:]...), nil
	}
	positions[idx].Amount = result.Dec()
	return positions, nil
}

func parseAmount(s string) (*uint256.Int, error) {
	v, err := uint256.FromDecimal(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("amount %q: %w", s, err)
	}
	return v, nil
}
