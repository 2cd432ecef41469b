package portfolio

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dwdwow/mp-go/types"
)

const (
	usdcDeposit = "movement-usdc-deposit-note"
	moveDeposit = "movement-move-fa-deposit-note"
	usdcLoan    = "movement-usdc-loan-note"
)

func fixture() types.PortfolioState {
	return types.PortfolioState{
		Collaterals: []types.PortfolioPosition{
			{InstrumentID: moveDeposit, Amount: "1000"},
			{InstrumentID: usdcDeposit, Amount: "500"},
		},
		Liabilities: []types.PortfolioPosition{
			{InstrumentID: usdcLoan, Amount: "300"},
		},
	}
}

func TestProjectSupplyExisting(t *testing.T) {
	current := fixture()
	next, err := Project(current, types.ActionSupply, usdcDeposit, "250")
	require.NoError(t, err)

	require.Equal(t, []types.PortfolioPosition{
		{InstrumentID: moveDeposit, Amount: "1000"},
		{InstrumentID: usdcDeposit, Amount: "750"},
	}, next.Collaterals)
	require.Equal(t, current.Liabilities, next.Liabilities)
	require.Equal(t, fixture(), current, "input state must not change")
}

func TestProjectSupplyAbsentAppends(t *testing.T) {
	current := fixture()
	next, err := Project(current, types.ActionSupply, "movement-weth-deposit-note", "42")
	require.NoError(t, err)

	require.Len(t, next.Collaterals, len(current.Collaterals)+1)
	require.Equal(t, current.Collaterals, next.Collaterals[:len(current.Collaterals)])
	require.Equal(t, types.PortfolioPosition{InstrumentID: "movement-weth-deposit-note", Amount: "42"}, next.Collaterals[2])
}

func TestProjectBorrowTouchesLiabilities(t *testing.T) {
	next, err := Project(fixture(), types.ActionBorrow, usdcLoan, "700")
	require.NoError(t, err)
	require.Equal(t, fixture().Collaterals, next.Collaterals)
	require.Equal(t, []types.PortfolioPosition{{InstrumentID: usdcLoan, Amount: "1000"}}, next.Liabilities)
}

func TestProjectWithdrawClampsAndRemoves(t *testing.T) {
	// current collateral 500, withdraw 800
	next, err := Project(fixture(), types.ActionWithdraw, usdcDeposit, "800")
	require.NoError(t, err)
	require.Equal(t, []types.PortfolioPosition{{InstrumentID: moveDeposit, Amount: "1000"}}, next.Collaterals)
}

func TestProjectRepayExact(t *testing.T) {
	next, err := Project(fixture(), types.ActionRepay, usdcLoan, "300")
	require.NoError(t, err)
	require.Empty(t, next.Liabilities)
}

func TestProjectRepayPartial(t *testing.T) {
	next, err := Project(fixture(), types.ActionRepay, usdcLoan, "100")
	require.NoError(t, err)
	require.Equal(t, []types.PortfolioPosition{{InstrumentID: usdcLoan, Amount: "200"}}, next.Liabilities)
}

func TestProjectWithdrawAbsentIsNoop(t *testing.T) {
	next, err := Project(fixture(), types.ActionWithdraw, "movement-weth-deposit-note", "5")
	require.NoError(t, err)
	require.Equal(t, fixture(), next)
}

func TestProjectLargeAmounts(t *testing.T) {
	current := types.PortfolioState{Collaterals: []types.PortfolioPosition{
		{InstrumentID: usdcDeposit, Amount: "18446744073709551615"},
	}}
	next, err := Project(current, types.ActionSupply, usdcDeposit, "18446744073709551615")
	require.NoError(t, err)
	require.Equal(t, "36893488147419103230", next.Collaterals[0].Amount)
}

func TestProjectRejectsBadInput(t *testing.T) {
	_, err := Project(fixture(), types.ActionSupply, usdcDeposit, "-5")
	require.Error(t, err)

	_, err = Project(fixture(), types.ActionSupply, usdcDeposit, "1.5")
	require.Error(t, err)

	_, err = Project(fixture(), types.ActionKind("stake"), usdcDeposit, "5")
	require.Error(t, err)

	_, err = Project(fixture(), types.ActionSupply, "", "5")
	require.Error(t, err)
}
