package client

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dwdwow/mp-go/types"
)

func broker(name string, utilization, interest, fee float64) types.Broker {
	return types.Broker{
		UnderlyingAsset: types.UnderlyingAsset{Name: name},
		Utilization:     types.Float(utilization),
		InterestRate:    types.Float(interest),
		InterestFeeRate: types.Float(fee),
	}
}

func TestSupplyAPY(t *testing.T) {
	b := broker("movement-usdc", 0.9058979793886733, 0.3061636289961197, 0.22)
	require.InDelta(t, 17.7020, SupplyAPY(b), 1e-3)

	require.Zero(t, SupplyAPY(broker("x", -0.1, 0.3, 0.2)))
	require.Zero(t, SupplyAPY(broker("x", 0.5, 0.3, 1)))
}

func TestBorrowAPR(t *testing.T) {
	require.InDelta(t, 30.6164, BorrowAPR(broker("x", 0, 0.3061636289961197, 0)), 1e-3)
	require.Zero(t, BorrowAPR(broker("x", 0, -1, 0)))
}

func TestMarketMetrics(t *testing.T) {
	a := broker("movement-usdc", 0.5, 0.1, 0)
	a.UnderlyingAsset.Price = 1
	a.ScaledAvailableLiquidityUnderlying = 100
	a.ScaledTotalBorrowedUnderlying = 100

	b := broker("movement-weth", 0.25, 0.2, 0)
	b.UnderlyingAsset.Price = 2
	b.ScaledAvailableLiquidityUnderlying = 150
	b.ScaledTotalBorrowedUnderlying = 50

	m := MarketMetrics([]types.Broker{a, b})
	require.InDelta(t, 600, m.TVL, 1e-9)
	require.InDelta(t, 200, m.TotalBorrowed, 1e-9)
	require.InDelta(t, 200.0/600.0*100, m.UtilizationRate, 1e-9)
	require.InDelta(t, (5+5)/2.0, m.AvgSupplyAPY, 1e-9)
	require.InDelta(t, (10+20)/2.0, m.AvgBorrowAPY, 1e-9)

	require.Equal(t, Metrics{}, MarketMetrics(nil))
}

func TestFindBroker(t *testing.T) {
	brokers := []types.Broker{
		broker("movement-move", 0, 0, 0),
		broker("movement-move-fa", 0, 0, 0),
		broker("movement-usdc", 0, 0, 0),
	}

	got, err := FindBroker(brokers, "MOVE")
	require.NoError(t, err)
	require.Equal(t, "movement-move-fa", got.UnderlyingAsset.Name)

	got, err = FindBroker(brokers, "usdc")
	require.NoError(t, err)
	require.Equal(t, "movement-usdc", got.UnderlyingAsset.Name)

	_, err = FindBroker(brokers, "WBTC")
	require.ErrorContains(t, err, "not found")
}
