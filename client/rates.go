package client

import (
	"fmt"
	"strings"

	"github.com/dwdwow/mp-go/assets"
	"github.com/dwdwow/mp-go/types"
)

// Rates are the annualized rates of one broker, in percent
type Rates struct {
	Broker      string
	SupplyAPY   float64
	BorrowAPR   float64
	Utilization float64
}

// Metrics aggregates all brokers, values in USD and percent
type Metrics struct {
	TVL             float64
	TotalSupplied   float64
	TotalBorrowed   float64
	UtilizationRate float64
	AvgSupplyAPY    float64
	AvgBorrowAPY    float64
}

// SupplyAPY returns utilization * borrow rate * (1 - protocol fee) as a percentage.
// Negative inputs or a fee of 100% or more yield 0.
func SupplyAPY(b types.Broker) float64 {
	utilization := float64(b.Utilization)
	interestRate := float64(b.InterestRate)
	feeRate := float64(b.InterestFeeRate)
	if utilization < 0 || interestRate < 0 || feeRate < 0 {
		return 0
	}
	if feeRate >= 1 {
		return 0
	}
	return utilization * interestRate * (1 - feeRate) * 100
}

// BorrowAPR returns the broker's interest rate as a percentage
func BorrowAPR(b types.Broker) float64 {
	if b.InterestRate < 0 {
		return 0
	}
	return float64(b.InterestRate) * 100
}

// BrokerRates computes the rates for one broker
func BrokerRates(b types.Broker) Rates {
	return Rates{
		Broker:      b.UnderlyingAsset.Name,
		SupplyAPY:   SupplyAPY(b),
		BorrowAPR:   BorrowAPR(b),
		Utilization: float64(b.Utilization) * 100,
	}
}

// MarketMetrics aggregates TVL, utilization and average rates across brokers
func MarketMetrics(brokers []types.Broker) Metrics {
	var m Metrics
	if len(brokers) == 0 {
		return m
	}

	var supplySum, borrowSum float64
	count := 0
	for _, b := range brokers {
		price := float64(b.UnderlyingAsset.Price)
		borrowed := float64(b.ScaledTotalBorrowedUnderlying)
		supplied := float64(b.ScaledAvailableLiquidityUnderlying) + borrowed

		m.TVL += supplied * price
		m.TotalSupplied += supplied * price
		m.TotalBorrowed += borrowed * price

		supply := SupplyAPY(b)
		borrow := float64(b.InterestRate) * 100
		if supply > 0 {
			supplySum += supply
			count++
		}
		if borrow > 0 {
			borrowSum += borrow
		}
	}

	if count > 0 {
		m.AvgSupplyAPY = supplySum / float64(count)
		m.AvgBorrowAPY = borrowSum / float64(count)
	}
	if m.TotalSupplied > 0 {
		m.UtilizationRate = m.TotalBorrowed / m.TotalSupplied * 100
	}
	return m
}

// FindBroker matches a symbol against broker names using the static search list.
// When several MOVE brokers match, the fungible-asset one wins.
func FindBroker(brokers []types.Broker, symbol string) (*types.Broker, error) {
	names := assets.SearchNames(symbol)

	var found []types.Broker
	for _, b := range brokers {
		name := strings.ToLower(b.UnderlyingAsset.Name)
		for _, search := range names {
			if strings.Contains(name, strings.ToLower(search)) {
				found = append(found, b)
				break
			}
		}
	}
	if len(found) == 0 {
		return nil, fmt.Errorf("asset %s not found in %d brokers", assets.Normalize(symbol), len(brokers))
	}

	if assets.Normalize(symbol) == "MOVE" && len(found) > 1 {
		for i := range found {
			name := strings.ToLower(found[i].UnderlyingAsset.Name)
			if strings.Contains(name, "move-fa") || strings.Contains(name, "move_fa") {
				return &found[i], nil
			}
		}
	}
	return &found[0], nil
}
