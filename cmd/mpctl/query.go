package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dwdwow/mp-go/client"
	"github.com/dwdwow/mp-go/types"
)

func (a *app) runPortfolioCommand(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("portfolio", flag.ContinueOnError)
	fs.SetOutput(stderr)
	address := fs.String("address", "", "account address, defaults to the configured signer")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	addr := *address
	if addr == "" {
		addr = a.cfg.Signer.Address
	}
	if _, err := types.ParseAddress(addr); err != nil {
		fmt.Fprintf(stderr, "Invalid address: %v\n", err)
		return 1
	}

	p, err := a.risk.Portfolio(ctx, addr)
	if err != nil {
		fmt.Fprintf(stderr, "Error fetching portfolio: %v\n", err)
		return 1
	}

	w := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SIDE\tINSTRUMENT\tRAW AMOUNT")
	for _, pos := range p.Collaterals {
		fmt.Fprintf(w, "%s\t%s\t%s\n", types.SideCollateral, pos.InstrumentID, pos.Amount)
	}
	for _, pos := range p.Liabilities {
		fmt.Fprintf(w, "%s\t%s\t%s\n", types.SideLiability, pos.InstrumentID, pos.Amount)
	}
	if err := w.Flush(); err != nil {
		return 1
	}

	ev := p.Evaluation
	fmt.Fprintf(stdout, "\ncollateral: $%.2f liability: $%.2f\n", float64(ev.TotalCollateral), float64(ev.TotalLiability))
	fmt.Fprintf(stdout, "health ratio: %.4f ltv: %.4f\n", float64(ev.HealthRatio), float64(ev.LTV))
	return 0
}

func (a *app) runRatesCommand(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("rates", flag.ContinueOnError)
	fs.SetOutput(stderr)
	if err := fs.Parse(args); err != nil {
		return 1
	}

	brokers, err := a.risk.Brokers(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "Error fetching brokers: %v\n", err)
		return 1
	}

	w := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "BROKER\tSUPPLY APY\tBORROW APR\tUTILIZATION")
	for _, b := range brokers {
		r := client.BrokerRates(b)
		fmt.Fprintf(w, "%s\t%.2f%%\t%.2f%%\t%.2f%%\n", r.Broker, r.SupplyAPY, r.BorrowAPR, r.Utilization)
	}
	if err := w.Flush(); err != nil {
		return 1
	}

	m := client.MarketMetrics(brokers)
	fmt.Fprintf(stdout, "\nTVL: $%.2f borrowed: $%.2f utilization: %.2f%%\n", m.TVL, m.TotalBorrowed, m.UtilizationRate)
	return 0
}

func (a *app) runStatusCommand(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	fs.SetOutput(stderr)
	if err := fs.Parse(args); err != nil {
		return 1
	}

	info, err := a.node.LedgerInfo(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "Error fetching ledger info: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "chain id: %d ledger version: %d block height: %d\n", info.ChainID, info.LedgerVersion, info.BlockHeight)
	if info.ChainID != a.cfg.Node.ChainID {
		fmt.Fprintf(stderr, "Node reports chain %d but transactions are built for chain %d\n", info.ChainID, a.cfg.Node.ChainID)
		return 1
	}
	return 0
}
