// Command mpctl runs MovePosition lending actions and inspects accounts and markets.
package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dwdwow/mp-go/chain"
	"github.com/dwdwow/mp-go/client"
	"github.com/dwdwow/mp-go/config"
	"github.com/dwdwow/mp-go/logging"
	"github.com/dwdwow/mp-go/types"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func usage() string {
	buf := &bytes.Buffer{}
	fmt.Fprintln(buf, "Usage: mpctl [-config file] <command> [flags]")
	fmt.Fprintln(buf, "Commands:")
	fmt.Fprintln(buf, "  supply      Deposit an asset as collateral")
	fmt.Fprintln(buf, "  withdraw    Redeem supplied collateral")
	fmt.Fprintln(buf, "  borrow      Borrow an asset against collateral")
	fmt.Fprintln(buf, "  repay       Repay borrowed funds")
	fmt.Fprintln(buf, "  portfolio   Show an account's positions and health")
	fmt.Fprintln(buf, "  rates       Show supply and borrow rates per market")
	fmt.Fprintln(buf, "  status      Show the node's chain id and ledger height")
	return buf.String()
}

// app bundles what every command needs
type app struct {
	cfg     config.Config
	logger  *slog.Logger
	risk    *client.Risk
	node    *chain.Client
	metrics prometheus.Registerer
}

func newApp(cfg config.Config, stderr io.Writer) (*app, error) {
	logger := logging.New(stderr, cfg.Service, cfg.Env, logging.ParseLevel(cfg.LogLevel))
	slog.SetDefault(logger)

	risk := client.NewRisk(cfg.RiskAPI.URL, cfg.RiskAPI.Timeout)
	risk.SetRateLimit(cfg.RiskAPI.RateLimit, cfg.RiskAPI.Burst)

	node, err := chain.NewClient(cfg.Node.URL, cfg.Node.ChainID, cfg.Node.Timeout)
	if err != nil {
		return nil, err
	}
	node.PollInterval = cfg.Node.PollInterval

	return &app{cfg: cfg, logger: logger, risk: risk, node: node}, nil
}

// serveMetrics exposes the registry until ctx ends
func (a *app) serveMetrics(ctx context.Context) {
	if a.cfg.Metrics.Listen == "" {
		return
	}
	reg := prometheus.NewRegistry()
	a.metrics = reg

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: a.cfg.Metrics.Listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server stopped", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("mpctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to a YAML config file")
	fs.Usage = func() { fmt.Fprint(stderr, usage()) }
	if err := fs.Parse(args); err != nil {
		return 1
	}
	rest := fs.Args()
	if len(rest) == 0 {
		fmt.Fprint(stderr, usage())
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading config: %v\n", err)
		return 1
	}
	a, err := newApp(cfg, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	switch rest[0] {
	case "supply", "withdraw", "borrow", "repay":
		a.serveMetrics(ctx)
		return a.runActionCommand(ctx, types.ActionKind(rest[0]), rest[1:], stdout, stderr)
	case "portfolio":
		return a.runPortfolioCommand(ctx, rest[1:], stdout, stderr)
	case "rates":
		return a.runRatesCommand(ctx, rest[1:], stdout, stderr)
	case "status":
		return a.runStatusCommand(ctx, rest[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", rest[0])
		fmt.Fprint(stderr, usage())
		return 1
	}
}
