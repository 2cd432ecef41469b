package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/dwdwow/mp-go/chain"
	"github.com/dwdwow/mp-go/config"
	"github.com/dwdwow/mp-go/packet"
	"github.com/dwdwow/mp-go/pipeline"
	"github.com/dwdwow/mp-go/signing"
	"github.com/dwdwow/mp-go/types"
	"github.com/dwdwow/mp-go/ws"
)

func actionUsage(kind types.ActionKind) string {
	buf := &bytes.Buffer{}
	fmt.Fprintf(buf, "Usage: mpctl %s -symbol <SYMBOL> -amount <AMOUNT>\n", kind)
	fmt.Fprintln(buf, "The signing key comes from the configured signer.")
	return buf.String()
}

func (a *app) runActionCommand(ctx context.Context, kind types.ActionKind, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet(string(kind), flag.ContinueOnError)
	fs.SetOutput(stderr)
	symbol := fs.String("symbol", "", "asset symbol, e.g. MOVE or USDC")
	amount := fs.String("amount", "", "human readable amount, e.g. 1.5")
	fs.Usage = func() { fmt.Fprint(stderr, actionUsage(kind)) }
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if *symbol == "" || *amount == "" {
		fmt.Fprint(stderr, actionUsage(kind))
		return 1
	}

	account, closeSigner, err := a.account(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "Error preparing signer: %v\n", err)
		return 1
	}
	defer closeSigner()

	p, err := a.pipeline()
	if err != nil {
		fmt.Fprintf(stderr, "Error creating pipeline: %v\n", err)
		return 1
	}

	req := types.ActionRequest{Kind: kind, Symbol: *symbol, Amount: *amount, Account: account}
	res, err := p.Execute(ctx, req, func(ev pipeline.Progress) {
		fmt.Fprintf(stderr, "%s...\n", ev.Label)
	})
	if err != nil {
		var perr *types.Error
		if errors.As(err, &perr) && perr.TxHash != "" {
			fmt.Fprintf(stderr, "Transaction %s failed: %s\n", perr.TxHash, perr.Message)
			return 1
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "%s %s %s confirmed\n", kind, *amount, res.Asset.Symbol)
	fmt.Fprintf(stdout, "tx: %s\n", res.Finalized.Hash)
	fmt.Fprintf(stdout, "version: %d gas used: %d\n", res.Finalized.Version, res.Finalized.GasUsed)
	return 0
}

func (a *app) pipeline() (*pipeline.Pipeline, error) {
	builder := chain.NewBuilder(a.node.Node(), a.cfg.Node.ChainID,
		chain.WithMaxGas(a.cfg.Node.MaxGas),
		chain.WithExpiration(a.cfg.Node.Expiration),
	)
	decoder := packet.NewDecoder(a.risk, a.cfg.Portal.Address, a.cfg.Portal.Module)

	opts := []pipeline.Option{pipeline.WithLogger(a.logger)}
	if a.metrics != nil {
		opts = append(opts, pipeline.WithMetrics(pipeline.NewMetrics(a.metrics)))
	}
	return pipeline.New(a.cfg.PipelineConfig(), a.risk, decoder, builder, a.node, opts...)
}

// account resolves the acting account from the signer configuration.
// The returned func releases the signer.
func (a *app) account(ctx context.Context) (types.Account, func(), error) {
	switch a.cfg.Signer.Mode {
	case config.SignerLocal:
		key, err := a.cfg.Signer.PrivateKey()
		if err != nil {
			return types.Account{}, nil, err
		}
		signer, err := signing.NewLocalSigner(key)
		if err != nil {
			return types.Account{}, nil, err
		}
		return signer.Account(), func() {}, nil
	case config.SignerBridge:
		bridge := ws.NewBridge(a.cfg.Signer.BridgeURL, a.cfg.Signer.PublicKey, a.logger)
		if err := bridge.Start(ctx); err != nil {
			return types.Account{}, nil, err
		}
		account := types.Account{
			Address:   a.cfg.Signer.Address,
			PublicKey: a.cfg.Signer.PublicKey,
			Signer:    bridge,
		}
		return account, func() { _ = bridge.Close() }, nil
	}
	return types.Account{}, nil, fmt.Errorf("unknown signer mode %q", a.cfg.Signer.Mode)
}
