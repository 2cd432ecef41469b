package signing

import (
	"context"
	"fmt"
	"time"

	"github.com/dwdwow/mp-go/types"
)

type signResult struct {
	resp types.SignatureResponse
	err  error
}

// SignWithTimeout asks signer for a signature over hashHex and gives up after timeout.
// On timeout the call returns a signing timeout error at once; the signer keeps
// running in the background and whatever it eventually returns is discarded.
func SignWithTimeout(ctx context.Context, signer types.Signer, hashHex string, timeout time.Duration) (types.SignatureResponse, error) {
	if signer == nil {
		return types.SignatureResponse{}, fmt.Errorf("no signer configured")
	}

	signCtx, cancel := context.WithCancel(ctx)

	// Buffered so a late signer never blocks on send
	done := make(chan signResult, 1)
	go func() {
		resp, err := signer.Sign(signCtx, hashHex)
		done <- signResult{resp: resp, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-done:
		cancel()
		if r.err != nil {
			return types.SignatureResponse{}, fmt.Errorf("signer: %w", r.err)
		}
		return r.resp, nil
	case <-timer.C:
		cancel()
		return types.SignatureResponse{}, &types.Error{
			Kind:    types.KindSigningTimeout,
			Message: fmt.Sprintf("no signature received within %s", timeout),
		}
	case <-ctx.Done():
		cancel()
		return types.SignatureResponse{}, fmt.Errorf("signing aborted: %w", ctx.Err())
	}
}
