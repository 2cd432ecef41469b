package chain

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dwdwow/mp-go/types"
)

type knownFailure struct {
	match   string
	code    string
	message string
}

// Longer matches come first so that prefixes do not shadow them.
var knownFailures = []knownFailure{
	{"ERR_MAX_DEPOSIT_EXCEEDED", "max_deposit_exceeded", "This deposit would exceed the market's maximum deposit limit."},
	{"ERR_MAX_BORROW_EXCEEDED", "max_borrow_exceeded", "This borrow would exceed the market's maximum borrow limit."},
	{"ERR_INSUFFICIENT_LIQUIDITY", "insufficient_liquidity", "The market does not have enough liquidity for this action."},
	{"INSUFFICIENT_BALANCE_FOR_TRANSACTION_FEE", "insufficient_gas_balance", "Not enough MOVE to pay the transaction fee."},
	{"EINSUFFICIENT_BALANCE", "insufficient_balance", "Insufficient balance to complete this transaction."},
	{"INSUFFICIENT_BALANCE", "insufficient_balance", "Insufficient balance to complete this transaction."},
	{"OUT_OF_GAS", "out_of_gas", "The transaction ran out of gas."},
	{"SEQUENCE_NUMBER_TOO_OLD", "stale_sequence_number", "The account sequence number changed, please retry."},
	{"TRANSACTION_EXPIRED", "transaction_expired", "The transaction expired before it could run."},
}

var genericAbortPattern = regexp.MustCompile(`Move abort(?: in)?:?\s+([^:\s]+::\w+|[^:]+):\s*(\w+)`)

// Classify turns a failed simulation into a user-facing simulation error.
// The structured abort is consulted first; the raw vm_status is the fallback.
// A successful result classifies to nil.
func Classify(result types.SimulationResult) *types.Error {
	if result.Success {
		return nil
	}

	if result.Abort != nil {
		for _, f := range knownFailures {
			if result.Abort.Reason == f.match {
				return simulationError(f.code, f.message, result.VMStatus)
			}
		}
		msg := fmt.Sprintf("Transaction would fail: %s: %s", result.Abort.Location, result.Abort.Reason)
		return simulationError("move_abort", msg, result.VMStatus)
	}

	status := result.VMStatus
	for _, f := range knownFailures {
		if strings.Contains(status, f.match) {
			return simulationError(f.code, f.message, status)
		}
	}
	if m := genericAbortPattern.FindStringSubmatch(status); m != nil {
		msg := fmt.Sprintf("Transaction would fail: %s: %s", m[1], m[2])
		return simulationError("move_abort", msg, status)
	}

	if status == "" {
		status = "simulation failed without a status"
	}
	return simulationError("simulation_failed", status, status)
}

func simulationError(code, message, vmStatus string) *types.Error {
	e := types.NewSimulationError(code, message)
	if vmStatus != "" {
		e.Err = fmt.Errorf("vm_status: %s", vmStatus)
	}
	return e
}
