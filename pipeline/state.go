package pipeline

import "github.com/dwdwow/mp-go/types"

// State is a step of the action state machine. States only move forward.
type State string

const (
	StateIdle                State = "idle"
	StateFetchingPortfolio   State = "fetching_portfolio"
	StateProjectingState     State = "projecting_state"
	StateRequestingTicket    State = "requesting_ticket"
	StateDecodingPacket      State = "decoding_packet"
	StateBuildingTransaction State = "building_transaction"
	StateSimulating          State = "simulating"
	StateAwaitingSignature   State = "awaiting_signature"
	StateSubmitting          State = "submitting"
	StateAwaitingFinality    State = "awaiting_finality"
	StateSucceeded           State = "succeeded"
	StateFailed              State = "failed"
)

var stateLabels = map[State]string{
	StateIdle:                "Starting",
	StateFetchingPortfolio:   "Fetching portfolio",
	StateProjectingState:     "Calculating new position",
	StateRequestingTicket:    "Requesting ticket",
	StateDecodingPacket:      "Decoding ticket",
	StateBuildingTransaction: "Building transaction",
	StateSimulating:          "Simulating transaction",
	StateAwaitingSignature:   "Waiting for signature",
	StateSubmitting:          "Submitting transaction",
	StateAwaitingFinality:    "Waiting for confirmation",
	StateSucceeded:           "Done",
	StateFailed:              "Failed",
}

// Label is the short human readable text shown for a state
func (s State) Label() string {
	return stateLabels[s]
}

// Terminal reports whether no further transitions follow
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// Progress is emitted on every state transition
type Progress struct {
	RunID string
	State State
	Label string
	// Err is set when State is StateFailed
	Err *types.Error
}

// ProgressFunc receives progress notifications. It is called synchronously
// from the pipeline and must not block.
type ProgressFunc func(Progress)
