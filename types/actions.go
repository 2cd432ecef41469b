package types

// ActionSpec is everything that differs between the four lending actions
type ActionSpec struct {
	// Endpoint is the ticket endpoint path on the risk service
	Endpoint string
	// EntryFunction is the portal entry function that consumes the ticket
	EntryFunction string
	// Label is a short verb used in progress messages
	Label string
}

var actionSpecs = map[ActionKind]ActionSpec{
	ActionSupply:   {Endpoint: "/brokers/lend/v2", EntryFunction: "lend_v2", Label: "Supply"},
	ActionWithdraw: {Endpoint: "/brokers/redeem/v2", EntryFunction: "redeem_v2", Label: "Withdraw"},
	ActionBorrow:   {Endpoint: "/brokers/borrow/v2", EntryFunction: "borrow_v2", Label: "Borrow"},
	ActionRepay:    {Endpoint: "/brokers/repay/v2", EntryFunction: "repay_v2", Label: "Repay"},
}

// Spec returns the lookup table entry for k. ok is false for unknown kinds.
func (k ActionKind) Spec() (spec ActionSpec, ok bool) {
	spec, ok = actionSpecs[k]
	return
}
