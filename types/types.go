// Package types provides type definitions for the lending action pipeline.
package types

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ActionKind is the lending intent driving one pipeline run
type ActionKind string

const (
	// ActionSupply deposits an asset as collateral
	ActionSupply ActionKind = "supply"
	// ActionWithdraw redeems previously supplied collateral
	ActionWithdraw ActionKind = "withdraw"
	// ActionBorrow opens or increases a loan
	ActionBorrow ActionKind = "borrow"
	// ActionRepay reduces an outstanding loan
	ActionRepay ActionKind = "repay"
)

// ActionKinds lists every supported action in a stable order
var ActionKinds = []ActionKind{ActionSupply, ActionWithdraw, ActionBorrow, ActionRepay}

// ParseActionKind converts user input to an ActionKind
func ParseActionKind(s string) (ActionKind, error) {
	kind := ActionKind(strings.ToLower(strings.TrimSpace(s)))
	if !kind.Valid() {
		return "", fmt.Errorf("unknown action %q", s)
	}
	return kind, nil
}

// Valid reports whether k is one of the four supported actions
func (k ActionKind) Valid() bool {
	switch k {
	case ActionSupply, ActionWithdraw, ActionBorrow, ActionRepay:
		return true
	}
	return false
}

// Increases reports whether the action grows the affected position
func (k ActionKind) Increases() bool {
	return k == ActionSupply || k == ActionBorrow
}

// Side selects which portfolio list an action touches
type Side string

const (
	// SideCollateral is the list of deposit notes
	SideCollateral Side = "collateral"
	// SideLiability is the list of loan notes
	SideLiability Side = "liability"
)

// Side returns the portfolio list affected by the action
func (k ActionKind) Side() Side {
	if k == ActionSupply || k == ActionWithdraw {
		return SideCollateral
	}
	return SideLiability
}

// SignatureResponse is what a custody integration returns for one signing request
type SignatureResponse struct {
	SignatureHex string `json:"signatureHex"`
}

// Signer is the capability a wallet or custody backend plugs into the pipeline.
// hashHex is the hex encoded signing message of the transaction.
type Signer interface {
	Sign(ctx context.Context, hashHex string) (SignatureResponse, error)
}

// SignerFunc adapts a plain function to the Signer interface
type SignerFunc func(ctx context.Context, hashHex string) (SignatureResponse, error)

// Sign implements Signer
func (f SignerFunc) Sign(ctx context.Context, hashHex string) (SignatureResponse, error) {
	return f(ctx, hashHex)
}

// Account identifies who acts. It is supplied per call and never stored.
type Account struct {
	Address   string
	PublicKey string
	Signer    Signer
}

// ActionRequest is one user-initiated lending action
type ActionRequest struct {
	Kind    ActionKind
	Symbol  string
	Amount  string // human readable decimal amount
	Account Account
}

// PortfolioPosition is a single instrument balance in raw units
type PortfolioPosition struct {
	InstrumentID string `json:"instrumentId"`
	Amount       string `json:"amount"`
}

// PortfolioState holds the collateral and liability positions of an account
type PortfolioState struct {
	Collaterals []PortfolioPosition `json:"collaterals"`
	Liabilities []PortfolioPosition `json:"liabilities"`
}

// Clone returns a deep copy so callers can derive new states without aliasing
func (s PortfolioState) Clone() PortfolioState {
	out := PortfolioState{
		Collaterals: make([]PortfolioPosition, len(s.Collaterals)),
		Liabilities: make([]PortfolioPosition, len(s.Liabilities)),
	}
	copy(out.Collaterals, s.Collaterals)
	copy(out.Liabilities, s.Liabilities)
	return out
}

// Positions returns the list for the given side
func (s PortfolioState) Positions(side Side) []PortfolioPosition {
	if side == SideCollateral {
		return s.Collaterals
	}
	return s.Liabilities
}

// RiskSummary is the required equity reported by the risk service
type RiskSummary struct {
	RequiredEquity Float `json:"requiredEquity"`
}

// Evaluation is the risk service's view of an account's health
type Evaluation struct {
	MM              Float `json:"mm"`
	HealthRatio     Float `json:"health_ratio"`
	TotalCollateral Float `json:"total_collateral"`
	TotalLiability  Float `json:"total_liability"`
	LTV             Float `json:"ltv"`
}

// Portfolio is the full response of the portfolio endpoint
type Portfolio struct {
	PortfolioState
	Risk       RiskSummary `json:"risk"`
	Evaluation Evaluation  `json:"evaluation"`
}

// UnderlyingAsset describes the asset a broker lends out
type UnderlyingAsset struct {
	Name           string `json:"name"`
	NetworkAddress string `json:"networkAddress"`
	Decimals       int    `json:"decimals"`
	Price          Float  `json:"price"`
}

// Broker is one money market listed by the risk service
type Broker struct {
	NetworkAddress                     string          `json:"networkAddress"`
	UnderlyingAsset                    UnderlyingAsset `json:"underlyingAsset"`
	Utilization                        Float           `json:"utilization"`
	InterestRate                       Float           `json:"interestRate"`
	InterestFeeRate                    Float           `json:"interestFeeRate"`
	ScaledAvailableLiquidityUnderlying Float           `json:"scaledAvailableLiquidityUnderlying"`
	ScaledTotalBorrowedUnderlying      Float           `json:"scaledTotalBorrowedUnderlying"`
}

// Ticket is the opaque, single-use instruction packet issued for one action
type Ticket struct {
	Packet string `json:"packet"`
}

// TicketRequest is the body posted to the action-specific ticket endpoint
type TicketRequest struct {
	BrokerName            string         `json:"brokerName"`
	Amount                string         `json:"amount"`
	Network               string         `json:"network"`
	SignerPubkey          string         `json:"signerPubkey"`
	CurrentPortfolioState PortfolioState `json:"currentPortfolioState"`
}

// ByteVector is a byte sequence that travels as an ordered list of integers 0-255
type ByteVector []uint8

// MarshalJSON encodes the bytes as a number array instead of base64
func (b ByteVector) MarshalJSON() ([]byte, error) {
	ints := make([]int, len(b))
	for i, v := range b {
		ints[i] = int(v)
	}
	return json.Marshal(ints)
}

// UnmarshalJSON decodes a number array
func (b *ByteVector) UnmarshalJSON(data []byte) error {
	var ints []int
	if err := json.Unmarshal(data, &ints); err != nil {
		return err
	}
	out := make(ByteVector, len(ints))
	for i, v := range ints {
		if v < 0 || v > 255 {
			return fmt.Errorf("byte vector element %d out of range: %d", i, v)
		}
		out[i] = uint8(v)
	}
	*b = out
	return nil
}

// CallDescriptor is the executable entry function call resolved from a ticket
type CallDescriptor struct {
	Function      string   `json:"function"`
	TypeArguments []string `json:"typeArguments"`
	Arguments     []any    `json:"arguments"`
}

// Float is a float64 that accepts both JSON numbers and numeric strings
type Float float64

// UnmarshalJSON implements json.Unmarshaler
func (f *Float) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid number %q: %w", s, err)
	}
	*f = Float(v)
	return nil
}
