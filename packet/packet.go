// Package packet decodes ticket packets and resolves them into entry function calls.
package packet

import (
	"context"
	"fmt"
	"strings"

	"github.com/dwdwow/mp-go/assets"
	"github.com/dwdwow/mp-go/constants"
	"github.com/dwdwow/mp-go/types"
	"github.com/dwdwow/mp-go/utils"
)

// BrokerSource lists the brokers known to the risk service
type BrokerSource interface {
	Brokers(ctx context.Context) ([]types.Broker, error)
}

// Decoder turns a ticket packet into a CallDescriptor
type Decoder struct {
	brokers       BrokerSource
	portalAddress string
	portalModule  string
}

// NewDecoder creates a Decoder. Empty portal values fall back to the mainnet deployment.
func NewDecoder(brokers BrokerSource, portalAddress, portalModule string) *Decoder {
	if portalAddress == "" {
		portalAddress = constants.PortalAddress
	}
	if portalModule == "" {
		portalModule = constants.PortalModule
	}
	return &Decoder{
		brokers:       brokers,
		portalAddress: portalAddress,
		portalModule:  portalModule,
	}
}

// DecodeHex parses a hex packet into its byte sequence
func DecodeHex(packet string) (types.ByteVector, error) {
	if strings.TrimPrefix(strings.TrimSpace(packet), "0x") == "" {
		return nil, fmt.Errorf("empty packet")
	}
	b, err := utils.HexToBytes(packet)
	if err != nil {
		return nil, fmt.Errorf("decode packet: %w", err)
	}
	return types.ByteVector(b), nil
}

// Decode decodes the packet and resolves it against the broker listing
func (d *Decoder) Decode(ctx context.Context, kind types.ActionKind, packet, brokerName string) (types.CallDescriptor, error) {
	data, err := DecodeHex(packet)
	if err != nil {
		// A packet that does not decode is a malformed ticket response
		return types.CallDescriptor{}, types.NewNetworkError(constants.NetworkErrorMessage, err)
	}

	brokers, err := d.brokers.Brokers(ctx)
	if err != nil {
		return types.CallDescriptor{}, err
	}

	broker, err := MatchBroker(brokers, brokerName)
	if err != nil {
		return types.CallDescriptor{}, err
	}

	return d.Resolve(kind, broker, data)
}

// Resolve builds the entry function call for a decoded packet
func (d *Decoder) Resolve(kind types.ActionKind, broker types.Broker, data types.ByteVector) (types.CallDescriptor, error) {
	spec, ok := kind.Spec()
	if !ok {
		return types.CallDescriptor{}, fmt.Errorf("unknown action %q", kind)
	}

	coinType := strings.TrimSpace(broker.UnderlyingAsset.NetworkAddress)
	if coinType == "" {
		for _, sym := range assets.Symbols() {
			if a := assets.Lookup(sym); a.BrokerName == broker.UnderlyingAsset.Name {
				coinType = a.CoinType
			}
		}
	}
	if coinType == "" {
		return types.CallDescriptor{}, fmt.Errorf("broker %s has no coin type", broker.UnderlyingAsset.Name)
	}

	return types.CallDescriptor{
		Function:      fmt.Sprintf("%s::%s::%s", d.portalAddress, d.portalModule, spec.EntryFunction),
		TypeArguments: []string{coinType},
		Arguments:     []any{data},
	}, nil
}

// MatchBroker finds a broker by its name, or by its on-chain address when
// brokerName is a 0x-prefixed address.
func MatchBroker(brokers []types.Broker, brokerName string) (types.Broker, error) {
	name := strings.TrimSpace(brokerName)
	if strings.HasPrefix(name, "0x") {
		want, err := types.ParseAddress(name)
		if err != nil {
			return types.Broker{}, fmt.Errorf("invalid broker address: %w", err)
		}
		for _, b := range brokers {
			got, err := types.ParseAddress(b.NetworkAddress)
			if err == nil && got == want {
				return b, nil
			}
		}
		return types.Broker{}, fmt.Errorf("broker %s not found", name)
	}

	for _, b := range brokers {
		if strings.EqualFold(b.UnderlyingAsset.Name, name) {
			return b, nil
		}
	}
	return types.Broker{}, fmt.Errorf("broker %s not found", name)
}
