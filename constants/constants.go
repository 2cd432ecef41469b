// Package constants provides configuration constants for the MovePosition API and the Movement network.
package constants

const (
	// MainnetAPIURL is the URL for the MovePosition risk and ticket service
	MainnetAPIURL = "https://api.moveposition.xyz"

	// MainnetNodeURL is the URL for the Movement mainnet full node REST API
	MainnetNodeURL = "https://mainnet.movementnetwork.xyz/v1"

	// TestnetNodeURL is the URL for the Movement testnet full node REST API
	TestnetNodeURL = "https://testnet.movementnetwork.xyz/v1"

	// LocalAPIURL is the URL for local development
	LocalAPIURL = "http://localhost:3001"

	// MainnetChainID is the numeric chain id of Movement mainnet
	MainnetChainID uint8 = 126

	// TestnetChainID is the numeric chain id of Movement testnet
	TestnetChainID uint8 = 250

	// TicketNetwork is the network name the ticket service expects
	TicketNetwork = "aptos"

	// BrokerNetworkPrefix prefixes every broker and instrument name
	BrokerNetworkPrefix = "movement"

	// PortalAddress is the on-chain address of the MovePosition entry module
	PortalAddress = "0xccd2621d2897d407e06d18e6ebe3be0e6d9b61f1e809dd49360522b9105812cf"

	// PortalModule is the module exposing the ticket entry functions
	PortalModule = "entry_public"

	// DefaultTimeout is the default HTTP request timeout in seconds
	DefaultTimeout = 30

	// SigningTimeout is the bound on waiting for a signature, in seconds
	SigningTimeout = 60

	// DefaultMaxGasAmount is the gas ceiling placed on built transactions
	DefaultMaxGasAmount = 200000

	// DefaultExpirationSecs is how long a built transaction stays valid
	DefaultExpirationSecs = 300

	// DefaultDecimals is used for symbols missing from the static table
	DefaultDecimals = 8

	// NetworkErrorMessage is shown to users for every transport failure
	NetworkErrorMessage = "The service is overloaded, please try again."
)
