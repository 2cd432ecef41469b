package pipeline

import (
	"fmt"
	"time"

	"github.com/dwdwow/mp-go/constants"
)

// Config holds the settings of one pipeline instance
type Config struct {
	// ChainID is stamped on every built transaction and checked before simulation
	ChainID uint8
	// SigningTimeout bounds the wait for the custody signature
	SigningTimeout time.Duration
	// PreviewRisk asks the risk service to evaluate the projected state
	PreviewRisk bool
	// MinHealthRatio rejects withdrawals and borrows whose projected health
	// falls below it. Zero disables the guard. Implies PreviewRisk.
	MinHealthRatio float64
}

// DefaultConfig targets Movement mainnet
func DefaultConfig() Config {
	return Config{
		ChainID:        constants.MainnetChainID,
		SigningTimeout: constants.SigningTimeout * time.Second,
	}
}

func (c *Config) normalize() {
	if c.SigningTimeout <= 0 {
		c.SigningTimeout = constants.SigningTimeout * time.Second
	}
	if c.MinHealthRatio > 0 {
		c.PreviewRisk = true
	}
}

func (c Config) validate() error {
	if c.ChainID == 0 {
		return fmt.Errorf("chain id is required")
	}
	if c.MinHealthRatio < 0 {
		return fmt.Errorf("min health ratio must not be negative")
	}
	return nil
}
