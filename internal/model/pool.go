package model

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Pool describes a bin-based liquidity pool at the time it was observed.
type Pool struct {
	Address   string        `json:"address"`
	TokenX    Token         `json:"token_x"`
	TokenY    Token         `json:"token_y"`
	BinStep   uint16        `json:"bin_step"`
	ActiveBin int32         `json:"active_bin"`
	FeeParams FeeParameters `json:"fee_params"`
}

// FeeParameters holds the pool fee configuration. Volatility values are
// expressed in bins crossed, protocol share as a fraction in [0,1].
type FeeParameters struct {
	BaseFactor            decimal.Decimal `json:"base_factor"`
	MaxVolatilityFactor   decimal.Decimal `json:"max_volatility_factor"`
	VolatilityAccumulator decimal.Decimal `json:"volatility_accumulator"`
	ProtocolShare         decimal.Decimal `json:"protocol_share"`
}

// Validate checks the structural invariants of a pool.
func (p Pool) Validate() error {
	if p.Address == "" {
		return fmt.Errorf("pool address is required")
	}
	if p.BinStep == 0 {
		return fmt.Errorf("pool %s: bin step must be > 0", p.Address)
	}
	share := p.FeeParams.ProtocolShare
	if share.IsNegative() || share.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("pool %s: protocol share %s outside [0,1]", p.Address, share)
	}
	return nil
}
