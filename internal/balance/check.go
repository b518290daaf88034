package balance

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/quantumauth-io/quantum-pay-client/internal/erc20"
)

// Sufficiency is the result of comparing a snapshot with a required amount.
type Sufficiency struct {
	Sufficient bool   `json:"sufficient"`
	Balance    string `json:"balance"`
	Required   string `json:"required"`
	Shortfall  string `json:"shortfall,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// Check compares the displayed balance with required. An unreliable
// snapshot is never sufficient, whatever its numbers say.
func Check(s Snapshot, required decimal.Decimal) Sufficiency {
	out := Sufficiency{Balance: s.Formatted, Required: required.StringFixed(erc20.DisplayDecimals)}

	if !s.Reliable() {
		out.Reason = "balance unavailable: " + s.Error
		return out
	}
	if !required.IsPositive() {
		out.Reason = "required amount must be positive"
		return out
	}

	have, err := decimal.NewFromString(s.Formatted)
	if err != nil {
		out.Reason = fmt.Sprintf("unreadable balance %q", s.Formatted)
		return out
	}
	if have.GreaterThanOrEqual(required) {
		out.Sufficient = true
		return out
	}

	out.Shortfall = required.Sub(have).StringFixed(erc20.DisplayDecimals)
	out.Reason = fmt.Sprintf("insufficient %s balance: need %s more", s.Symbol, out.Shortfall)
	return out
}
