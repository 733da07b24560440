// Package pricing turns a USD amount into a local-currency quote.
package pricing

import "github.com/shopspring/decimal"

const places = 2

var one = decimal.NewFromInt(1)

type Quote struct {
	EffectiveRate decimal.Decimal
	AmountLocal   decimal.Decimal
}

// Calculate applies the markup to baseRate and converts amountUSD.
// Both steps round half-up to 2 places independently: the total is computed
// from the already rounded rate, which is the rate the user is shown.
// Inputs are expected to be validated (amountUSD > 0, baseRate > 0, markup >= 0).
func Calculate(amountUSD, baseRate, markup decimal.Decimal) Quote {
	rate := baseRate.Mul(one.Add(markup)).Round(places)
	return Quote{
		EffectiveRate: rate,
		AmountLocal:   amountUSD.Mul(rate).Round(places),
	}
}
