// Package fee computes the AfriPay surcharge added on top of a merchant's
// requested amount.
package fee

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Currency is a settlement asset supported by AfriPay.
type Currency string

const (
	USDC Currency = "USDC"
	SOL  Currency = "SOL"
)

// ParseCurrency normalizes s; an empty string means USDC.
func ParseCurrency(s string) (Currency, error) {
	switch c := Currency(strings.ToUpper(strings.TrimSpace(s))); c {
	case "":
		return USDC, nil
	case USDC, SOL:
		return c, nil
	default:
		return "", fmt.Errorf("unsupported currency %q", s)
	}
}

// Decimals is the on-chain precision of the currency.
func (c Currency) Decimals() int32 {
	if c == SOL {
		return 9
	}
	return 6
}

// MinAmount is the smallest merchant amount accepted.
var MinAmount = decimal.New(1, -6)

// Quote is the full breakdown of one payment.
type Quote struct {
	Currency         Currency        `json:"currency"`
	Amount           decimal.Decimal `json:"requestedAmount"`
	Rate             decimal.Decimal `json:"feeRate"`
	FixedFee         decimal.Decimal `json:"fixedFee"`
	Fee              decimal.Decimal `json:"afripayFee"`
	Total            decimal.Decimal `json:"totalAmount"`
	MerchantReceives decimal.Decimal `json:"merchantReceives"`
}

// Calculator applies a process-wide rate plus a per-currency fixed fee.
type Calculator struct {
	rate        decimal.Decimal
	fixedUSD    decimal.Decimal
	solPriceUSD decimal.Decimal
}

func NewCalculator(rate, fixedFeeUSD, solPriceUSD decimal.Decimal) *Calculator {
	return &Calculator{rate: rate, fixedUSD: fixedFeeUSD, solPriceUSD: solPriceUSD}
}

// Rate returns the percentage component.
func (c *Calculator) Rate() decimal.Decimal { return c.rate }

// FixedFee returns the flat component expressed in currency units. For SOL the
// USD fee is converted at the configured price.
func (c *Calculator) FixedFee(cur Currency) decimal.Decimal {
	if cur == SOL {
		return c.fixedUSD.DivRound(c.solPriceUSD, SOL.Decimals())
	}
	return c.fixedUSD
}

// Quote computes fee = amount*rate + fixed(currency) and total = amount + fee,
// rounded to the currency's on-chain precision.
func (c *Calculator) Quote(amount decimal.Decimal, cur Currency) (Quote, error) {
	if amount.LessThan(MinAmount) {
		return Quote{}, fmt.Errorf("amount must be at least %s", MinAmount)
	}
	if cur != USDC && cur != SOL {
		return Quote{}, fmt.Errorf("unsupported currency %q", cur)
	}

	places := cur.Decimals()
	amount = amount.Round(places)
	fixed := c.FixedFee(cur)
	fee := amount.Mul(c.rate).Add(fixed).Round(places)
	total := amount.Add(fee)
	if _, err := ToBaseUnits(total, cur); err != nil {
		return Quote{}, fmt.Errorf("total %s %s exceeds the largest transferable amount", total, cur)
	}

	return Quote{
		Currency:         cur,
		Amount:           amount,
		Rate:             c.rate,
		FixedFee:         fixed,
		Fee:              fee,
		Total:            total,
		MerchantReceives: amount,
	}, nil
}

// ErrOutOfRange reports an amount with no uint64 base-unit representation.
var ErrOutOfRange = errors.New("amount out of range")

// ToBaseUnits converts a currency amount into lamports or USDC base units.
func ToBaseUnits(amount decimal.Decimal, cur Currency) (uint64, error) {
	units := amount.Shift(cur.Decimals()).Round(0).BigInt()
	if units.Sign() < 0 || !units.IsUint64() {
		return 0, fmt.Errorf("%w: %s %s", ErrOutOfRange, amount, cur)
	}
	return units.Uint64(), nil
}

// FromBaseUnits is the inverse of ToBaseUnits.
func FromBaseUnits(units uint64, cur Currency) decimal.Decimal {
	return decimal.NewFromUint64(units).Shift(-cur.Decimals())
}
