package model

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// Token is a fungible token listed on one source.
// Address is kept in canonical lower-case hex form.
type Token struct {
	SourceID   string `json:"source_id"`
	SourceName string `json:"source_name"`
	Address    string `json:"address"`
	Symbol     string `json:"symbol"`
	Name       string `json:"name"`
	Decimals   uint8  `json:"decimals"`
	Listed     bool   `json:"listed"`
}

// Price is a unit price of Token in the stable reference currency.
type Price struct {
	Token Token           `json:"token"`
	Value decimal.Decimal `json:"value"`
}

// Amount is a raw integer-scaled quantity of Token.
// A nil Raw means the quantity is unknown (missing or unparsable), which is
// different from a known zero.
type Amount struct {
	Token Token    `json:"token"`
	Raw   *big.Int `json:"raw"`
	Price *Price   `json:"price,omitempty"`
}

// NewAmount builds an Amount, copying raw.
func NewAmount(token Token, raw *big.Int) Amount {
	if raw == nil {
		return Amount{Token: token}
	}
	return Amount{Token: token, Raw: new(big.Int).Set(raw)}
}

// Known reports whether the raw quantity is available.
func (a Amount) Known() bool {
	return a.Raw != nil
}

// Value returns raw / 10^decimals. ok is false when the quantity is unknown.
func (a Amount) Value() (decimal.Decimal, bool) {
	if a.Raw == nil {
		return decimal.Zero, false
	}
	return decimal.NewFromBigInt(a.Raw, -int32(a.Token.Decimals)), true
}

// StableValue converts the amount with its Price. ok is false without a price.
func (a Amount) StableValue() (decimal.Decimal, bool) {
	value, ok := a.Value()
	if !ok || a.Price == nil {
		return decimal.Zero, false
	}
	return value.Mul(a.Price.Value), true
}

// String formats the amount with the token's full precision.
func (a Amount) String() string {
	if a.Raw == nil {
		return "N/A"
	}
	return formatTokenAmount(a.Raw, a.Token.Decimals)
}
