package utils

import (
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// FormatMoney renders amount in the display format of the ISO currency code.
// Unknown or empty codes fall back to a plain two-decimal string followed by the code.
func FormatMoney(amount decimal.Decimal, code string) string {
	cur := money.GetCurrency(code)
	if code == "" || cur == nil {
		if code == "" {
			return amount.StringFixed(2)
		}
		return amount.StringFixed(2) + " " + code
	}
	factor := decimal.New(1, int32(cur.Fraction))
	minor := amount.Mul(factor).Round(0)
	return money.New(minor.IntPart(), cur.Code).Display()
}
