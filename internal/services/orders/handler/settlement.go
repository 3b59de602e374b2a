package handler

import (
	"github.com/shopspring/decimal"

	"github.com/ferneyS02/licor-solution/internal/database/models"
)

var (
	cardSurchargeRate = decimal.RequireFromString("0.05")
	cardSurchargeFlat = decimal.NewFromInt(300)
)

// parseAmount reads a stored money string. Stored values are always written
// by money(), so a malformed value counts as zero instead of failing a sale.
func parseAmount(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func lineTotal(unitPrice string, qty int32) string {
	return money(parseAmount(unitPrice).Mul(decimal.NewFromInt32(qty)))
}

func orderBase(lines []models.OrderLine) decimal.Decimal {
	base := decimal.Zero
	for _, l := range lines {
		base = base.Add(parseAmount(l.LineTotal))
	}
	return base
}

// surcharge is zero for everything except card sales, which pay 5% of the
// base rounded to whole units (half away from zero) plus a flat 300.
func surcharge(method string, base decimal.Decimal) decimal.Decimal {
	if method != models.PaymentCard {
		return decimal.Zero
	}
	return base.Mul(cardSurchargeRate).Round(0).Add(cardSurchargeFlat)
}
