package portfolio

import (
	"time"

	"github.com/shopspring/decimal"
)

// Add increases the position by quantity at price. For a long the average
// cost is recomputed as a weighted average. A buy against a short covers the
// short first, realising P&L, and any remainder opens a long leg at price
func (p *Position) Add(quantity, price decimal.Decimal, ts time.Time) decimal.Decimal {
	var realized decimal.Decimal
	if p.Quantity.IsNegative() {
		cover := decimal.Min(quantity, p.Quantity.Neg())
		realized = p.AverageCost.Sub(price).Mul(cover)
		p.RealizedPnL = p.RealizedPnL.Add(realized)
		p.Quantity = p.Quantity.Add(cover)
		quantity = quantity.Sub(cover)
		if p.Quantity.IsZero() {
			p.AverageCost = decimal.Zero
		}
	}
	if quantity.IsPositive() {
		newQty := p.Quantity.Add(quantity)
		p.AverageCost = p.AverageCost.Mul(p.Quantity).Add(price.Mul(quantity)).Div(newQty)
		p.Quantity = newQty
	}
	p.CurrentPrice = price
	p.UpdatedAt = ts
	return realized
}

// Reduce decreases the position by quantity at price, returning the realized
// P&L of the closed portion. A sell beyond the held quantity opens a short
// leg at price; the caller enforces the shorting policy
func (p *Position) Reduce(quantity, price decimal.Decimal, ts time.Time) decimal.Decimal {
	var realized decimal.Decimal
	if p.Quantity.IsPositive() {
		closeQty := decimal.Min(quantity, p.Quantity)
		realized = price.Sub(p.AverageCost).Mul(closeQty)
		p.RealizedPnL = p.RealizedPnL.Add(realized)
		p.Quantity = p.Quantity.Sub(closeQty)
		quantity = quantity.Sub(closeQty)
		if p.Quantity.IsZero() {
			p.AverageCost = decimal.Zero
		}
	}
	if quantity.IsPositive() {
		// opening or extending a short, average cost tracks the
		// magnitude weighted entry
		shortQty := p.Quantity.Neg()
		newShort := shortQty.Add(quantity)
		p.AverageCost = p.AverageCost.Mul(shortQty).Add(price.Mul(quantity)).Div(newShort)
		p.Quantity = newShort.Neg()
	}
	p.CurrentPrice = price
	p.UpdatedAt = ts
	return realized
}

// MarketValue is the signed value of the position at the current price
func (p *Position) MarketValue() decimal.Decimal {
	return p.Quantity.Mul(p.CurrentPrice)
}

// UnrealizedPnL is the open profit or loss at the current price
func (p *Position) UnrealizedPnL() decimal.Decimal {
	return p.CurrentPrice.Sub(p.AverageCost).Mul(p.Quantity)
}
