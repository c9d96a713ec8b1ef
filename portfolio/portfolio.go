package portfolio

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/thrasher-corp/backsim/common"
	"github.com/thrasher-corp/backsim/log"
	"github.com/thrasher-corp/backsim/order"
)

// New creates a portfolio with starting cash and execution cost rates.
// marginRequirement scales buying power, 1 means cash only
func New(initialCapital, commissionRate, slippageRate, marginRequirement decimal.Decimal, allowShort bool) (*Portfolio, error) {
	if initialCapital.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidInitialCapital
	}
	if marginRequirement.LessThanOrEqual(decimal.Zero) {
		marginRequirement = decimal.NewFromInt(1)
	}
	return &Portfolio{
		initialCapital:    initialCapital,
		cash:              initialCapital,
		commissionRate:    commissionRate,
		slippageRate:      slippageRate,
		marginRequirement: marginRequirement,
		allowShort:        allowShort,
		positions:         make(map[string]*Position),
	}, nil
}

// InitialCapital returns the starting cash balance
func (p *Portfolio) InitialCapital() decimal.Decimal {
	return p.initialCapital
}

// Cash returns the current cash balance
func (p *Portfolio) Cash() decimal.Decimal {
	return p.cash
}

// BuyingPower returns cash scaled by the margin requirement
func (p *Portfolio) BuyingPower() decimal.Decimal {
	return p.cash.Div(p.marginRequirement)
}

// Position returns the open position for a symbol, nil when flat
func (p *Portfolio) Position(symbol string) *Position {
	return p.positions[symbol]
}

// OpenPositionCount returns the number of open positions
func (p *Portfolio) OpenPositionCount() int {
	return len(p.positions)
}

// Positions returns the open positions sorted by symbol
func (p *Portfolio) Positions() []*Position {
	out := make([]*Position, 0, len(p.positions))
	for _, pos := range p.positions {
		out = append(out, pos)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// OpenOrders returns orders accepted but not yet in a terminal state
func (p *Portfolio) OpenOrders() []*order.Order {
	return p.openOrders
}

// FilledOrders returns every order that reached a fill, in execution order
func (p *Portfolio) FilledOrders() []*order.Order {
	return p.filledOrders
}

// Trades returns the immutable execution records in order
func (p *Portfolio) Trades() []Trade {
	return p.trades
}

// Snapshots returns the append-only equity curve
func (p *Portfolio) Snapshots() []Snapshot {
	return p.snapshots
}

// RealizedPnL returns the cumulative realized profit and loss
func (p *Portfolio) RealizedPnL() decimal.Decimal {
	return p.realizedPnL
}

// SubmitOrder validates an order against quantity, buying power and held
// position rules. Accepted orders transition to OPEN and are queued for
// execution; rejected orders are marked REJECTED with a reason and an
// ErrOrderRejected-wrapped error is returned, never a panic
func (p *Portfolio) SubmitOrder(o *order.Order, estimatedPrice decimal.Decimal) error {
	if o == nil {
		return common.ErrNilArguments
	}
	if o.Quantity.LessThanOrEqual(decimal.Zero) {
		return p.reject(o, ErrInvalidQuantity, fmt.Sprintf("quantity %v", o.Quantity))
	}
	switch o.Side {
	case order.Buy:
		notional := o.Quantity.Mul(estimatedPrice)
		if notional.GreaterThan(p.BuyingPower()) {
			return p.reject(o, ErrInsufficientBuyingPower,
				fmt.Sprintf("notional %v exceeds buying power %v", notional, p.BuyingPower()))
		}
	case order.Sell:
		pos := p.positions[o.Symbol]
		if pos == nil || pos.Quantity.LessThanOrEqual(decimal.Zero) {
			if !p.allowShort {
				return p.reject(o, ErrNoPosition, "nothing held to sell")
			}
		} else if pos.Quantity.LessThan(o.Quantity) && !p.allowShort {
			return p.reject(o, ErrInsufficientPosition,
				fmt.Sprintf("held %v, selling %v", pos.Quantity, o.Quantity))
		}
	default:
		return p.reject(o, order.ErrSideIsInvalid, string(o.Side))
	}
	if err := o.SetStatus(order.Open); err != nil {
		return err
	}
	p.openOrders = append(p.openOrders, o)
	return nil
}

func (p *Portfolio) reject(o *order.Order, cause error, detail string) error {
	reason := fmt.Sprintf("%v: %v", cause, detail)
	if err := o.Reject(reason); err != nil {
		log.Errorf(log.Portfolio, "unable to reject order %v: %v", o.ID, err)
	}
	// a rejected order is terminal and must leave the open queue
	p.removeOpenOrder(o)
	log.Warnf(log.Portfolio, "rejected %v %v %v %v: %v", o.Side, o.Quantity, o.Symbol, o.Type, reason)
	return fmt.Errorf("%w: %w", common.ErrOrderRejected, cause)
}

// ExecuteOrder fills the remaining quantity of an accepted order at
// fillPrice, applying commission and slippage costs, mutating cash and the
// position transactionally and appending one immutable trade record
func (p *Portfolio) ExecuteOrder(o *order.Order, fillPrice decimal.Decimal, ts time.Time) (*Trade, error) {
	if o == nil {
		return nil, common.ErrNilArguments
	}
	quantity := o.Remaining()
	if quantity.LessThanOrEqual(decimal.Zero) || o.Status.IsTerminal() {
		return nil, nil
	}
	tradeValue := quantity.Mul(fillPrice)
	commission := tradeValue.Mul(p.commissionRate)
	slippageCost := tradeValue.Mul(p.slippageRate)

	var realized decimal.Decimal
	switch o.Side {
	case order.Buy:
		totalCost := tradeValue.Add(commission).Add(slippageCost)
		if totalCost.GreaterThan(p.cash) {
			return nil, p.reject(o, ErrInsufficientFunds,
				fmt.Sprintf("cost %v exceeds cash %v", totalCost, p.cash))
		}
		pos := p.positions[o.Symbol]
		if pos == nil {
			pos = &Position{Symbol: o.Symbol, OpenedAt: ts}
			p.positions[o.Symbol] = pos
		}
		p.cash = p.cash.Sub(totalCost)
		realized = pos.Add(quantity, fillPrice, ts)
	case order.Sell:
		pos := p.positions[o.Symbol]
		if pos == nil || pos.Quantity.LessThan(quantity) {
			if !p.allowShort {
				return nil, p.reject(o, ErrInsufficientPosition, "position gone before execution")
			}
			if pos == nil {
				pos = &Position{Symbol: o.Symbol, OpenedAt: ts}
				p.positions[o.Symbol] = pos
			}
		}
		realized = pos.Reduce(quantity, fillPrice, ts)
		p.cash = p.cash.Add(tradeValue.Sub(commission).Sub(slippageCost))
	default:
		return nil, p.reject(o, order.ErrSideIsInvalid, string(o.Side))
	}
	p.realizedPnL = p.realizedPnL.Add(realized)

	if pos := p.positions[o.Symbol]; pos != nil && pos.Quantity.IsZero() {
		delete(p.positions, o.Symbol)
	}

	o.Fill(quantity, fillPrice, ts, commission, slippageCost)
	p.removeOpenOrder(o)
	p.filledOrders = append(p.filledOrders, o)

	trade := Trade{
		Timestamp:   ts,
		Symbol:      o.Symbol,
		Side:        o.Side,
		Quantity:    quantity,
		Price:       fillPrice,
		Value:       tradeValue,
		Commission:  commission,
		Slippage:    slippageCost,
		RealizedPnL: realized,
		Strategy:    o.StrategyName,
	}
	p.trades = append(p.trades, trade)
	log.Debugf(log.Portfolio, "executed %v %v %v @ %v (fees %v)",
		o.Side, quantity, o.Symbol, fillPrice, commission.Add(slippageCost))
	return &trade, nil
}

func (p *Portfolio) removeOpenOrder(o *order.Order) {
	for i := range p.openOrders {
		if p.openOrders[i] == o {
			p.openOrders = append(p.openOrders[:i], p.openOrders[i+1:]...)
			return
		}
	}
}

// CancelOpenOrders cancels every queued order with a caller supplied reason
func (p *Portfolio) CancelOpenOrders(reason string) {
	for i := range p.openOrders {
		if err := p.openOrders[i].Cancel(reason); err != nil {
			log.Errorf(log.Portfolio, "unable to cancel order %v: %v", p.openOrders[i].ID, err)
		}
	}
	p.openOrders = nil
}

// ExpireOpenOrders expires every queued order still unfilled, orders are day
// orders against historical data so anything pending at run end lapses
func (p *Portfolio) ExpireOpenOrders() {
	for i := range p.openOrders {
		if err := p.openOrders[i].Expire(); err != nil {
			log.Errorf(log.Portfolio, "unable to expire order %v: %v", p.openOrders[i].ID, err)
		}
	}
	p.openOrders = nil
}

// UpdatePrice marks a position to market
func (p *Portfolio) UpdatePrice(symbol string, price decimal.Decimal, ts time.Time) {
	if pos := p.positions[symbol]; pos != nil {
		pos.CurrentPrice = price
		pos.UpdatedAt = ts
	}
}

// TakeSnapshot appends one equity curve point. The cash plus market value
// identity holds at every snapshot
func (p *Portfolio) TakeSnapshot(ts time.Time) Snapshot {
	s := Snapshot{
		Timestamp:   ts,
		Cash:        p.cash,
		RealizedPnL: p.realizedPnL,
	}
	for _, pos := range p.Positions() {
		mv := pos.MarketValue()
		s.PositionsValue = s.PositionsValue.Add(mv)
		s.UnrealizedPnL = s.UnrealizedPnL.Add(pos.UnrealizedPnL())
		s.Positions = append(s.Positions, PositionSnapshot{
			Symbol:        pos.Symbol,
			Quantity:      pos.Quantity,
			AverageCost:   pos.AverageCost,
			CurrentPrice:  pos.CurrentPrice,
			MarketValue:   mv,
			UnrealizedPnL: pos.UnrealizedPnL(),
		})
	}
	s.TotalValue = s.Cash.Add(s.PositionsValue)
	p.snapshots = append(p.snapshots, s)
	return s
}

// TotalValue returns cash plus the market value of every open position
func (p *Portfolio) TotalValue() decimal.Decimal {
	total := p.cash
	for _, pos := range p.positions {
		total = total.Add(pos.MarketValue())
	}
	return total
}
