package order

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
)

var one = decimal.NewFromInt(1)

// New creates a validated order in the Pending state
func New(symbol string, side Side, orderType Type, quantity decimal.Decimal) (*Order, error) {
	if symbol == "" {
		return nil, ErrSymbolIsEmpty
	}
	if side != Buy && side != Sell {
		return nil, fmt.Errorf("%w: %q", ErrSideIsInvalid, side)
	}
	switch orderType {
	case Market, Limit, Stop, StopLimit, TrailingStop:
	default:
		return nil, fmt.Errorf("%w: %q", ErrTypeIsInvalid, orderType)
	}
	if quantity.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: %v", ErrAmountIsInvalid, quantity)
	}
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	now := time.Now()
	return &Order{
		ID:        id.String(),
		Symbol:    symbol,
		Side:      side,
		Type:      orderType,
		Quantity:  quantity,
		Status:    Pending,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Validate ensures price fields required by the order type are set
func (o *Order) Validate() error {
	if o.Quantity.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("%w: %v", ErrAmountIsInvalid, o.Quantity)
	}
	switch o.Type {
	case Limit:
		if o.LimitPrice.LessThanOrEqual(decimal.Zero) {
			return ErrPriceMustBeSetIfLimitOrder
		}
	case Stop, TrailingStop:
		if o.StopPrice.LessThanOrEqual(decimal.Zero) {
			return ErrStopPriceMustBeSet
		}
	case StopLimit:
		if o.LimitPrice.LessThanOrEqual(decimal.Zero) {
			return ErrPriceMustBeSetIfLimitOrder
		}
		if o.StopPrice.LessThanOrEqual(decimal.Zero) {
			return ErrStopPriceMustBeSet
		}
	}
	return nil
}

// String implements the stringer interface
func (s Side) String() string {
	return string(s)
}

// Lower returns the side lower case string
func (s Side) Lower() string {
	return strings.ToLower(string(s))
}

// String implements the stringer interface
func (t Type) String() string {
	return string(t)
}

// Lower returns the type lower case string
func (t Type) Lower() string {
	return strings.ToLower(string(t))
}

// String implements the stringer interface
func (s Status) String() string {
	return string(s)
}

// IsTerminal returns whether the status is final
func (s Status) IsTerminal() bool {
	switch s {
	case Filled, Cancelled, Rejected, Expired:
		return true
	}
	return false
}

// StringToOrderSide converts a case insensitive order side string to a Side
func StringToOrderSide(side string) (Side, error) {
	switch {
	case strings.EqualFold(side, Buy.String()):
		return Buy, nil
	case strings.EqualFold(side, Sell.String()):
		return Sell, nil
	case strings.EqualFold(side, AnySide.String()):
		return AnySide, nil
	}
	return "", fmt.Errorf("%w: %q", ErrSideIsInvalid, side)
}

// StringToOrderType converts a case insensitive order type string to a Type
func StringToOrderType(orderType string) (Type, error) {
	switch {
	case strings.EqualFold(orderType, Market.String()):
		return Market, nil
	case strings.EqualFold(orderType, Limit.String()):
		return Limit, nil
	case strings.EqualFold(orderType, Stop.String()):
		return Stop, nil
	case strings.EqualFold(orderType, StopLimit.String()),
		strings.EqualFold(orderType, "STOPLIMIT"):
		return StopLimit, nil
	case strings.EqualFold(orderType, TrailingStop.String()),
		strings.EqualFold(orderType, "TRAILING"):
		return TrailingStop, nil
	case strings.EqualFold(orderType, AnyType.String()):
		return AnyType, nil
	}
	return "", fmt.Errorf("%w: %q", ErrTypeIsInvalid, orderType)
}

// StringToOrderStatus converts a case insensitive order status string to a
// Status
func StringToOrderStatus(status string) (Status, error) {
	for _, s := range []Status{Pending, Open, PartiallyFilled, Filled, Cancelled, Rejected, Expired} {
		if strings.EqualFold(status, s.String()) {
			return s, nil
		}
	}
	return UnknownStatus, fmt.Errorf("%q not recognised as order status", status)
}

// Remaining returns the unfilled quantity
func (o *Order) Remaining() decimal.Decimal {
	return o.Quantity.Sub(o.FilledQuantity)
}

// SetStatus transitions the order status, refusing to leave a terminal state
func (o *Order) SetStatus(s Status) error {
	if o.Status.IsTerminal() {
		return fmt.Errorf("%w: %v -> %v", ErrStatusIsTerminal, o.Status, s)
	}
	o.Status = s
	o.UpdatedAt = time.Now()
	return nil
}

// AppendReason concatenates custom order outcome reasoning
func (o *Order) AppendReason(y string) {
	if o.Reason != "" {
		o.Reason = o.Reason + ". " + y
		return
	}
	o.Reason = y
}

// Cancel marks an open order cancelled
func (o *Order) Cancel(reason string) error {
	if reason != "" {
		o.AppendReason(reason)
	}
	return o.SetStatus(Cancelled)
}

// Reject marks the order rejected with a reason, rejections are non fatal to
// a backtest run
func (o *Order) Reject(reason string) error {
	if reason != "" {
		o.AppendReason(reason)
	}
	return o.SetStatus(Rejected)
}

// Expire marks an open order expired
func (o *Order) Expire() error {
	return o.SetStatus(Expired)
}

// Fill applies a (partial) execution to the order. The average fill price is
// a running weighted average across every fill, commission and slippage
// costs accumulate. Filling a completed order is a no-op
func (o *Order) Fill(quantity, price decimal.Decimal, ts time.Time, commission, slippage decimal.Decimal) {
	remaining := o.Remaining()
	if remaining.LessThanOrEqual(decimal.Zero) || o.Status.IsTerminal() {
		return
	}
	if quantity.LessThanOrEqual(decimal.Zero) {
		return
	}
	fillQty := decimal.Min(quantity, remaining)

	prevNotional := o.AverageFillPrice.Mul(o.FilledQuantity)
	o.FilledQuantity = o.FilledQuantity.Add(fillQty)
	o.AverageFillPrice = prevNotional.Add(price.Mul(fillQty)).Div(o.FilledQuantity)
	o.Commission = o.Commission.Add(commission)
	o.Slippage = o.Slippage.Add(slippage)
	o.UpdatedAt = ts

	if o.FilledQuantity.GreaterThanOrEqual(o.Quantity) {
		o.Status = Filled
	} else {
		o.Status = PartiallyFilled
	}
}

// CanFillAtPrice reports whether the bar's range permits execution of this
// order. Market orders always fill, limit and stop orders require the bar to
// trade through their trigger levels, stop limits require both legs to hold
// within the same bar
func (o *Order) CanFillAtPrice(closePrice, high, low decimal.Decimal) bool {
	switch o.Type {
	case Market:
		return true
	case Limit:
		if o.Side == Buy {
			return low.LessThanOrEqual(o.LimitPrice)
		}
		return high.GreaterThanOrEqual(o.LimitPrice)
	case Stop, TrailingStop:
		if o.Side == Buy {
			return high.GreaterThanOrEqual(o.StopPrice)
		}
		return low.LessThanOrEqual(o.StopPrice)
	case StopLimit:
		if o.Side == Buy {
			return high.GreaterThanOrEqual(o.StopPrice) &&
				low.LessThanOrEqual(o.LimitPrice)
		}
		return low.LessThanOrEqual(o.StopPrice) &&
			high.GreaterThanOrEqual(o.LimitPrice)
	}
	return false
}

// FillPrice returns the simulated execution price for the order given the
// current market price. Limit orders fill at the better of the limit and
// market price for the order's side, stop styles base the price on the stop
// trigger. Slippage is applied adversely, inflating buys and deflating sells
func (o *Order) FillPrice(currentPrice, slippagePct decimal.Decimal) decimal.Decimal {
	base := currentPrice
	switch o.Type {
	case Limit:
		if o.Side == Buy {
			base = decimal.Min(o.LimitPrice, currentPrice)
		} else {
			base = decimal.Max(o.LimitPrice, currentPrice)
		}
	case Stop, StopLimit, TrailingStop:
		if o.StopPrice.GreaterThan(decimal.Zero) {
			base = o.StopPrice
		}
	}
	if slippagePct.IsZero() {
		return base
	}
	if o.Side == Buy {
		return base.Mul(one.Add(slippagePct))
	}
	return base.Mul(one.Sub(slippagePct))
}
