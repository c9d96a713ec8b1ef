package strategies

// BuyAndHoldName is the registry key for the reference strategy
const BuyAndHoldName = "buyandhold"

// BuyAndHold is the reference strategy, it buys once per symbol on the first
// bar it sees and holds for the remainder of the run. It exists to exercise
// the execution machinery, not to make money
type BuyAndHold struct {
	bought map[string]bool
}

// Name returns the strategy's registry name
func (s *BuyAndHold) Name() string {
	return BuyAndHoldName
}

// OnData signals a full confidence buy the first time each symbol appears
func (s *BuyAndHold) OnData(d *MarketData) (*Signal, error) {
	if d == nil {
		return nil, ErrNilSignal
	}
	if s.bought == nil {
		s.bought = make(map[string]bool)
	}
	if s.bought[d.Symbol] {
		return &Signal{Action: Hold, Price: d.Close, Reason: "already holding"}, nil
	}
	s.bought[d.Symbol] = true
	return &Signal{
		Action:     Buy,
		Confidence: 1,
		Price:      d.Close,
		Reason:     "initial entry",
	}, nil
}
