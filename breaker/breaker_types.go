package breaker

import (
	"errors"
	"strings"
	"time"
)

// Type categorises why trading was restricted
type Type string

// Breaker types
const (
	System     Type = "SYSTEM"
	DailyLoss  Type = "DAILY_LOSS"
	Drawdown   Type = "DRAWDOWN"
	Volatility Type = "VOLATILITY"
	ErrorRate  Type = "ERROR_RATE"
	AnyType    Type = ""
)

// Status is a breaker state ordered by restrictiveness. The absence of a
// record is equivalent to Closed
type Status string

// Breaker statuses, least to most restrictive
const (
	Closed     Status = "CLOSED"
	HalfOpen   Status = "HALF_OPEN"
	Cautious   Status = "CAUTIOUS"
	Restricted Status = "RESTRICTED"
	Open       Status = "OPEN"
)

// ErrUnknownStatus occurs when a persisted status string cannot be matched,
// readers fail closed to Open on it
var ErrUnknownStatus = errors.New("unknown breaker status")

// Rank returns the restrictiveness ordering, higher is more restrictive
func (s Status) Rank() int {
	switch s {
	case Open:
		return 4
	case Restricted:
		return 3
	case Cautious:
		return 2
	case HalfOpen:
		return 1
	}
	return 0
}

// StringToStatus converts a case insensitive status string to a Status
func StringToStatus(status string) (Status, error) {
	for _, s := range []Status{Closed, HalfOpen, Cautious, Restricted, Open} {
		if strings.EqualFold(status, string(s)) {
			return s, nil
		}
	}
	return Open, ErrUnknownStatus
}

// Record is one breaker entry keyed by (type, scope). An empty scope means
// global. Timestamps round-trip as ISO-8601
type Record struct {
	Type             Type       `json:"type"`
	Scope            string     `json:"scope,omitempty"`
	Status           Status     `json:"status"`
	Reason           string     `json:"reason"`
	TrippedAt        time.Time  `json:"tripped_at"`
	AutoResetAt      *time.Time `json:"auto_reset_at"`
	ResetAttemptedAt *time.Time `json:"reset_attempted_at,omitempty"`
}

// Store is the persistence port for breaker state. Load tolerates a missing
// store by returning an empty map; corruption is surfaced as an error and
// the governor recovers by starting Closed
type Store interface {
	Load() (map[string]Record, error)
	Save(map[string]Record) error
}
