package common

import (
	"errors"
	"strings"
)

var (
	// ErrNilArguments is a common error response to highlight that nils were
	// passed in
	ErrNilArguments = errors.New("received nil argument(s)")
	// ErrBadData is the root error for any unusable historical data, the data
	// package's quality sentinels wrap it
	ErrBadData = errors.New("invalid historical data")
	// ErrOrderRejected is the root error for every order rejection reason,
	// rejections are non fatal to a run
	ErrOrderRejected = errors.New("order rejected")
)

// Errors defines multiple errors
type Errors []error

// Error implements error interface
func (e Errors) Error() string {
	var r strings.Builder
	for i := range e {
		if i > 0 {
			r.WriteString(", ")
		}
		r.WriteString(e[i].Error())
	}
	return r.String()
}
