package log

import (
	"io"
	"sync"
)

const (
	timestampFormat = " 02/01/2006 15:04:05 "
	spacer          = " | "

	infoHeader  = "[INFO]"
	warnHeader  = "[WARN]"
	debugHeader = "[DEBUG]"
	errorHeader = "[ERROR]"
)

// Global vars related to the logger package
var (
	subLoggers = map[string]*SubLogger{}

	Global         *SubLogger
	Backtester     *SubLogger
	Data           *SubLogger
	Portfolio      *SubLogger
	Strategy       *SubLogger
	CircuitBreaker *SubLogger
	Report         *SubLogger

	// read/write mutex for logger
	mu = &sync.RWMutex{}
)

// Levels flags for each sub logger type
type Levels struct {
	Info, Debug, Warn, Error bool
}

// SubLogger defines a sub logger for a subsystem so output can be levelled
// and routed per subsystem
type SubLogger struct {
	name string
	Levels
	output io.Writer
}
