package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

func init() {
	Global = registerNewSubLogger("LOG")
	Backtester = registerNewSubLogger("BACKTESTER")
	Data = registerNewSubLogger("DATA")
	Portfolio = registerNewSubLogger("PORTFOLIO")
	Strategy = registerNewSubLogger("STRATEGY")
	CircuitBreaker = registerNewSubLogger("CIRCUITBREAKER")
	Report = registerNewSubLogger("REPORT")
}

func registerNewSubLogger(name string) *SubLogger {
	sl := &SubLogger{
		name:   strings.ToUpper(name),
		output: os.Stdout,
		Levels: splitLevel("INFO|WARN|ERROR"),
	}
	mu.Lock()
	subLoggers[sl.name] = sl
	mu.Unlock()
	return sl
}

func splitLevel(level string) Levels {
	var l Levels
	enabledLevels := strings.Split(level, "|")
	for x := range enabledLevels {
		switch level := enabledLevels[x]; level {
		case "DEBUG":
			l.Debug = true
		case "INFO":
			l.Info = true
		case "WARN":
			l.Warn = true
		case "ERROR":
			l.Error = true
		}
	}
	return l
}

// SetLevel sets the enabled log levels for a sub logger from a pipe delimited
// string eg "INFO|WARN|ERROR"
func (sl *SubLogger) SetLevel(level string) {
	mu.Lock()
	sl.Levels = splitLevel(level)
	mu.Unlock()
}

// SetOutput redirects a sub logger's output
func (sl *SubLogger) SetOutput(o io.Writer) {
	mu.Lock()
	sl.output = o
	mu.Unlock()
}

// SetAllOutput redirects every registered sub logger's output, used to
// silence or capture logging in tests
func SetAllOutput(o io.Writer) {
	mu.Lock()
	for x := range subLoggers {
		subLoggers[x].output = o
	}
	mu.Unlock()
}

func (sl *SubLogger) stage(header, data string) {
	if sl == nil || sl.output == nil {
		return
	}
	_, err := fmt.Fprintf(sl.output, "%s%s%s%s%s%s\n",
		header,
		time.Now().Format(timestampFormat),
		sl.name,
		spacer,
		spacer,
		data)
	displayError(err)
}

func displayError(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Logger write error: %v\n", err)
	}
}

// Info takes a pointer subLogger struct and string and sends to the output
func Info(sl *SubLogger, data string) {
	mu.RLock()
	defer mu.RUnlock()
	if sl == nil || !sl.Levels.Info {
		return
	}
	sl.stage(infoHeader, data)
}

// Infoln takes a pointer subLogger struct and interface and sends to the output
func Infoln(sl *SubLogger, v ...interface{}) {
	Info(sl, fmt.Sprintln(v...))
}

// Infof takes a pointer subLogger struct, string and interface formats and
// sends to the output
func Infof(sl *SubLogger, data string, v ...interface{}) {
	Info(sl, fmt.Sprintf(data, v...))
}

// Debug takes a pointer subLogger struct and string and sends to the output
func Debug(sl *SubLogger, data string) {
	mu.RLock()
	defer mu.RUnlock()
	if sl == nil || !sl.Levels.Debug {
		return
	}
	sl.stage(debugHeader, data)
}

// Debugln takes a pointer subLogger struct and interface and sends to the output
func Debugln(sl *SubLogger, v ...interface{}) {
	Debug(sl, fmt.Sprintln(v...))
}

// Debugf takes a pointer subLogger struct, string and interface formats and
// sends to the output
func Debugf(sl *SubLogger, data string, v ...interface{}) {
	Debug(sl, fmt.Sprintf(data, v...))
}

// Warn takes a pointer subLogger struct and string and sends to the output
func Warn(sl *SubLogger, data string) {
	mu.RLock()
	defer mu.RUnlock()
	if sl == nil || !sl.Levels.Warn {
		return
	}
	sl.stage(warnHeader, data)
}

// Warnln takes a pointer subLogger struct and interface and sends to the output
func Warnln(sl *SubLogger, v ...interface{}) {
	Warn(sl, fmt.Sprintln(v...))
}

// Warnf takes a pointer subLogger struct, string and interface formats and
// sends to the output
func Warnf(sl *SubLogger, data string, v ...interface{}) {
	Warn(sl, fmt.Sprintf(data, v...))
}

// Error takes a pointer subLogger struct and string and sends to the output
func Error(sl *SubLogger, data string) {
	mu.RLock()
	defer mu.RUnlock()
	if sl == nil || !sl.Levels.Error {
		return
	}
	sl.stage(errorHeader, data)
}

// Errorln takes a pointer subLogger struct and interface and sends to the output
func Errorln(sl *SubLogger, v ...interface{}) {
	Error(sl, fmt.Sprintln(v...))
}

// Errorf takes a pointer subLogger struct, string and interface formats and
// sends to the output
func Errorf(sl *SubLogger, data string, v ...interface{}) {
	Error(sl, fmt.Sprintf(data, v...))
}
