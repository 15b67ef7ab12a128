// Package log is a small leveled-logging façade over logrus, giving the
// rest of the module the same Debugf/Noticef/Warnf/Errorf surface
// regardless of which logrus instance or formatter is configured.
package log

import (
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	mu  sync.RWMutex
	std = newStd()
)

func newStd() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return l
}

// SetLevel adjusts the minimum level the package-level logger emits.
// Accepted values mirror logrus: "debug", "info", "warn", "error".
func SetLevel(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	mu.Lock()
	defer mu.Unlock()
	std.SetLevel(lvl)
	return nil
}

// SetOutput redirects where log lines are written, for example to
// io.Discard or a buffer.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	std.SetOutput(w)
}

func logger() *logrus.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return std
}

// Debugf logs at debug level, for handshake and frame-level detail that
// is noisy in normal operation.
func Debugf(format string, args ...interface{}) {
	logger().Debugf(format, args...)
}

// Noticef logs at info level for routine connection lifecycle events
// ("accepted", "handshake OK", "closed").
func Noticef(format string, args ...interface{}) {
	logger().Infof(format, args...)
}

// Warnf logs at warn level for conditions that don't fail the request
// but are worth a human's attention (a replayed key, a slow peer).
func Warnf(format string, args ...interface{}) {
	logger().Warnf(format, args...)
}

// Errorf logs at error level for failures that aborted a handshake, a
// handler, or a connection.
func Errorf(format string, args ...interface{}) {
	logger().Errorf(format, args...)
}
