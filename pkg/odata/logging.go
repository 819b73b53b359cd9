package odata

import "go.uber.org/zap"

var logger = zap.NewNop()

// SetLogger replaces the package logger used by reads, transports and the
// default callbacks.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	logger = l.Named("odata")
}
