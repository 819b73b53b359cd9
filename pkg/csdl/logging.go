package csdl

import "go.uber.org/zap"

var logger = zap.NewNop()

// SetLogger replaces the package logger. Call it before using the package.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	logger = l.Named("csdl")
}
