// SPDX-License-Identifier: Apache-2.0

// Package applog provides the structured logger used across the sync
// engine, following the same pterm-backed Logger/noopLogger split the
// teacher's migration logger uses.
package applog

import "github.com/pterm/pterm"

// Logger is the structured logging surface every component depends on.
// Debug carries detail useful only while troubleshooting (dangling
// children, skipped control-only chunks); Warn marks a recoverable
// per-event failure (DecodeError, BuildError); Info is the normal
// operational narrative, including the coordinator's status line.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type ptermLogger struct {
	logger pterm.Logger
}

// New returns a Logger backed by pterm's default logger.
func New() Logger {
	return &ptermLogger{logger: pterm.DefaultLogger}
}

func (l *ptermLogger) Debug(msg string, args ...any) {
	l.logger.Debug(msg, l.logger.Args(args...))
}

func (l *ptermLogger) Info(msg string, args ...any) {
	l.logger.Info(msg, l.logger.Args(args...))
}

func (l *ptermLogger) Warn(msg string, args ...any) {
	l.logger.Warn(msg, l.logger.Args(args...))
}

func (l *ptermLogger) Error(msg string, args ...any) {
	l.logger.Error(msg, l.logger.Args(args...))
}

type noopLogger struct{}

// NewNoop returns a Logger that discards everything, for tests.
func NewNoop() Logger {
	return &noopLogger{}
}

func (noopLogger) Debug(msg string, args ...any) {}
func (noopLogger) Info(msg string, args ...any)  {}
func (noopLogger) Warn(msg string, args ...any)  {}
func (noopLogger) Error(msg string, args ...any) {}
