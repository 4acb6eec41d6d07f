package utils

import (
	"errors"
	"fmt"
	"runtime/debug"
)

// ErrPanic marks errors produced from a recovered panic.
var ErrPanic = errors.New("panic")

// RecoverFromPanic logs a panic in task with its stack trace and swallows it.
// It must be deferred directly.
func RecoverFromPanic(logger *Logger, task string) {
	if r := recover(); r != nil {
		logPanic(logger, task, r)
	}
}

func logPanic(logger *Logger, task string, r any) {
	logger.Error("Panic recovered in %s: %v\nStack trace:\n%s", task, r, debug.Stack())
}

// SafeGo runs fn on its own goroutine; a panic is logged, not fatal.
func SafeGo(logger *Logger, task string, fn func()) {
	go func() {
		defer RecoverFromPanic(logger, task)
		fn()
	}()
}

// SafeGoWithError is SafeGo for functions that can fail. A panic in fn is
// reported to onError as an ErrPanic error, so callers waiting on a result
// always hear back. onError runs on the worker goroutine; UI callers must
// hop back with fyne.Do themselves.
func SafeGoWithError(logger *Logger, task string, fn func() error, onError func(error)) {
	go func() {
		if err := runGuarded(logger, task, fn); err != nil {
			logger.Error("Error in %s: %v", task, err)
			if onError != nil {
				onError(err)
			}
		}
	}()
}

func runGuarded(logger *Logger, task string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logPanic(logger, task, r)
			err = fmt.Errorf("%w in %s: %v", ErrPanic, task, r)
		}
	}()
	return fn()
}

// WrapError prefixes err with msg; nil stays nil.
func WrapError(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}
