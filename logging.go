// Copyright 2026 The ACM Config Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package acm

import (
	"sync"

	"go.uber.org/zap"
)

var (
	defaultLoggerMu sync.RWMutex
	defaultLogger   = zap.NewNop()
)

// Log returns the package-wide logger. It is safe for concurrent use.
func Log() *zap.Logger {
	defaultLoggerMu.RLock()
	defer defaultLoggerMu.RUnlock()
	return defaultLogger
}

// SetLogger replaces the package-wide logger. Libraries embedding this
// package call this once at startup; the default discards everything.
// Log lines are a debugging aid, never part of the return-value
// contract: callers receive only the error code.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	defaultLoggerMu.Lock()
	defer defaultLoggerMu.Unlock()
	defaultLogger = l
}

// logFail emits the single log line a failing validator/builder call makes
// at the point of first detection, then returns the error unchanged so
// call sites can write `return logFail(wrapErr(...))`.
func logFail(err *Error) *Error {
	Log().Error("acm operation failed",
		zap.String("op", err.Op),
		zap.String("code", err.Code.String()),
		zap.Error(err.Err),
	)
	return err
}
