// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package logging builds the zap loggers shared by the commands.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewZapConfig returns the console configuration used by every command.
func NewZapConfig(level zapcore.Level) zap.Config {
	return zap.Config{
		Level:    zap.NewAtomicLevelAt(level),
		Encoding: "console",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "ts",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			FunctionKey:    zapcore.OmitKey,
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalColorLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		DisableStacktrace: true,
		OutputPaths:       []string{"stdout"},
		ErrorOutputPaths:  []string{"stderr"},
	}
}

// ParseLevel accepts zap level names; the empty string means info.
func ParseLevel(s string) (zapcore.Level, error) {
	if strings.TrimSpace(s) == "" {
		return zapcore.InfoLevel, nil
	}
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(s)))); err != nil {
		return zapcore.InfoLevel, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return l, nil
}

// NewLogger returns a named sugared logger at the given level name.
func NewLogger(name, level string) (*zap.SugaredLogger, error) {
	l, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	logger, err := NewZapConfig(l).Build()
	if err != nil {
		return nil, err
	}
	return logger.Sugar().Named(name), nil
}

// MustNewLogger is NewLogger for mains; a bad level falls back to info.
func MustNewLogger(name, level string) *zap.SugaredLogger {
	logger, err := NewLogger(name, level)
	if err == nil {
		return logger
	}
	logger, buildErr := NewLogger(name, "")
	if buildErr != nil {
		panic(buildErr)
	}
	logger.Warnf("%v, using info", err)
	return logger
}
