// Package logger provides opinionated logging capabilities for the relay.
package logger

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"
)

// NewLogger builds the process logger. Console output is colored for humans;
// jsonOutput switches to the JSON encoder for log shippers. When stdout is not
// a terminal the JSON encoder is used regardless.
func NewLogger(debug, jsonOutput bool) *zap.Logger {
	useJSON := jsonOutput || !term.IsTerminal(int(os.Stdout.Fd()))
	return newLogger(os.Stdout, debug, useJSON)
}

func newLogger(w io.Writer, debug, jsonOutput bool) *zap.Logger {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "time"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	level := zap.InfoLevel
	if debug {
		level = zap.DebugLevel
	}

	var encoder zapcore.Encoder
	if jsonOutput {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	} else {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(w), level)

	return zap.New(core, zap.AddCaller())
}
